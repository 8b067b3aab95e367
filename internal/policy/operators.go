// internal/policy/operators.go
package policy

import (
	"reflect"
	"regexp"
	"strings"
)

/*
 * Leaf operator comparison logic.
 *
 * Values arrive untyped (JSON/YAML decoding), so comparisons are type-aware:
 *   - eq/ne: equality with numeric cross-type tolerance (float64/int/int64)
 *   - gt/gte/lt/lte: numeric only, no string-to-number coercion, false on
 *     type mismatch rather than error
 *   - in/not_in: membership with equality semantics over []any
 *   - contains: substring for strings, membership for lists
 *   - starts_with/ends_with: strings only
 *   - matches: pattern compiled per call, false (never an error) on invalid
 *     regex so a bad pattern cannot abort a whole evaluation
 *
 * exists/not_exists are handled by the condition evaluator before values
 * reach this layer; Compare returns false should they ever arrive here.
 *
 * Why function-based: a switch over a closed enum is cleaner than fourteen
 * single-method implementations with minimal behavior variation.
 */

// Compare applies a leaf operator to the resolved value and the rule value.
func Compare(op ConditionOperator, value, target any) bool {
	switch op {
	case OpEq:
		return looseEqual(value, target)
	case OpNe:
		return !looseEqual(value, target)
	case OpGt:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp > 0
	case OpGte:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp >= 0
	case OpLt:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp < 0
	case OpLte:
		cmp, ok := compareNumeric(value, target)
		return ok && cmp <= 0
	case OpIn:
		return memberOf(value, target)
	case OpNotIn:
		return !memberOf(value, target)
	case OpContains:
		return containsValue(value, target)
	case OpStartsWith:
		return stringPair(value, target, strings.HasPrefix)
	case OpEndsWith:
		return stringPair(value, target, strings.HasSuffix)
	case OpMatches:
		return matchesPattern(value, target)
	default:
		return false
	}
}

// looseEqual performs equality with numeric cross-type tolerance.
// Non-comparable shapes (maps, slices) fall back to deep equality.
func looseEqual(a, b any) bool {
	if na, oka := toFloat64(a); oka {
		if nb, okb := toFloat64(b); okb {
			return na == nb
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return reflect.DeepEqual(a, b)
	}
}

// compareNumeric three-way compares two values that must both already be
// numbers. The ok result is false on any type mismatch.
func compareNumeric(a, b any) (int, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	if !oka || !okb {
		return 0, false
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	default:
		return 0, true
	}
}

// toFloat64 converts numeric types produced by JSON/YAML decoding.
// Strings are deliberately not parsed: no implicit string-to-number coercion.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// memberOf checks value against a rule-supplied list with equality semantics.
func memberOf(value, set any) bool {
	arr, ok := asList(set)
	if !ok {
		return false
	}
	for _, elem := range arr {
		if looseEqual(value, elem) {
			return true
		}
	}
	return false
}

// containsValue: substring when the resolved value is a string, membership
// when it is a list (e.g. subject.roles contains "admin").
func containsValue(value, target any) bool {
	switch v := value.(type) {
	case string:
		t, ok := target.(string)
		return ok && strings.Contains(v, t)
	default:
		arr, ok := asList(value)
		if !ok {
			return false
		}
		for _, elem := range arr {
			if looseEqual(elem, target) {
				return true
			}
		}
		return false
	}
}

// asList normalizes the slice shapes YAML and JSON decoding produce.
func asList(v any) ([]any, bool) {
	switch arr := v.(type) {
	case []any:
		return arr, true
	case []string:
		out := make([]any, len(arr))
		for i, s := range arr {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func stringPair(value, target any, f func(string, string) bool) bool {
	vs, ok1 := value.(string)
	ts, ok2 := target.(string)
	if !ok1 || !ok2 {
		return false
	}
	return f(vs, ts)
}

// matchesPattern compiles the pattern each call. Invalid regex returns
// false; a rule author cannot abort evaluation with a bad pattern.
func matchesPattern(value, target any) bool {
	vs, ok1 := value.(string)
	ps, ok2 := target.(string)
	if !ok1 || !ok2 {
		return false
	}
	re, err := regexp.Compile(ps)
	if err != nil {
		return false
	}
	return re.MatchString(vs)
}
