// internal/policy/order.go
package policy

import (
	"sort"
	"strings"

	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * Determinism comparator.
 *
 * Single source of truth for "which rule is more specific". Used identically
 * for conflict resolution and for the matchedRules ordering in explain
 * output; it must never be reimplemented ad hoc elsewhere.
 *
 * Tie-break sequence, each step applied only on exact equality of the
 * previous:
 *   1. Scope specificity descending (record > entity_version > entity >
 *      module > global)
 *   2. Subject specificity descending (user > service > kc_role > kc_group)
 *   3. Priority ascending (lower number wins)
 *   4. Effect: deny before allow
 *   5. Rule identifier, lexicographic
 *
 * Step 5 guarantees a total order with no remaining ties for distinct rules.
 */

// CompareRules returns -1, 0 or +1 ordering a before, equal to, or after b.
// Zero occurs only for identical rule identifiers.
func CompareRules(a, b *CompiledRule) int {
	if d := b.ScopeType.Specificity() - a.ScopeType.Specificity(); d != 0 {
		return sign(d)
	}
	if d := b.SubjectType.Specificity() - a.SubjectType.Specificity(); d != 0 {
		return sign(d)
	}
	if d := a.Priority - b.Priority; d != 0 {
		return sign(d)
	}
	if a.Effect != b.Effect {
		if a.Effect == types.EffectDeny {
			return -1
		}
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// SortMatchedRules orders matched rules by the determinism comparator.
// Stable sort keeps run-to-run output byte-for-byte reproducible even if two
// rules ever compared equal.
func SortMatchedRules(matched []MatchedRule) {
	sort.SliceStable(matched, func(i, j int) bool {
		return CompareRules(matched[i].Rule, matched[j].Rule) < 0
	})
}

func sign(d int) int {
	if d < 0 {
		return -1
	}
	return 1
}
