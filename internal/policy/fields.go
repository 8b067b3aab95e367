// internal/policy/fields.go
package policy

import (
	"strings"
	"time"

	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * Field path resolution for condition leaves.
 *
 * Resolves dotted paths rooted at subject., resource., action. or context.
 * against the immutable PolicyInput. An un-prefixed path is shorthand that
 * checks subject.attributes first, then resource.attributes.
 *
 * An unresolvable path yields (nil, false); every comparison operator except
 * not_exists treats that as non-matching (fail-closed per leaf). Attribute
 * maps may nest (map[string]any inside map[string]any); traversal follows
 * the remaining segments and stops cold at any non-map intermediate.
 */

// ResolveFieldValue resolves a dotted field path against the input.
// The second return value reports whether the path resolved at all;
// a resolved nil value counts as found.
func ResolveFieldValue(field string, input *types.PolicyInput) (any, bool) {
	if field == "" || input == nil {
		return nil, false
	}

	segs := strings.Split(field, ".")
	switch segs[0] {
	case "subject":
		return resolveSubject(segs[1:], &input.Subject)
	case "resource":
		return resolveResource(segs[1:], &input.Resource)
	case "action":
		return resolveAction(segs[1:], input.Action)
	case "context":
		return resolveContext(segs[1:], &input.Context)
	default:
		// Un-prefixed shorthand: subject attributes win over resource attributes.
		if v, ok := resolveAttributes(segs, input.Subject.Attributes); ok {
			return v, true
		}
		return resolveAttributes(segs, input.Resource.Attributes)
	}
}

func resolveSubject(segs []string, s *types.Subject) (any, bool) {
	if len(segs) == 0 {
		return nil, false
	}
	switch segs[0] {
	case "id", "principalId":
		return scalarAt(segs, s.PrincipalID)
	case "kind":
		return scalarAt(segs, string(s.Kind))
	case "roles":
		return sliceAt(segs, s.Roles)
	case "groups":
		return sliceAt(segs, s.Groups)
	case "orgUnits":
		return sliceAt(segs, s.OrgUnits)
	case "attributes":
		return resolveAttributes(segs[1:], s.Attributes)
	default:
		return nil, false
	}
}

func resolveResource(segs []string, r *types.Resource) (any, bool) {
	if len(segs) == 0 {
		return nil, false
	}
	switch segs[0] {
	case "type":
		return scalarAt(segs, r.Type)
	case "id":
		return scalarAt(segs, r.ID)
	case "version":
		return scalarAt(segs, r.Version)
	case "module":
		return scalarAt(segs, r.Module)
	case "owner":
		return scalarAt(segs, r.Owner)
	case "costCenter":
		return scalarAt(segs, r.CostCenter)
	case "attributes":
		return resolveAttributes(segs[1:], r.Attributes)
	default:
		return nil, false
	}
}

func resolveAction(segs []string, a types.Action) (any, bool) {
	if len(segs) == 0 {
		return nil, false
	}
	switch segs[0] {
	case "namespace":
		return scalarAt(segs, a.Namespace)
	case "code":
		return scalarAt(segs, a.Code)
	case "fullCode":
		return scalarAt(segs, a.FullCode())
	default:
		return nil, false
	}
}

func resolveContext(segs []string, c *types.RequestContext) (any, bool) {
	if len(segs) == 0 {
		return nil, false
	}
	switch segs[0] {
	case "tenantId":
		return scalarAt(segs, c.TenantID)
	case "timestamp":
		if len(segs) != 1 || c.Timestamp.IsZero() {
			return nil, false
		}
		return c.Timestamp.UTC().Format(time.RFC3339), true
	case "network":
		return scalarAt(segs, c.Network)
	case "geo":
		return scalarAt(segs, c.Geo)
	case "channel":
		return scalarAt(segs, c.Channel)
	case "correlationId":
		return scalarAt(segs, c.CorrelationID)
	case "attributes":
		return resolveAttributes(segs[1:], c.Attributes)
	default:
		return nil, false
	}
}

// scalarAt terminates a path at a scalar field. Empty strings are treated as
// unset so exists/not_exists behave intuitively for optional fields.
func scalarAt(segs []string, v string) (any, bool) {
	if len(segs) != 1 || v == "" {
		return nil, false
	}
	return v, true
}

// sliceAt terminates a path at a string slice, normalized to []any so the
// operator layer handles one list shape.
func sliceAt(segs []string, v []string) (any, bool) {
	if len(segs) != 1 || v == nil {
		return nil, false
	}
	out := make([]any, len(v))
	for i, s := range v {
		out[i] = s
	}
	return out, true
}

// resolveAttributes walks remaining segments through nested attribute maps.
func resolveAttributes(segs []string, attrs map[string]any) (any, bool) {
	if len(segs) == 0 || attrs == nil {
		return nil, false
	}

	var current any = attrs
	for _, seg := range segs {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
