// internal/policy/effects.go
package policy

import (
	"fmt"

	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * Effect resolution.
 *
 * Applies one of four conflict-resolution strategies over the matched,
 * comparator-ordered rule set to produce a single effect and the deciding
 * rule. Zero matches is always a deny ("default deny") regardless of
 * strategy or configuration. Unknown strategy values fall back to
 * deny_overrides so misconfiguration stays fail-closed.
 */

// ConflictResolution selects how conflicting matched rules collapse into one
// effect.
type ConflictResolution string

const (
	// DenyOverrides: any matched deny wins; else the most specific allow.
	DenyOverrides ConflictResolution = "deny_overrides"

	// AllowOverrides: any matched allow wins; else the most specific deny.
	AllowOverrides ConflictResolution = "allow_overrides"

	// PriorityOrder: the single most specific rule wins outright.
	PriorityOrder ConflictResolution = "priority_order"

	// FirstMatch is an alias for PriorityOrder.
	FirstMatch ConflictResolution = "first_match"
)

// DefaultDenyReason is the reason attached to zero-match decisions.
const DefaultDenyReason = "no matching rules (default deny)"

// Resolution is the outcome of conflict resolution.
type Resolution struct {
	Effect       types.Effect
	Reasons      []string
	DecidingRule *MatchedRule
}

// ResolveEffect collapses matched rules into a single effect.
// The input slice must already be ordered by SortMatchedRules.
func ResolveEffect(matched []MatchedRule, strategy ConflictResolution) Resolution {
	if len(matched) == 0 {
		return Resolution{
			Effect:  types.EffectDeny,
			Reasons: []string{DefaultDenyReason},
		}
	}

	var deciding *MatchedRule
	switch strategy {
	case AllowOverrides:
		deciding = firstWithEffect(matched, types.EffectAllow)
		if deciding == nil {
			deciding = &matched[0]
		}
	case PriorityOrder, FirstMatch:
		deciding = &matched[0]
	case DenyOverrides:
		deciding = firstWithEffect(matched, types.EffectDeny)
		if deciding == nil {
			deciding = &matched[0]
		}
	default:
		// Fail-closed under misconfiguration.
		strategy = DenyOverrides
		deciding = firstWithEffect(matched, types.EffectDeny)
		if deciding == nil {
			deciding = &matched[0]
		}
	}

	rule := deciding.Rule
	return Resolution{
		Effect:       rule.Effect,
		DecidingRule: deciding,
		Reasons: []string{
			fmt.Sprintf("%d rule(s) matched; %s selected rule %s (scope=%s subject=%s:%s priority=%d effect=%s) from policy %s",
				len(matched), strategy, rule.ID, rule.ScopeType, rule.SubjectType, rule.SubjectKey, rule.Priority, rule.Effect, deciding.PolicyID),
		},
	}
}

// firstWithEffect returns the most specific rule carrying the effect, in
// comparator order, or nil when none does.
func firstWithEffect(matched []MatchedRule, effect types.Effect) *MatchedRule {
	for i := range matched {
		if matched[i].Rule.Effect == effect {
			return &matched[i]
		}
	}
	return nil
}
