// internal/policy/matcher.go
package policy

import (
	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * Rule matching.
 *
 * Given a compiled policy, a resolved scope key and the subject's identity
 * keys, enumerates candidate rules from the index and filters them through
 * condition evaluation. Scanned counts every rule considered, matched or
 * not; the orchestrator (not this matcher) enforces the maxRulesScanned stop
 * condition between policies so the guard caps total work per evaluation.
 *
 * The wildcard-subject bucket ("*") is always scanned in addition to the
 * concrete subject keys: any authenticated subject matches a wildcard rule.
 * Wildcard matches report the rule's own subject type with key "*".
 */

// SubjectKeyPair is one (kind, identifier) pair rules are indexed by.
type SubjectKeyPair struct {
	Type types.SubjectType
	Key  string
}

// SubjectKeysFor builds the subject's identity keys in a fixed, explicit
// order: (user, principal) always; (service, principal) only for service
// principals; one (kc_role, role) per role; one (kc_group, group) per group.
func SubjectKeysFor(s types.Subject) []SubjectKeyPair {
	keys := make([]SubjectKeyPair, 0, 2+len(s.Roles)+len(s.Groups))
	keys = append(keys, SubjectKeyPair{Type: types.SubjectUser, Key: s.PrincipalID})
	if s.Kind == types.PrincipalService {
		keys = append(keys, SubjectKeyPair{Type: types.SubjectService, Key: s.PrincipalID})
	}
	for _, role := range s.Roles {
		keys = append(keys, SubjectKeyPair{Type: types.SubjectKCRole, Key: role})
	}
	for _, group := range s.Groups {
		keys = append(keys, SubjectKeyPair{Type: types.SubjectKCGroup, Key: group})
	}
	return keys
}

// MatchOutcome is the result of scanning one compiled policy.
type MatchOutcome struct {
	Matched []MatchedRule
	Scanned int
}

// FindMatchingRules enumerates and filters candidate rules for one policy.
// Returns a hard error only for condition tree failures that must surface
// (depth exceeded, malformed tree); per-leaf anomalies never error.
func FindMatchingRules(cp *CompiledPolicy, scopeKey string, subjectKeys []SubjectKeyPair, operationID string, input *types.PolicyInput, maxDepth int) (MatchOutcome, error) {
	var out MatchOutcome
	if cp == nil || cp.Index == nil {
		return out, nil
	}

	buckets, ok := cp.Index[scopeKey]
	if !ok {
		return out, nil
	}

	for _, sk := range subjectKeys {
		rules := candidateRules(buckets[IndexSubjectKey(sk.Type, sk.Key)], operationID)
		if err := filterRules(cp, rules, input, maxDepth, &out); err != nil {
			return out, err
		}
	}

	// Wildcard subject: any authenticated subject matches.
	wildcard := candidateRules(buckets[types.WildcardSubjectKey], operationID)
	if err := filterRules(cp, wildcard, input, maxDepth, &out); err != nil {
		return out, err
	}

	return out, nil
}

// candidateRules unions the bucket's rules filed under the exact operation
// and under the wildcard operation.
func candidateRules(bucket map[string][]*CompiledRule, operationID string) []*CompiledRule {
	if bucket == nil {
		return nil
	}
	exact := bucket[operationID]
	wild := bucket[types.WildcardOperation]
	if len(wild) == 0 {
		return exact
	}
	rules := make([]*CompiledRule, 0, len(exact)+len(wild))
	rules = append(rules, exact...)
	rules = append(rules, wild...)
	return rules
}

// filterRules evaluates each candidate's condition tree, keeping passers.
// Rules without conditions always pass.
func filterRules(cp *CompiledPolicy, rules []*CompiledRule, input *types.PolicyInput, maxDepth int, out *MatchOutcome) error {
	for _, rule := range rules {
		out.Scanned++

		if rule.Condition == nil {
			out.Matched = append(out.Matched, newMatchedRule(cp, rule, nil))
			continue
		}

		passed, err := EvaluateConditions(rule.Condition, input, maxDepth)
		if err != nil {
			return err
		}
		if passed {
			result := passed
			out.Matched = append(out.Matched, newMatchedRule(cp, rule, &result))
		}
	}
	return nil
}

func newMatchedRule(cp *CompiledPolicy, rule *CompiledRule, conditionResult *bool) MatchedRule {
	return MatchedRule{
		PolicyID:        cp.PolicyID,
		PolicyName:      cp.Name,
		VersionID:       cp.VersionID,
		Rule:            rule,
		ConditionResult: conditionResult,
	}
}
