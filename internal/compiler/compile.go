// internal/compiler/compile.go
package compiler

import (
	"fmt"
	"time"

	"github.com/arbiterhq/arbiter/internal/policy"
	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * Policy compilation and validation.
 *
 * Compiles a wire-format PolicyDefinition into the indexed CompiledPolicy the
 * engine evaluates against.
 *
 * Compilation workflow:
 *   1. Validate the definition against the closed enums (scope, subject,
 *      effect, operators, obligation types)
 *   2. Validate resource limits (expression depth, group fan-out, IN values)
 *   3. Convert loose condition nodes into the tagged group/leaf union
 *   4. Index rules under scopeKey -> subjectKey -> operation full code
 *
 * Why compile-time validation: enforcing limits and enum membership here
 * moves error detection to policy authoring time. The evaluator only ever
 * sees pre-validated structures, so its own failures are limited to
 * per-evaluation budgets.
 *
 * Duplicate rule IDs are rejected outright: the rule ID is the final
 * tie-break of the determinism order and must discriminate.
 */

// Compile validates and indexes one policy definition.
func Compile(def *types.PolicyDefinition) (*policy.CompiledPolicy, error) {
	if def == nil {
		return nil, fmt.Errorf("policy definition cannot be nil")
	}
	if !def.ScopeType.Valid() {
		return nil, fmt.Errorf("policy %s: scope %q: %w", def.ID, def.ScopeType, types.ErrUnknownScopeType)
	}

	scopeKey := types.ScopeKeyFromRef(def.ScopeType, def.ScopeRef)
	if scopeKey == "" {
		return nil, fmt.Errorf("policy %s: scope %q yields empty scope key: %w", def.ID, def.ScopeType, types.ErrUnknownScopeType)
	}

	index := policy.RuleIndex{scopeKey: make(map[string]map[string][]*policy.CompiledRule)}
	seen := make(map[string]struct{}, len(def.Rules))
	count := 0

	for i := range def.Rules {
		rd := &def.Rules[i]
		if _, dup := seen[rd.ID]; dup {
			return nil, fmt.Errorf("policy %s: rule %s: %w", def.ID, rd.ID, types.ErrDuplicateRuleID)
		}
		seen[rd.ID] = struct{}{}

		compiled, err := compileRule(def, rd)
		if err != nil {
			return nil, err
		}

		subjectKey := policy.IndexSubjectKey(compiled.SubjectType, compiled.SubjectKey)
		bucket := index[scopeKey][subjectKey]
		if bucket == nil {
			bucket = make(map[string][]*policy.CompiledRule)
			index[scopeKey][subjectKey] = bucket
		}
		for _, op := range rd.Operations {
			bucket[op] = append(bucket[op], compiled)
		}
		count++
	}

	return &policy.CompiledPolicy{
		PolicyID:   def.ID,
		Name:       def.Name,
		TenantID:   def.TenantID,
		VersionID:  def.VersionID,
		ScopeType:  def.ScopeType,
		Index:      index,
		RuleCount:  count,
		CompiledAt: time.Now().UnixNano(),
	}, nil
}

// compileRule validates a single rule definition and converts its condition
// tree into the evaluator's tagged union.
func compileRule(def *types.PolicyDefinition, rd *types.RuleDefinition) (*policy.CompiledRule, error) {
	if !rd.Effect.Valid() {
		return nil, fmt.Errorf("policy %s: rule %s: effect %q: %w", def.ID, rd.ID, rd.Effect, types.ErrUnknownEffect)
	}
	if rd.SubjectKey != types.WildcardSubjectKey && !rd.SubjectType.Valid() {
		return nil, fmt.Errorf("policy %s: rule %s: subject type %q: %w", def.ID, rd.ID, rd.SubjectType, types.ErrUnknownSubjectType)
	}
	if len(rd.Operations) == 0 {
		return nil, fmt.Errorf("policy %s: rule %s: %w", def.ID, rd.ID, types.ErrNoOperations)
	}

	condition, err := compileCondition(rd.Condition, 1)
	if err != nil {
		return nil, fmt.Errorf("policy %s: rule %s: %w", def.ID, rd.ID, err)
	}

	obligations, err := compileObligations(rd.Obligations)
	if err != nil {
		return nil, fmt.Errorf("policy %s: rule %s: %w", def.ID, rd.ID, err)
	}

	return &policy.CompiledRule{
		ID:          rd.ID,
		Effect:      rd.Effect,
		Priority:    rd.Priority,
		ScopeType:   def.ScopeType,
		SubjectType: rd.SubjectType,
		SubjectKey:  rd.SubjectKey,
		Condition:   condition,
		Obligations: obligations,
	}, nil
}

// compileCondition converts a loose wire-format node into a ConditionGroup,
// enforcing depth, fan-out and IN-list limits. A nil node compiles to nil
// (unconditional rule).
func compileCondition(node *types.ConditionNode, depth int) (*policy.ConditionGroup, error) {
	if node == nil {
		return nil, nil
	}
	if depth > types.DefaultMaxExpressionDepth {
		return nil, types.ErrExpressionTooDeep
	}

	if !node.IsGroup() {
		// A bare leaf at the root is wrapped in an implicit AND group.
		leaf, err := compileLeaf(node)
		if err != nil {
			return nil, err
		}
		return &policy.ConditionGroup{
			Operator: policy.GroupAnd,
			Children: []policy.ConditionNode{{Leaf: leaf}},
		}, nil
	}

	op := policy.GroupOperator(node.Operator)
	if op != policy.GroupAnd && op != policy.GroupOr {
		return nil, fmt.Errorf("group operator %q: %w", node.Operator, types.ErrUnknownGroupOperator)
	}
	if len(node.Children) > types.MaxConditionChildren {
		return nil, types.ErrTooManyChildren
	}

	group := &policy.ConditionGroup{
		Operator: op,
		Children: make([]policy.ConditionNode, 0, len(node.Children)),
	}
	for i := range node.Children {
		child := &node.Children[i]
		if child.IsGroup() {
			sub, err := compileCondition(child, depth+1)
			if err != nil {
				return nil, err
			}
			group.Children = append(group.Children, policy.ConditionNode{Group: sub})
			continue
		}
		leaf, err := compileLeaf(child)
		if err != nil {
			return nil, err
		}
		group.Children = append(group.Children, policy.ConditionNode{Leaf: leaf})
	}
	return group, nil
}

// compileLeaf validates one comparison leaf.
func compileLeaf(node *types.ConditionNode) (*policy.Condition, error) {
	op := policy.ConditionOperator(node.Op)
	if !op.Valid() {
		return nil, fmt.Errorf("condition operator %q: %w", node.Op, types.ErrUnknownConditionOperator)
	}
	if node.Field == "" {
		return nil, fmt.Errorf("condition with operator %q has no field: %w", node.Op, types.ErrInvalidExpression)
	}
	if op == policy.OpIn || op == policy.OpNotIn {
		if values, ok := node.Value.([]any); ok && len(values) > types.MaxInValues {
			return nil, types.ErrTooManyInValues
		}
	}
	return &policy.Condition{
		Field:    node.Field,
		Operator: op,
		Value:    node.Value,
	}, nil
}

// compileObligations validates obligation types against the closed enum.
func compileObligations(defs []types.ObligationDefinition) ([]policy.Obligation, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]policy.Obligation, 0, len(defs))
	for _, od := range defs {
		t := policy.ObligationType(od.Type)
		if !t.Valid() {
			return nil, fmt.Errorf("obligation type %q: %w", od.Type, types.ErrUnknownObligationType)
		}
		out = append(out, policy.Obligation{Type: t, Params: od.Params})
	}
	return out, nil
}
