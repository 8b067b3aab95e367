// internal/policy/condition.go
package policy

import (
	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * Condition tree evaluation.
 *
 * Evaluates an and/or group tree against the input with an explicit depth
 * counter threaded through the recursion. Exceeding maxDepth returns
 * ErrExpressionTooDeep as a hard, caller-visible failure: a rule author must
 * not be able to silently suppress matches with an over-deep tree.
 *
 * Leaf semantics are fail-closed: an unresolvable field makes every operator
 * except not_exists evaluate to false for that leaf, never aborting the
 * evaluation. AND short-circuits on the first false child, OR on the first
 * true child.
 */

// EvaluateConditions evaluates a condition tree against the input.
// A nil tree always passes. Pure and side-effect free.
func EvaluateConditions(group *ConditionGroup, input *types.PolicyInput, maxDepth int) (bool, error) {
	if group == nil {
		return true, nil
	}
	if maxDepth <= 0 {
		maxDepth = types.DefaultMaxExpressionDepth
	}
	return evalGroup(group, input, 1, maxDepth)
}

func evalGroup(group *ConditionGroup, input *types.PolicyInput, depth, maxDepth int) (bool, error) {
	if depth > maxDepth {
		return false, types.ErrExpressionTooDeep
	}
	if len(group.Children) > types.MaxConditionChildren {
		return false, types.ErrTooManyChildren
	}

	switch group.Operator {
	case GroupAnd:
		for _, child := range group.Children {
			matched, err := evalNode(child, input, depth, maxDepth)
			if err != nil {
				return false, err
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil

	case GroupOr:
		for _, child := range group.Children {
			matched, err := evalNode(child, input, depth, maxDepth)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, types.ErrUnknownGroupOperator
	}
}

func evalNode(node ConditionNode, input *types.PolicyInput, depth, maxDepth int) (bool, error) {
	switch {
	case node.Group != nil:
		return evalGroup(node.Group, input, depth+1, maxDepth)
	case node.Leaf != nil:
		return evalLeaf(node.Leaf, input), nil
	default:
		return false, types.ErrInvalidExpression
	}
}

// evalLeaf evaluates a single comparison. Local anomalies (unresolvable
// field, type mismatch, invalid regex) resolve to false for this leaf only.
func evalLeaf(cond *Condition, input *types.PolicyInput) bool {
	value, found := ResolveFieldValue(cond.Field, input)

	switch cond.Operator {
	case OpExists:
		return found
	case OpNotExists:
		return !found
	}

	if !found {
		return false
	}
	return Compare(cond.Operator, value, cond.Value)
}
