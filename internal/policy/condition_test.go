// internal/policy/condition_test.go
package policy

import (
	"errors"
	"testing"

	"github.com/arbiterhq/arbiter/internal/types"
)

func leaf(field string, op ConditionOperator, value any) ConditionNode {
	return ConditionNode{Leaf: &Condition{Field: field, Operator: op, Value: value}}
}

func group(op GroupOperator, children ...ConditionNode) *ConditionGroup {
	return &ConditionGroup{Operator: op, Children: children}
}

func TestEvaluateConditions_NilTreePasses(t *testing.T) {
	matched, err := EvaluateConditions(nil, testInput(), 10)
	if err != nil {
		t.Fatalf("EvaluateConditions() error = %v, want nil", err)
	}
	if !matched {
		t.Errorf("matched = false, want true for nil tree")
	}
}

func TestEvaluateConditions_AndOr(t *testing.T) {
	input := testInput()

	tests := []struct {
		name string
		tree *ConditionGroup
		want bool
	}{
		{
			name: "and all true",
			tree: group(GroupAnd,
				leaf("resource.attributes.amount", OpGt, float64(100)),
				leaf("subject.attributes.department", OpEq, "finance"),
			),
			want: true,
		},
		{
			name: "and one false",
			tree: group(GroupAnd,
				leaf("resource.attributes.amount", OpGt, float64(100)),
				leaf("subject.attributes.department", OpEq, "hr"),
			),
			want: false,
		},
		{
			name: "or one true",
			tree: group(GroupOr,
				leaf("subject.attributes.department", OpEq, "hr"),
				leaf("resource.attributes.amount", OpGt, float64(1000)),
			),
			want: true,
		},
		{
			name: "or all false",
			tree: group(GroupOr,
				leaf("subject.attributes.department", OpEq, "hr"),
				leaf("resource.attributes.amount", OpGt, float64(2000)),
			),
			want: false,
		},
		{
			name: "nested groups",
			tree: group(GroupAnd,
				leaf("context.tenantId", OpEq, "acme"),
				ConditionNode{Group: group(GroupOr,
					leaf("subject.roles", OpContains, "approver"),
					leaf("subject.attributes.clearance.level", OpGte, float64(5)),
				)},
			),
			want: true,
		},
		{
			name: "missing field fails leaf not evaluation",
			tree: group(GroupAnd, leaf("resource.attributes.missing", OpEq, "x")),
			want: false,
		},
		{
			name: "exists on present field",
			tree: group(GroupAnd, leaf("resource.owner", OpExists, nil)),
			want: true,
		},
		{
			name: "not_exists on absent field",
			tree: group(GroupAnd, leaf("resource.costCenter", OpNotExists, nil)),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, err := EvaluateConditions(tt.tree, input, 10)
			if err != nil {
				t.Fatalf("EvaluateConditions() error = %v, want nil", err)
			}
			if matched != tt.want {
				t.Errorf("matched = %v, want %v", matched, tt.want)
			}
		})
	}
}

func TestEvaluateConditions_DepthLimit(t *testing.T) {
	// Nest 11 groups with maxDepth 10: must be a hard error, not a deny.
	tree := group(GroupAnd, leaf("context.tenantId", OpEq, "acme"))
	for i := 0; i < 10; i++ {
		tree = group(GroupAnd, ConditionNode{Group: tree})
	}

	_, err := EvaluateConditions(tree, testInput(), 10)
	if !errors.Is(err, types.ErrExpressionTooDeep) {
		t.Fatalf("error = %v, want ErrExpressionTooDeep", err)
	}

	// The same tree passes with a higher budget.
	matched, err := EvaluateConditions(tree, testInput(), 20)
	if err != nil {
		t.Fatalf("EvaluateConditions() error = %v, want nil", err)
	}
	if !matched {
		t.Errorf("matched = false, want true")
	}
}

func TestEvaluateConditions_ExactDepthBoundary(t *testing.T) {
	// Depth exactly at the limit evaluates; one deeper errors.
	tree := group(GroupAnd, leaf("context.tenantId", OpEq, "acme"))
	for i := 0; i < 9; i++ {
		tree = group(GroupAnd, ConditionNode{Group: tree})
	}

	matched, err := EvaluateConditions(tree, testInput(), 10)
	if err != nil {
		t.Fatalf("EvaluateConditions() at limit error = %v, want nil", err)
	}
	if !matched {
		t.Errorf("matched = false, want true")
	}

	over := group(GroupAnd, ConditionNode{Group: tree})
	if _, err := EvaluateConditions(over, testInput(), 10); !errors.Is(err, types.ErrExpressionTooDeep) {
		t.Fatalf("error = %v, want ErrExpressionTooDeep", err)
	}
}

func TestEvaluateConditions_MalformedNode(t *testing.T) {
	tree := group(GroupAnd, ConditionNode{})
	if _, err := EvaluateConditions(tree, testInput(), 10); !errors.Is(err, types.ErrInvalidExpression) {
		t.Fatalf("error = %v, want ErrInvalidExpression", err)
	}
}

func TestEvaluateConditions_UnknownGroupOperator(t *testing.T) {
	tree := &ConditionGroup{Operator: GroupOperator("xor"), Children: []ConditionNode{
		leaf("context.tenantId", OpEq, "acme"),
	}}
	if _, err := EvaluateConditions(tree, testInput(), 10); !errors.Is(err, types.ErrUnknownGroupOperator) {
		t.Fatalf("error = %v, want ErrUnknownGroupOperator", err)
	}
}

func TestEvaluateConditions_TooManyChildren(t *testing.T) {
	children := make([]ConditionNode, types.MaxConditionChildren+1)
	for i := range children {
		children[i] = leaf("context.tenantId", OpEq, "acme")
	}
	tree := &ConditionGroup{Operator: GroupAnd, Children: children}
	if _, err := EvaluateConditions(tree, testInput(), 10); !errors.Is(err, types.ErrTooManyChildren) {
		t.Fatalf("error = %v, want ErrTooManyChildren", err)
	}
}
