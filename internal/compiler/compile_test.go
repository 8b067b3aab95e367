// internal/compiler/compile_test.go
package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/arbiterhq/arbiter/internal/policy"
	"github.com/arbiterhq/arbiter/internal/types"
)

func validDefinition() *types.PolicyDefinition {
	return &types.PolicyDefinition{
		ID:        "p-invoices",
		TenantID:  "acme",
		Name:      "invoice approvals",
		VersionID: "v1",
		ScopeType: types.ScopeEntity,
		ScopeRef:  types.ScopeRef{EntityType: "invoice"},
		Rules: []types.RuleDefinition{
			{
				ID:          "r-1",
				Effect:      types.EffectAllow,
				Priority:    10,
				SubjectType: types.SubjectKCRole,
				SubjectKey:  "approver",
				Operations:  []string{"invoice.approve"},
				Condition: &types.ConditionNode{
					Operator: "and",
					Children: []types.ConditionNode{
						{Field: "resource.attributes.amount", Op: "lte", Value: float64(10000)},
					},
				},
				Obligations: []types.ObligationDefinition{
					{Type: "add_audit_tag", Params: map[string]any{"tag": "approval"}},
				},
			},
			{
				ID:          "r-2",
				Effect:      types.EffectDeny,
				Priority:    1,
				SubjectType: types.SubjectUser,
				SubjectKey:  "*",
				Operations:  []string{"*"},
			},
		},
	}
}

func TestCompile_BuildsIndex(t *testing.T) {
	cp, err := Compile(validDefinition())
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}

	if cp.RuleCount != 2 {
		t.Errorf("RuleCount = %d, want 2", cp.RuleCount)
	}
	buckets, ok := cp.Index["entity:invoice"]
	if !ok {
		t.Fatalf("index missing scope key entity:invoice, keys = %v", cp.Index)
	}
	if len(buckets["kc_role:approver"]["invoice.approve"]) != 1 {
		t.Errorf("approver bucket missing rule")
	}
	// Wildcard subject key is stored bare regardless of subject type.
	if len(buckets["*"]["*"]) != 1 {
		t.Errorf("wildcard bucket missing rule, buckets = %v", buckets)
	}

	compiled := buckets["kc_role:approver"]["invoice.approve"][0]
	if compiled.ScopeType != types.ScopeEntity {
		t.Errorf("ScopeType = %v, want entity (inherited from policy)", compiled.ScopeType)
	}
	if compiled.Condition == nil || len(compiled.Condition.Children) != 1 {
		t.Errorf("condition tree not compiled: %+v", compiled.Condition)
	}
	if len(compiled.Obligations) != 1 || compiled.Obligations[0].Type != policy.ObligationAddAuditTag {
		t.Errorf("obligations = %v, want [add_audit_tag]", compiled.Obligations)
	}
}

func TestCompile_BareLeafWrappedInAndGroup(t *testing.T) {
	def := validDefinition()
	def.Rules[0].Condition = &types.ConditionNode{Field: "context.network", Op: "eq", Value: "corp"}

	cp, err := Compile(def)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	compiled := cp.Index["entity:invoice"]["kc_role:approver"]["invoice.approve"][0]
	if compiled.Condition.Operator != policy.GroupAnd || len(compiled.Condition.Children) != 1 {
		t.Errorf("bare leaf not wrapped: %+v", compiled.Condition)
	}
}

func TestCompile_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.PolicyDefinition)
		wantErr error
	}{
		{
			name:    "unknown scope type",
			mutate:  func(d *types.PolicyDefinition) { d.ScopeType = "galaxy" },
			wantErr: types.ErrUnknownScopeType,
		},
		{
			name:    "unknown effect",
			mutate:  func(d *types.PolicyDefinition) { d.Rules[0].Effect = "maybe" },
			wantErr: types.ErrUnknownEffect,
		},
		{
			name:    "unknown subject type",
			mutate:  func(d *types.PolicyDefinition) { d.Rules[0].SubjectType = "robot" },
			wantErr: types.ErrUnknownSubjectType,
		},
		{
			name:    "no operations",
			mutate:  func(d *types.PolicyDefinition) { d.Rules[0].Operations = nil },
			wantErr: types.ErrNoOperations,
		},
		{
			name:    "duplicate rule ids",
			mutate:  func(d *types.PolicyDefinition) { d.Rules[1].ID = "r-1" },
			wantErr: types.ErrDuplicateRuleID,
		},
		{
			name: "unknown condition operator",
			mutate: func(d *types.PolicyDefinition) {
				d.Rules[0].Condition.Children[0].Op = "fuzzy_match"
			},
			wantErr: types.ErrUnknownConditionOperator,
		},
		{
			name: "unknown group operator",
			mutate: func(d *types.PolicyDefinition) {
				d.Rules[0].Condition.Operator = "xor"
			},
			wantErr: types.ErrUnknownGroupOperator,
		},
		{
			name: "unknown obligation type",
			mutate: func(d *types.PolicyDefinition) {
				d.Rules[0].Obligations[0].Type = "self_destruct"
			},
			wantErr: types.ErrUnknownObligationType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(def)
			_, err := Compile(def)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Compile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompile_DepthLimitAtAuthoringTime(t *testing.T) {
	node := &types.ConditionNode{Field: "context.tenantId", Op: "eq", Value: "acme"}
	for i := 0; i < types.DefaultMaxExpressionDepth+1; i++ {
		node = &types.ConditionNode{Operator: "and", Children: []types.ConditionNode{*node}}
	}
	def := validDefinition()
	def.Rules[0].Condition = node

	_, err := Compile(def)
	if !errors.Is(err, types.ErrExpressionTooDeep) {
		t.Fatalf("Compile() error = %v, want ErrExpressionTooDeep", err)
	}
}

func TestCompile_TooManyInValues(t *testing.T) {
	values := make([]any, types.MaxInValues+1)
	for i := range values {
		values[i] = float64(i)
	}
	def := validDefinition()
	def.Rules[0].Condition = &types.ConditionNode{Field: "resource.attributes.amount", Op: "in", Value: values}

	_, err := Compile(def)
	if !errors.Is(err, types.ErrTooManyInValues) {
		t.Fatalf("Compile() error = %v, want ErrTooManyInValues", err)
	}
}

type mapSource map[string]*types.PolicyDefinition

func (m mapSource) LoadDefinition(_ context.Context, tenantID, versionID string) (*types.PolicyDefinition, error) {
	return m[tenantID+"/"+versionID], nil
}

func TestCache_CompileOnceAndInvalidate(t *testing.T) {
	src := mapSource{"acme/v1": validDefinition()}
	cache, err := NewCache(src, nil)
	if err != nil {
		t.Fatalf("NewCache() error = %v, want nil", err)
	}

	first, err := cache.GetOrCompile(context.Background(), "acme", "v1", false)
	if err != nil {
		t.Fatalf("GetOrCompile() error = %v, want nil", err)
	}
	second, err := cache.GetOrCompile(context.Background(), "acme", "v1", false)
	if err != nil {
		t.Fatalf("GetOrCompile() error = %v, want nil", err)
	}
	if first != second {
		t.Errorf("cache returned a different pointer on hit")
	}

	fresh, err := cache.GetOrCompile(context.Background(), "acme", "v1", true)
	if err != nil {
		t.Fatalf("GetOrCompile(skipCache) error = %v, want nil", err)
	}
	if fresh == first {
		t.Errorf("skipCache returned the cached pointer, want recompile")
	}

	cache.Invalidate("acme", "v1")
	if cache.Len() != 0 {
		t.Errorf("Len() = %d after invalidation, want 0", cache.Len())
	}

	missing, err := cache.GetOrCompile(context.Background(), "acme", "v9", false)
	if err != nil {
		t.Fatalf("GetOrCompile(missing) error = %v, want nil", err)
	}
	if missing != nil {
		t.Errorf("missing version = %v, want nil", missing)
	}
}
