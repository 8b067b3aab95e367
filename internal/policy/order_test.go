// internal/policy/order_test.go
package policy

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/arbiterhq/arbiter/internal/types"
)

func rule(id string, scope types.ScopeType, subject types.SubjectType, priority int, effect types.Effect) *CompiledRule {
	return &CompiledRule{
		ID:          id,
		Effect:      effect,
		Priority:    priority,
		ScopeType:   scope,
		SubjectType: subject,
		SubjectKey:  "k",
	}
}

func TestCompareRules_TieBreakSequence(t *testing.T) {
	tests := []struct {
		name string
		a, b *CompiledRule
		want int // -1 means a sorts before b
	}{
		{
			name: "record scope beats global",
			a:    rule("r1", types.ScopeRecord, types.SubjectKCGroup, 99, types.EffectAllow),
			b:    rule("r2", types.ScopeGlobal, types.SubjectUser, 0, types.EffectDeny),
			want: -1,
		},
		{
			name: "entity_version beats entity",
			a:    rule("r1", types.ScopeEntityVersion, types.SubjectUser, 0, types.EffectAllow),
			b:    rule("r2", types.ScopeEntity, types.SubjectUser, 0, types.EffectAllow),
			want: -1,
		},
		{
			name: "user beats role at equal scope",
			a:    rule("r1", types.ScopeEntity, types.SubjectUser, 50, types.EffectAllow),
			b:    rule("r2", types.ScopeEntity, types.SubjectKCRole, 0, types.EffectDeny),
			want: -1,
		},
		{
			name: "service beats kc_role",
			a:    rule("r1", types.ScopeModule, types.SubjectService, 0, types.EffectAllow),
			b:    rule("r2", types.ScopeModule, types.SubjectKCRole, 0, types.EffectAllow),
			want: -1,
		},
		{
			name: "lower priority number wins at equal specificity",
			a:    rule("r1", types.ScopeEntity, types.SubjectUser, 10, types.EffectAllow),
			b:    rule("r2", types.ScopeEntity, types.SubjectUser, 20, types.EffectDeny),
			want: -1,
		},
		{
			name: "deny before allow at equal priority",
			a:    rule("r1", types.ScopeEntity, types.SubjectUser, 10, types.EffectDeny),
			b:    rule("r2", types.ScopeEntity, types.SubjectUser, 10, types.EffectAllow),
			want: -1,
		},
		{
			name: "rule id lexicographic as final tie-break",
			a:    rule("aaa", types.ScopeEntity, types.SubjectUser, 10, types.EffectDeny),
			b:    rule("bbb", types.ScopeEntity, types.SubjectUser, 10, types.EffectDeny),
			want: -1,
		},
		{
			name: "identical ids compare equal",
			a:    rule("same", types.ScopeEntity, types.SubjectUser, 10, types.EffectDeny),
			b:    rule("same", types.ScopeEntity, types.SubjectUser, 10, types.EffectDeny),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompareRules(tt.a, tt.b); got != tt.want {
				t.Errorf("CompareRules(a, b) = %d, want %d", got, tt.want)
			}
			if tt.want != 0 {
				if got := CompareRules(tt.b, tt.a); got != -tt.want {
					t.Errorf("CompareRules(b, a) = %d, want %d", got, -tt.want)
				}
			}
		})
	}
}

func genRule() gopter.Gen {
	scopes := []types.ScopeType{types.ScopeGlobal, types.ScopeModule, types.ScopeEntity, types.ScopeEntityVersion, types.ScopeRecord}
	subjects := []types.SubjectType{types.SubjectKCGroup, types.SubjectKCRole, types.SubjectService, types.SubjectUser}
	effects := []types.Effect{types.EffectAllow, types.EffectDeny}

	return gopter.CombineGens(
		gen.IntRange(0, len(scopes)-1),
		gen.IntRange(0, len(subjects)-1),
		gen.IntRange(0, 100),
		gen.IntRange(0, 1),
		gen.IntRange(0, 1_000_000),
	).Map(func(vals []interface{}) *CompiledRule {
		return rule(
			fmt.Sprintf("rule-%07d", vals[4].(int)),
			scopes[vals[0].(int)],
			subjects[vals[1].(int)],
			vals[2].(int),
			effects[vals[3].(int)],
		)
	})
}

func TestCompareRules_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("antisymmetric", prop.ForAll(
		func(a, b *CompiledRule) bool {
			return CompareRules(a, b) == -CompareRules(b, a)
		},
		genRule(), genRule(),
	))

	properties.Property("transitive", prop.ForAll(
		func(a, b, c *CompiledRule) bool {
			if CompareRules(a, b) <= 0 && CompareRules(b, c) <= 0 {
				return CompareRules(a, c) <= 0
			}
			return true
		},
		genRule(), genRule(), genRule(),
	))

	properties.Property("distinct ids never compare equal", prop.ForAll(
		func(a, b *CompiledRule) bool {
			if a.ID == b.ID {
				return true
			}
			return CompareRules(a, b) != 0
		},
		genRule(), genRule(),
	))

	properties.TestingRun(t)
}

func TestSortMatchedRules_DeterministicAcrossPermutations(t *testing.T) {
	rules := []*CompiledRule{
		rule("r-allow-global", types.ScopeGlobal, types.SubjectKCGroup, 50, types.EffectAllow),
		rule("r-deny-entity", types.ScopeEntity, types.SubjectKCRole, 10, types.EffectDeny),
		rule("r-allow-record", types.ScopeRecord, types.SubjectUser, 90, types.EffectAllow),
		rule("r-deny-module", types.ScopeModule, types.SubjectService, 5, types.EffectDeny),
	}

	order1 := []MatchedRule{{Rule: rules[0]}, {Rule: rules[1]}, {Rule: rules[2]}, {Rule: rules[3]}}
	order2 := []MatchedRule{{Rule: rules[3]}, {Rule: rules[2]}, {Rule: rules[1]}, {Rule: rules[0]}}

	SortMatchedRules(order1)
	SortMatchedRules(order2)

	ids1 := make([]string, len(order1))
	ids2 := make([]string, len(order2))
	for i := range order1 {
		ids1[i] = order1[i].Rule.ID
		ids2[i] = order2[i].Rule.ID
	}

	if !reflect.DeepEqual(ids1, ids2) {
		t.Errorf("sorted orders differ: %v vs %v", ids1, ids2)
	}
	want := []string{"r-allow-record", "r-deny-entity", "r-deny-module", "r-allow-global"}
	if !reflect.DeepEqual(ids1, want) {
		t.Errorf("sorted order = %v, want %v", ids1, want)
	}
}
