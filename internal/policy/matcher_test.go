// internal/policy/matcher_test.go
package policy

import (
	"reflect"
	"testing"

	"github.com/arbiterhq/arbiter/internal/types"
)

func TestSubjectKeysFor(t *testing.T) {
	tests := []struct {
		name    string
		subject types.Subject
		want    []SubjectKeyPair
	}{
		{
			name:    "plain user",
			subject: types.Subject{PrincipalID: "u-1", Kind: types.PrincipalUser},
			want:    []SubjectKeyPair{{Type: types.SubjectUser, Key: "u-1"}},
		},
		{
			name:    "service principal gets both user and service keys",
			subject: types.Subject{PrincipalID: "svc-1", Kind: types.PrincipalService},
			want: []SubjectKeyPair{
				{Type: types.SubjectUser, Key: "svc-1"},
				{Type: types.SubjectService, Key: "svc-1"},
			},
		},
		{
			name: "roles and groups in declaration order",
			subject: types.Subject{
				PrincipalID: "u-2",
				Kind:        types.PrincipalUser,
				Roles:       []string{"admin", "auditor"},
				Groups:      []string{"finance"},
			},
			want: []SubjectKeyPair{
				{Type: types.SubjectUser, Key: "u-2"},
				{Type: types.SubjectKCRole, Key: "admin"},
				{Type: types.SubjectKCRole, Key: "auditor"},
				{Type: types.SubjectKCGroup, Key: "finance"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubjectKeysFor(tt.subject); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SubjectKeysFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

// indexPolicy builds a one-scope compiled policy from rules keyed by
// (subjectKey, operation).
func indexPolicy(scopeKey string, entries map[string]map[string][]*CompiledRule) *CompiledPolicy {
	return &CompiledPolicy{
		PolicyID:  "p-test",
		Name:      "test policy",
		TenantID:  "acme",
		VersionID: "v1",
		Index:     RuleIndex{scopeKey: entries},
	}
}

func TestFindMatchingRules_SubjectAndWildcardBuckets(t *testing.T) {
	userRule := rule("r-user", types.ScopeEntity, types.SubjectUser, 10, types.EffectAllow)
	roleRule := rule("r-role", types.ScopeEntity, types.SubjectKCRole, 10, types.EffectDeny)
	wildRule := rule("r-wild", types.ScopeEntity, types.SubjectUser, 50, types.EffectAllow)
	wildRule.SubjectKey = types.WildcardSubjectKey
	otherRule := rule("r-other-user", types.ScopeEntity, types.SubjectUser, 10, types.EffectDeny)

	cp := indexPolicy("entity:invoice", map[string]map[string][]*CompiledRule{
		"user:u-123":     {"invoice.approve": {userRule}},
		"kc_role:admin":  {"invoice.approve": {roleRule}},
		"user:u-999":     {"invoice.approve": {otherRule}},
		"*":              {"invoice.approve": {wildRule}},
	})

	input := testInput()
	input.Subject.Roles = []string{"admin"}
	keys := SubjectKeysFor(input.Subject)

	out, err := FindMatchingRules(cp, "entity:invoice", keys, "invoice.approve", input, 10)
	if err != nil {
		t.Fatalf("FindMatchingRules() error = %v, want nil", err)
	}

	got := make(map[string]bool)
	for _, m := range out.Matched {
		got[m.Rule.ID] = true
	}
	for _, want := range []string{"r-user", "r-role", "r-wild"} {
		if !got[want] {
			t.Errorf("rule %s not matched, matched set = %v", want, got)
		}
	}
	if got["r-other-user"] {
		t.Errorf("rule for another principal matched")
	}
	if out.Scanned != 3 {
		t.Errorf("Scanned = %d, want 3", out.Scanned)
	}
}

func TestFindMatchingRules_WildcardOperation(t *testing.T) {
	exact := rule("r-exact", types.ScopeEntity, types.SubjectUser, 10, types.EffectAllow)
	anyOp := rule("r-any-op", types.ScopeEntity, types.SubjectUser, 20, types.EffectDeny)

	cp := indexPolicy("entity:invoice", map[string]map[string][]*CompiledRule{
		"user:u-123": {
			"invoice.approve":       {exact},
			types.WildcardOperation: {anyOp},
		},
	})

	input := testInput()
	out, err := FindMatchingRules(cp, "entity:invoice", SubjectKeysFor(input.Subject), "invoice.approve", input, 10)
	if err != nil {
		t.Fatalf("FindMatchingRules() error = %v, want nil", err)
	}
	if len(out.Matched) != 2 {
		t.Fatalf("len(matched) = %d, want 2 (exact + wildcard operation)", len(out.Matched))
	}
}

func TestFindMatchingRules_ConditionFiltering(t *testing.T) {
	passing := rule("r-pass", types.ScopeEntity, types.SubjectUser, 10, types.EffectAllow)
	passing.Condition = group(GroupAnd, leaf("resource.attributes.amount", OpGt, float64(100)))
	failing := rule("r-fail", types.ScopeEntity, types.SubjectUser, 10, types.EffectAllow)
	failing.Condition = group(GroupAnd, leaf("resource.attributes.amount", OpGt, float64(10000)))

	cp := indexPolicy("entity:invoice", map[string]map[string][]*CompiledRule{
		"user:u-123": {"invoice.approve": {passing, failing}},
	})

	input := testInput()
	out, err := FindMatchingRules(cp, "entity:invoice", SubjectKeysFor(input.Subject), "invoice.approve", input, 10)
	if err != nil {
		t.Fatalf("FindMatchingRules() error = %v, want nil", err)
	}
	if len(out.Matched) != 1 || out.Matched[0].Rule.ID != "r-pass" {
		t.Fatalf("matched = %v, want only r-pass", out.Matched)
	}
	if out.Scanned != 2 {
		t.Errorf("Scanned = %d, want 2 (both candidates considered)", out.Scanned)
	}
	if out.Matched[0].ConditionResult == nil || !*out.Matched[0].ConditionResult {
		t.Errorf("ConditionResult = %v, want true", out.Matched[0].ConditionResult)
	}
}

func TestFindMatchingRules_NoScopeBucket(t *testing.T) {
	cp := indexPolicy("entity:invoice", map[string]map[string][]*CompiledRule{})
	input := testInput()

	out, err := FindMatchingRules(cp, "record:invoice:inv-001", SubjectKeysFor(input.Subject), "invoice.approve", input, 10)
	if err != nil {
		t.Fatalf("FindMatchingRules() error = %v, want nil", err)
	}
	if len(out.Matched) != 0 || out.Scanned != 0 {
		t.Errorf("matched = %d, scanned = %d, want 0/0", len(out.Matched), out.Scanned)
	}
}
