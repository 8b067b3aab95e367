package types

import (
	"testing"
	"time"
)

func TestScopeSpecificityOrdering(t *testing.T) {
	ordered := []ScopeType{ScopeGlobal, ScopeModule, ScopeEntity, ScopeEntityVersion, ScopeRecord}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Specificity() <= ordered[i-1].Specificity() {
			t.Errorf("%s specificity %d not above %s specificity %d",
				ordered[i], ordered[i].Specificity(), ordered[i-1], ordered[i-1].Specificity())
		}
	}
	if ScopeType("planet").Specificity() != 0 {
		t.Errorf("unknown scope specificity = %d, want 0", ScopeType("planet").Specificity())
	}
	if ScopeType("planet").Valid() {
		t.Errorf("unknown scope reported valid")
	}
}

func TestSubjectSpecificityOrdering(t *testing.T) {
	ordered := []SubjectType{SubjectKCGroup, SubjectKCRole, SubjectService, SubjectUser}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Specificity() <= ordered[i-1].Specificity() {
			t.Errorf("%s specificity %d not above %s specificity %d",
				ordered[i], ordered[i].Specificity(), ordered[i-1], ordered[i-1].Specificity())
		}
	}
}

func TestScopeKeys(t *testing.T) {
	r := Resource{Type: "invoice", ID: "inv-001", Version: "v2", Module: "billing"}

	tests := []struct {
		scope ScopeType
		want  string
	}{
		{ScopeGlobal, "global"},
		{ScopeModule, "module:billing"},
		{ScopeEntity, "entity:invoice"},
		{ScopeEntityVersion, "entity_version:invoice:v2"},
		{ScopeRecord, "record:invoice:inv-001"},
		{ScopeType("planet"), ""},
	}
	for _, tt := range tests {
		if got := ScopeKeyFor(tt.scope, r); got != tt.want {
			t.Errorf("ScopeKeyFor(%s) = %q, want %q", tt.scope, got, tt.want)
		}
	}

	// Definition-side derivation must land in the same index buckets.
	ref := ScopeRef{EntityType: "invoice", EntityVersion: "v2", RecordID: "inv-001", Module: "billing"}
	for _, tt := range tests {
		if got := ScopeKeyFromRef(tt.scope, ref); got != tt.want {
			t.Errorf("ScopeKeyFromRef(%s) = %q, want %q", tt.scope, got, tt.want)
		}
	}
}

func TestFullCode(t *testing.T) {
	if got := (Action{Namespace: "invoice", Code: "approve"}).FullCode(); got != "invoice.approve" {
		t.Errorf("Action.FullCode() = %q, want invoice.approve", got)
	}
	if got := (Action{Code: "login"}).FullCode(); got != "login" {
		t.Errorf("namespace-less Action.FullCode() = %q, want login", got)
	}
	if got := (Operation{Namespace: "invoice", Code: "read"}).FullCode(); got != "invoice.read" {
		t.Errorf("Operation.FullCode() = %q, want invoice.read", got)
	}
}

func TestRuleIDsSortByCreationTime(t *testing.T) {
	a := NewRuleID()
	time.Sleep(2 * time.Millisecond)
	b := NewRuleID()
	if !(string(a) < string(b)) {
		t.Errorf("rule IDs %s and %s not in creation order", a, b)
	}
}

func TestDecisionIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewDecisionID()
	got := DecisionIDTime(id)
	if got.Before(before) || got.After(time.Now().Add(time.Second)) {
		t.Errorf("DecisionIDTime() = %v, want roughly now", got)
	}
	if !DecisionIDTime(DecisionID("not-a-uuid")).IsZero() {
		t.Errorf("DecisionIDTime(garbage) not zero")
	}
}

func TestParseIDs(t *testing.T) {
	valid := string(NewPolicyID())
	if _, err := ParsePolicyID(valid); err != nil {
		t.Errorf("ParsePolicyID(%s) error = %v, want nil", valid, err)
	}
	if _, err := ParsePolicyID("p-not-a-uuid"); err == nil {
		t.Errorf("ParsePolicyID accepted a malformed ID")
	}
	if _, err := ParseRuleID("r-not-a-uuid"); err == nil {
		t.Errorf("ParseRuleID accepted a malformed ID")
	}
}
