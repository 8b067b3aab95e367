// internal/policy/rules.go
package policy

import (
	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * Compiled rule model.
 *
 * CompiledPolicy is the indexed in-memory representation produced by the
 * compiler and consumed read-only by the engine. The index shape is
 * scopeKey -> subjectKey -> operation full code (or "*") -> []*CompiledRule,
 * giving O(1) bucket lookup per (scope, subject, operation) triple.
 *
 * Condition trees are a tagged union (group or leaf, exactly one set) with
 * depth bounded at evaluation time, not by the call stack. The compiler is
 * the only writer of these structures; shared compiled policies support
 * unlimited concurrent readers with no locking here.
 */

// GroupOperator combines the children of a condition group.
type GroupOperator string

const (
	GroupAnd GroupOperator = "and"
	GroupOr  GroupOperator = "or"
)

// ConditionOperator is the closed enum of leaf comparison operators.
type ConditionOperator string

const (
	OpEq         ConditionOperator = "eq"
	OpNe         ConditionOperator = "ne"
	OpGt         ConditionOperator = "gt"
	OpGte        ConditionOperator = "gte"
	OpLt         ConditionOperator = "lt"
	OpLte        ConditionOperator = "lte"
	OpIn         ConditionOperator = "in"
	OpNotIn      ConditionOperator = "not_in"
	OpContains   ConditionOperator = "contains"
	OpStartsWith ConditionOperator = "starts_with"
	OpEndsWith   ConditionOperator = "ends_with"
	OpMatches    ConditionOperator = "matches"
	OpExists     ConditionOperator = "exists"
	OpNotExists  ConditionOperator = "not_exists"
)

// Valid reports whether the operator is a member of the closed enum.
func (op ConditionOperator) Valid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn,
		OpContains, OpStartsWith, OpEndsWith, OpMatches, OpExists, OpNotExists:
		return true
	default:
		return false
	}
}

// Condition is a single leaf comparison against the input.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value,omitempty"`
}

// ConditionNode is a tagged union: exactly one of Group or Leaf is set.
type ConditionNode struct {
	Group *ConditionGroup `json:"group,omitempty"`
	Leaf  *Condition      `json:"leaf,omitempty"`
}

// ConditionGroup combines nested nodes under a boolean operator.
type ConditionGroup struct {
	Operator GroupOperator   `json:"operator"`
	Children []ConditionNode `json:"children"`
}

// ObligationType is the closed enum of enforcement side-instructions.
type ObligationType string

const (
	ObligationMaskFields      ObligationType = "mask_fields"
	ObligationRequireApproval ObligationType = "require_approval"
	ObligationAddAuditTag     ObligationType = "add_audit_tag"
	ObligationNotify          ObligationType = "notify"
	ObligationRateLimit       ObligationType = "rate_limit"
	ObligationTimeRestrict    ObligationType = "time_restrict"
	ObligationRequireMFA      ObligationType = "require_mfa"
	ObligationCustom          ObligationType = "custom"
)

// Valid reports whether the obligation type is a member of the closed enum.
func (t ObligationType) Valid() bool {
	switch t {
	case ObligationMaskFields, ObligationRequireApproval, ObligationAddAuditTag,
		ObligationNotify, ObligationRateLimit, ObligationTimeRestrict,
		ObligationRequireMFA, ObligationCustom:
		return true
	default:
		return false
	}
}

// Obligation is a non-blocking enforcement instruction attached to a
// decision. The engine surfaces obligations; callers enforce them.
type Obligation struct {
	Type   ObligationType `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// CompiledRule is one pre-validated rule ready for evaluation.
// The (ScopeType, SubjectType, Priority, Effect, ID) tuple fully determines
// its position in the determinism order; ID is the final, always-
// discriminating tie-break.
type CompiledRule struct {
	ID          string            `json:"id"`
	Effect      types.Effect      `json:"effect"`
	Priority    int               `json:"priority"`
	ScopeType   types.ScopeType   `json:"scopeType"`
	SubjectType types.SubjectType `json:"subjectType"`
	SubjectKey  string            `json:"subjectKey"`
	Condition   *ConditionGroup   `json:"condition,omitempty"`
	Obligations []Obligation      `json:"obligations,omitempty"`
}

// RuleIndex is scopeKey -> subjectKey -> operation full code -> rules.
// Subject keys are composed via IndexSubjectKey; the wildcard subject bucket
// is keyed by the bare "*".
type RuleIndex map[string]map[string]map[string][]*CompiledRule

// CompiledPolicy is the read-only, shareable output of the compiler.
type CompiledPolicy struct {
	PolicyID   string
	Name       string
	TenantID   string
	VersionID  string
	ScopeType  types.ScopeType
	Index      RuleIndex
	RuleCount  int
	CompiledAt int64 // unix nanos, cache diagnostics only
}

// IndexSubjectKey composes the index key for a (subject type, key) pair.
// The wildcard subject is stored under the bare "*" regardless of type.
func IndexSubjectKey(t types.SubjectType, key string) string {
	if key == types.WildcardSubjectKey {
		return types.WildcardSubjectKey
	}
	return string(t) + ":" + key
}
