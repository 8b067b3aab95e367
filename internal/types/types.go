// Package types provides domain models shared across Arbiter components.
//
// Zero-dependency design: types.go, definitions.go and errors.go use only the
// standard library. ID utilities in ids.go import uuid but are isolated for
// selective inclusion.
//
// Separation from the engine: internal/policy consumes these types but owns
// evaluation semantics. Wire-format documents (YAML/JSON policy definitions)
// live in definitions.go and are validated at the compiler boundary, so the
// evaluator only ever sees already-validated structures.
package types

import "time"

// Effect is the outcome a rule contributes to a decision.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Valid reports whether the effect is a member of the closed enum.
func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// ScopeType is the granularity at which a policy applies.
type ScopeType string

const (
	ScopeGlobal        ScopeType = "global"
	ScopeModule        ScopeType = "module"
	ScopeEntity        ScopeType = "entity"
	ScopeEntityVersion ScopeType = "entity_version"
	ScopeRecord        ScopeType = "record"
)

// Specificity returns the scope rank used by the determinism comparator.
// record(5) > entity_version(4) > entity(3) > module(2) > global(1).
// Unknown scope types rank 0 and lose every specificity comparison.
func (s ScopeType) Specificity() int {
	switch s {
	case ScopeRecord:
		return 5
	case ScopeEntityVersion:
		return 4
	case ScopeEntity:
		return 3
	case ScopeModule:
		return 2
	case ScopeGlobal:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the scope type is a member of the closed enum.
func (s ScopeType) Valid() bool {
	return s.Specificity() > 0
}

// SubjectType identifies the kind of principal a rule is filed under.
type SubjectType string

const (
	SubjectKCGroup SubjectType = "kc_group"
	SubjectKCRole  SubjectType = "kc_role"
	SubjectService SubjectType = "service"
	SubjectUser    SubjectType = "user"
)

// Specificity returns the subject rank used by the determinism comparator.
// user(4) > service(3) > kc_role(2) > kc_group(1).
func (s SubjectType) Specificity() int {
	switch s {
	case SubjectUser:
		return 4
	case SubjectService:
		return 3
	case SubjectKCRole:
		return 2
	case SubjectKCGroup:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the subject type is a member of the closed enum.
func (s SubjectType) Valid() bool {
	return s.Specificity() > 0
}

// Wildcard keys recognized by the rule index.
const (
	WildcardSubjectKey = "*"
	WildcardOperation  = "*"
)

// PrincipalKind distinguishes human users from machine identities.
type PrincipalKind string

const (
	PrincipalUser    PrincipalKind = "user"
	PrincipalService PrincipalKind = "service"
)

// Subject describes who is requesting access.
type Subject struct {
	PrincipalID string         `json:"principalId"`
	Kind        PrincipalKind  `json:"kind"`
	Roles       []string       `json:"roles,omitempty"`
	Groups      []string       `json:"groups,omitempty"`
	OrgUnits    []string       `json:"orgUnits,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Resource describes what is being accessed.
type Resource struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Version    string         `json:"version,omitempty"`
	Module     string         `json:"module,omitempty"`
	Owner      string         `json:"owner,omitempty"`
	CostCenter string         `json:"costCenter,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Action identifies the operation being performed.
type Action struct {
	Namespace string `json:"namespace"`
	Code      string `json:"code"`
}

// FullCode returns the catalog identifier "<namespace>.<code>",
// or just the code when the namespace is empty.
func (a Action) FullCode() string {
	if a.Namespace == "" {
		return a.Code
	}
	return a.Namespace + "." + a.Code
}

// RequestContext carries when/where metadata for one evaluation.
type RequestContext struct {
	TenantID      string         `json:"tenantId"`
	Timestamp     time.Time      `json:"timestamp,omitempty"`
	Network       string         `json:"network,omitempty"`
	Geo           string         `json:"geo,omitempty"`
	Channel       string         `json:"channel,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

// PolicyInput is the immutable per-evaluation value the engine decides on.
// Never mutated after construction; evaluation is a pure function of
// (PolicyInput, compiled rule set, options).
type PolicyInput struct {
	Subject  Subject        `json:"subject"`
	Resource Resource       `json:"resource"`
	Action   Action         `json:"action"`
	Context  RequestContext `json:"context"`
}

// Operation is a catalog entry an action resolves against.
type Operation struct {
	ID          string `json:"id" db:"id"`
	Namespace   string `json:"namespace" db:"namespace"`
	Code        string `json:"code" db:"code"`
	Description string `json:"description,omitempty" db:"description"`
}

// FullCode returns the catalog identifier "<namespace>.<code>".
func (o Operation) FullCode() string {
	if o.Namespace == "" {
		return o.Code
	}
	return o.Namespace + "." + o.Code
}

// ScopeKeyFor derives the rule-index scope key for a resource at the given
// scope granularity. Compiler and matcher must agree on this derivation;
// ScopeKeyFromRef is the definition-side counterpart.
func ScopeKeyFor(scope ScopeType, r Resource) string {
	switch scope {
	case ScopeGlobal:
		return "global"
	case ScopeModule:
		return "module:" + r.Module
	case ScopeEntity:
		return "entity:" + r.Type
	case ScopeEntityVersion:
		return "entity_version:" + r.Type + ":" + r.Version
	case ScopeRecord:
		return "record:" + r.Type + ":" + r.ID
	default:
		return ""
	}
}

// ScopeKeyFromRef derives the scope key a policy definition is indexed under.
func ScopeKeyFromRef(scope ScopeType, ref ScopeRef) string {
	switch scope {
	case ScopeGlobal:
		return "global"
	case ScopeModule:
		return "module:" + ref.Module
	case ScopeEntity:
		return "entity:" + ref.EntityType
	case ScopeEntityVersion:
		return "entity_version:" + ref.EntityType + ":" + ref.EntityVersion
	case ScopeRecord:
		return "record:" + ref.EntityType + ":" + ref.RecordID
	default:
		return ""
	}
}

// Resource limits enforced by the engine to keep single evaluations bounded.
const (
	// DefaultMaxExpressionDepth bounds condition tree nesting. Exceeding it
	// is a hard evaluation error, never a silent truncation.
	DefaultMaxExpressionDepth = 10

	// DefaultMaxRulesScanned caps total rules considered across all policies
	// in one evaluation. Breaching it degrades to a decision over the
	// partial rule set collected so far.
	DefaultMaxRulesScanned = 1000

	// DefaultEvaluationTimeout is the wall-clock budget for one evaluation,
	// checked between policy iterations.
	DefaultEvaluationTimeout = 100 * time.Millisecond

	// DefaultMaxMatchesReturned caps the matchedRules slice in explain output.
	DefaultMaxMatchesReturned = 100

	// MaxConditionChildren bounds fan-out per condition group so a single
	// group cannot dominate the scan budget.
	MaxConditionChildren = 64

	// MaxInValues limits in/not_in value lists to prevent quadratic
	// membership cost.
	MaxInValues = 64
)
