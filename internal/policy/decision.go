// internal/policy/decision.go
package policy

import (
	"time"

	"github.com/arbiterhq/arbiter/internal/types"
)

// EvaluatorVersion is stamped into decision metadata so audit records can be
// tied to the engine revision that produced them.
const EvaluatorVersion = "arbiter-engine/1"

// MatchedRule is a compiled rule enriched at evaluation time with the policy
// it came from and, when conditions were present, their boolean result.
// Ephemeral: constructed fresh per evaluation, never cached across requests.
type MatchedRule struct {
	PolicyID        string        `json:"policyId"`
	PolicyName      string        `json:"policyName,omitempty"`
	VersionID       string        `json:"versionId,omitempty"`
	Rule            *CompiledRule `json:"rule"`
	ConditionResult *bool         `json:"conditionResult,omitempty"`
}

// DecisionMetadata describes one evaluation for audit correlation.
type DecisionMetadata struct {
	DecisionID       types.DecisionID `json:"decisionId"`
	Timestamp        time.Time        `json:"timestamp"`
	Duration         time.Duration    `json:"durationNs"`
	EvaluatorVersion string           `json:"evaluatorVersion"`
	CorrelationID    string           `json:"correlationId,omitempty"`
}

// TraceStep records one observational step of the evaluation state machine.
// Trace steps never affect the decision.
type TraceStep struct {
	Name     string        `json:"name"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// DecisionDebug carries evaluation internals when tracing is requested.
type DecisionDebug struct {
	RulesScanned      int         `json:"rulesScanned"`
	RulesMatched      int         `json:"rulesMatched"`
	PoliciesEvaluated int         `json:"policiesEvaluated"`
	Trace             []TraceStep `json:"trace,omitempty"`
}

// PolicyDecision is the immutable outcome of one evaluation. The engine does
// not persist decisions; the caller owns the returned value's lifetime.
type PolicyDecision struct {
	Effect       types.Effect     `json:"effect"`
	Allowed      bool             `json:"allowed"`
	Obligations  []Obligation     `json:"obligations,omitempty"`
	Reasons      []string         `json:"reasons"`
	MatchedRules []MatchedRule    `json:"matchedRules,omitempty"`
	DecidingRule *MatchedRule     `json:"decidingRule,omitempty"`
	Metadata     DecisionMetadata `json:"metadata"`
	Debug        *DecisionDebug   `json:"debug,omitempty"`
}
