package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for Arbiter operations.
var (
	// ErrExpressionTooDeep indicates a condition tree exceeds the maximum
	// nesting depth. Always a hard evaluation error, never a silent deny.
	ErrExpressionTooDeep = errors.New("condition expression exceeds maximum depth")

	// ErrInvalidExpression indicates a malformed condition tree.
	ErrInvalidExpression = errors.New("invalid condition expression")

	// ErrTooManyChildren indicates a condition group exceeds MaxConditionChildren.
	ErrTooManyChildren = errors.New("condition group has too many children")

	// ErrTooManyInValues indicates an in/not_in list exceeds MaxInValues.
	ErrTooManyInValues = errors.New("in operator has too many values")

	// ErrUnknownScopeType indicates a definition uses a scope outside the closed enum.
	ErrUnknownScopeType = errors.New("unknown scope type")

	// ErrUnknownSubjectType indicates a definition uses a subject type outside the closed enum.
	ErrUnknownSubjectType = errors.New("unknown subject type")

	// ErrUnknownEffect indicates a definition uses an effect outside the closed enum.
	ErrUnknownEffect = errors.New("unknown effect")

	// ErrUnknownConditionOperator indicates a leaf operator outside the closed enum.
	ErrUnknownConditionOperator = errors.New("unknown condition operator")

	// ErrUnknownGroupOperator indicates a group operator other than and/or.
	ErrUnknownGroupOperator = errors.New("unknown group operator")

	// ErrUnknownObligationType indicates an obligation type outside the closed enum.
	ErrUnknownObligationType = errors.New("unknown obligation type")

	// ErrNoOperations indicates a rule definition binds to no operations.
	ErrNoOperations = errors.New("rule has no operations")

	// ErrDuplicateRuleID indicates two rules in one policy share an identifier.
	ErrDuplicateRuleID = errors.New("duplicate rule identifier")

	// ErrPolicyNotFound indicates a policy or version could not be located.
	ErrPolicyNotFound = errors.New("policy or version not found")
)

// ErrorCode is the stable code enum carried by EvaluationError.
type ErrorCode string

const (
	ErrCodeTimeout           ErrorCode = "timeout"
	ErrCodeInvalidExpression ErrorCode = "invalid_expression"
	ErrCodeExpressionTooDeep ErrorCode = "expression_too_deep"
	ErrCodeTooManyRules      ErrorCode = "too_many_rules"
	ErrCodePolicyNotFound    ErrorCode = "policy_not_found"
	ErrCodeCompileError      ErrorCode = "compile_error"
	ErrCodeFactsResolution   ErrorCode = "facts_resolution_error"
	ErrCodeInvalidInput      ErrorCode = "invalid_input"
	ErrCodeInternal          ErrorCode = "internal_error"
)

// EvaluationError is the typed failure surfaced by Evaluate when the engine
// is not converting errors into fail-closed deny decisions.
type EvaluationError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("policy evaluation failed (%s): %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("policy evaluation failed (%s): %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// NewEvaluationError constructs a typed evaluation error.
func NewEvaluationError(code ErrorCode, message string, cause error) *EvaluationError {
	return &EvaluationError{Code: code, Message: message, Cause: cause}
}

// AccessDeniedError is raised by Enforce when the decision is not allowed.
// It carries the reasons and deciding rule so enforcement call sites can log
// a complete audit line without re-evaluating.
type AccessDeniedError struct {
	Reasons      []string
	DecidingRule string
}

// Error returns the error message.
func (e *AccessDeniedError) Error() string {
	msg := "access denied"
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, "; ")
	}
	if e.DecidingRule != "" {
		msg += " (rule " + e.DecidingRule + ")"
	}
	return msg
}
