// internal/policy/engine.go
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/arbiterhq/arbiter/internal/types"
)

/*
 * Evaluation orchestration.
 *
 * Drives one evaluation through a strictly sequential state machine:
 * resolving-scope -> matching-rules -> resolving-effect ->
 * processing-obligations -> done, with a terminal error state.
 *
 * Budget enforcement:
 *   - wall-clock deadline computed before any work, checked before each
 *     policy; breach raises a timeout error
 *   - maxRulesScanned checked before each policy; breach breaks the loop and
 *     degrades gracefully to a decision over the partial rule set
 *   - maxExpressionDepth enforced inside condition evaluation as a hard error
 *
 * Fail-mode: in failMode=closed (default) or options.Strict, any internal
 * error is swallowed and converted into an explicit deny decision embedding
 * the error text; callers never receive an unexpected failure from Evaluate
 * in that mode. failMode=open propagates typed EvaluationErrors instead and
 * is documented as reducing security guarantees.
 *
 * Evaluation is stateless and re-entrant: shared compiled policies are read
 * only, all other state is call-local.
 */

// FailMode selects how internal engine errors surface.
type FailMode string

const (
	// FailClosed converts internal errors into explicit deny decisions.
	FailClosed FailMode = "closed"

	// FailOpen propagates typed evaluation errors to the caller. Opt-in for
	// environments prioritizing availability over strict enforcement.
	FailOpen FailMode = "open"
)

// PolicyRef identifies one applicable policy returned by scope resolution.
type PolicyRef struct {
	ID        string
	Name      string
	VersionID string
	ScopeType types.ScopeType
}

// ScopeResolver determines which policies apply to a resource before any
// rules are scanned.
type ScopeResolver interface {
	ResolvePolicies(ctx context.Context, tenantID string, resource types.Resource) ([]PolicyRef, error)
}

// Compiler turns stored policy versions into the indexed representation.
// A nil policy with nil error means the version does not exist.
type Compiler interface {
	GetOrCompile(ctx context.Context, tenantID, versionID string, skipCache bool) (*CompiledPolicy, error)
}

// OperationCatalog resolves action codes against the operation catalog.
// A nil operation with nil error means the code is unknown.
type OperationCatalog interface {
	GetOperation(ctx context.Context, fullCode string) (*types.Operation, error)
	ListOperations(ctx context.Context) ([]types.Operation, error)
}

// Config holds engine-wide settings.
type Config struct {
	FailMode FailMode
	Defaults Options
}

// Validate checks the configuration for closed-enum violations.
func (c *Config) Validate() error {
	if c.FailMode != FailClosed && c.FailMode != FailOpen {
		return fmt.Errorf("fail mode must be %q or %q, got %q", FailClosed, FailOpen, c.FailMode)
	}
	return nil
}

// DefaultConfig returns the fail-closed default configuration.
func DefaultConfig() *Config {
	return &Config{
		FailMode: FailClosed,
		Defaults: DefaultOptions(),
	}
}

// Engine is the outward-facing policy decision engine.
type Engine struct {
	scopes   ScopeResolver
	compiler Compiler
	catalog  OperationCatalog
	metrics  MetricsSink
	tracer   Tracer
	logger   *slog.Logger
	cfg      *Config
}

// NewEngine wires an engine against its collaborators. Metrics, tracer and
// logger may be nil; no-op implementations are substituted.
func NewEngine(scopes ScopeResolver, compiler Compiler, catalog OperationCatalog, cfg *Config, metrics MetricsSink, tracer Tracer, logger *slog.Logger) (*Engine, error) {
	if scopes == nil {
		return nil, fmt.Errorf("scope resolver cannot be nil")
	}
	if compiler == nil {
		return nil, fmt.Errorf("compiler cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if tracer == nil {
		tracer = NopTracer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		scopes:   scopes,
		compiler: compiler,
		catalog:  catalog,
		metrics:  metrics,
		tracer:   tracer,
		logger:   logger,
		cfg:      cfg,
	}, nil
}

// Evaluate produces a decision for one input. Input errors surface
// immediately as typed errors; all other failures are converted into deny
// decisions in fail-closed/strict mode.
func (e *Engine) Evaluate(ctx context.Context, input *types.PolicyInput, opts Options) (*PolicyDecision, error) {
	start := time.Now()

	if err := validateInput(input); err != nil {
		e.metrics.IncCounter(MetricErrors, map[string]string{"code": string(types.ErrCodeInvalidInput)})
		return nil, err
	}
	opts = opts.merged(e.cfg.Defaults)

	ctx, end := e.tracer.StartSpan(ctx, "policy.evaluate")
	defer end()

	decision, err := e.evaluate(ctx, input, opts, start)
	if err != nil {
		var evalErr *types.EvaluationError
		if !errors.As(err, &evalErr) {
			evalErr = types.NewEvaluationError(types.ErrCodeInternal, "unexpected evaluation failure", err)
		}
		e.metrics.IncCounter(MetricErrors, map[string]string{"code": string(evalErr.Code)})

		if e.cfg.FailMode == FailClosed || opts.Strict {
			e.logger.Warn("evaluation failed closed",
				"code", evalErr.Code,
				"error", evalErr,
				"tenant", input.Context.TenantID,
				"correlation_id", input.Context.CorrelationID,
			)
			return e.failClosedDecision(input, evalErr, start), nil
		}
		return nil, evalErr
	}

	e.recordDecision(decision, start)
	return decision, nil
}

// IsAllowed is the hot-path wrapper: defaults, no explain, no trace.
func (e *Engine) IsAllowed(ctx context.Context, input *types.PolicyInput) (bool, error) {
	opts := DefaultOptions()
	opts.Explain = false
	opts.Trace = false
	decision, err := e.Evaluate(ctx, input, opts)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

// Enforce evaluates and raises AccessDeniedError when the result is not
// allowed, carrying the reasons and deciding rule for the enforcement site.
func (e *Engine) Enforce(ctx context.Context, input *types.PolicyInput, opts Options) error {
	decision, err := e.Evaluate(ctx, input, opts)
	if err != nil {
		return err
	}
	if decision.Allowed {
		return nil
	}
	denied := &types.AccessDeniedError{Reasons: decision.Reasons}
	if decision.DecidingRule != nil {
		denied.DecidingRule = decision.DecidingRule.Rule.ID
	}
	return denied
}

// GetPermissions evaluates every catalog operation against one
// subject/resource/context and returns a map of full code to decision.
func (e *Engine) GetPermissions(ctx context.Context, input *types.PolicyInput, opts Options) (map[string]*PolicyDecision, error) {
	if e.catalog == nil {
		return nil, types.NewEvaluationError(types.ErrCodeInternal, "no operation catalog configured", nil)
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	ops, err := e.catalog.ListOperations(ctx)
	if err != nil {
		return nil, types.NewEvaluationError(types.ErrCodeFactsResolution, "listing catalog operations", err)
	}

	permissions := make(map[string]*PolicyDecision, len(ops))
	for _, op := range ops {
		scoped := *input
		scoped.Action = types.Action{Namespace: op.Namespace, Code: op.Code}
		decision, err := e.Evaluate(ctx, &scoped, opts)
		if err != nil {
			return nil, err
		}
		permissions[op.FullCode()] = decision
	}
	return permissions, nil
}

// evaluate runs the sequential state machine for one call.
func (e *Engine) evaluate(ctx context.Context, input *types.PolicyInput, opts Options, start time.Time) (*PolicyDecision, error) {
	deadline := start.Add(time.Duration(opts.Limits.TimeoutMs) * time.Millisecond)

	var trace []TraceStep
	step := func(name, detail string, stepStart time.Time) {
		if opts.Trace {
			trace = append(trace, TraceStep{Name: name, Detail: detail, Duration: time.Since(stepStart)})
		}
	}

	// resolving-scope
	phase := time.Now()
	refs, err := e.scopes.ResolvePolicies(ctx, input.Context.TenantID, input.Resource)
	if err != nil {
		return nil, types.NewEvaluationError(types.ErrCodeFactsResolution, "resolving applicable policies", err)
	}
	step("resolving-scope", fmt.Sprintf("%d applicable policies", len(refs)), phase)

	if e.catalog != nil {
		op, err := e.catalog.GetOperation(ctx, input.Action.FullCode())
		if err != nil {
			return nil, types.NewEvaluationError(types.ErrCodeFactsResolution, "resolving operation", err)
		}
		if op == nil {
			return nil, types.NewEvaluationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("unknown operation %q", input.Action.FullCode()), nil)
		}
	}

	// matching-rules
	phase = time.Now()
	subjectKeys := SubjectKeysFor(input.Subject)
	operationID := input.Action.FullCode()

	var matched []MatchedRule
	var reasons []string
	scanned := 0
	policiesEvaluated := 0

	for _, ref := range refs {
		if time.Now().After(deadline) {
			return nil, types.NewEvaluationError(types.ErrCodeTimeout,
				fmt.Sprintf("evaluation exceeded %dms budget after %d policies", opts.Limits.TimeoutMs, policiesEvaluated), nil)
		}
		if scanned >= opts.Limits.MaxRulesScanned {
			// Graceful degradation: decide over what was collected so far.
			reasons = append(reasons, fmt.Sprintf("rule scan limit reached (%d); decision covers a partial rule set", opts.Limits.MaxRulesScanned))
			break
		}

		versionID := ref.VersionID
		if opts.PolicyVersionOverride != "" {
			versionID = opts.PolicyVersionOverride
		}

		compiled, err := e.compiler.GetOrCompile(ctx, input.Context.TenantID, versionID, opts.SkipCache)
		if err != nil {
			return nil, types.NewEvaluationError(types.ErrCodeCompileError,
				fmt.Sprintf("compiling policy %s version %s", ref.ID, versionID), err)
		}
		if compiled == nil {
			return nil, types.NewEvaluationError(types.ErrCodePolicyNotFound,
				fmt.Sprintf("policy %s version %s not found", ref.ID, versionID), types.ErrPolicyNotFound)
		}

		scopeKey := types.ScopeKeyFor(ref.ScopeType, input.Resource)
		outcome, err := FindMatchingRules(compiled, scopeKey, subjectKeys, operationID, input, opts.Limits.MaxExpressionDepth)
		scanned += outcome.Scanned
		policiesEvaluated++
		if err != nil {
			code := types.ErrCodeInvalidExpression
			if errors.Is(err, types.ErrExpressionTooDeep) {
				code = types.ErrCodeExpressionTooDeep
			}
			return nil, types.NewEvaluationError(code,
				fmt.Sprintf("evaluating conditions for policy %s", ref.ID), err)
		}
		matched = append(matched, outcome.Matched...)

		if opts.StopOnFirstMatch && len(matched) > 0 {
			step("matching-rules", "stopped on first match", phase)
			break
		}
	}
	step("matching-rules", fmt.Sprintf("%d scanned, %d matched", scanned, len(matched)), phase)

	// resolving-effect
	phase = time.Now()
	SortMatchedRules(matched)
	resolution := ResolveEffect(matched, opts.ConflictResolution)
	reasons = append(resolution.Reasons, reasons...)
	step("resolving-effect", string(resolution.Effect), phase)

	// processing-obligations
	phase = time.Now()
	var obligations []Obligation
	if opts.IncludeObligations {
		obligations = ObligationsFor(resolution.DecidingRule, resolution.Effect)
	}
	step("processing-obligations", fmt.Sprintf("%d obligation(s)", len(obligations)), phase)

	// done
	decision := &PolicyDecision{
		Effect:      resolution.Effect,
		Allowed:     resolution.Effect == types.EffectAllow,
		Obligations: obligations,
		Reasons:     reasons,
		Metadata:    e.metadata(input, start),
	}
	if opts.Explain {
		if len(matched) > opts.Limits.MaxMatchesReturned {
			matched = matched[:opts.Limits.MaxMatchesReturned]
		}
		decision.MatchedRules = matched
		decision.DecidingRule = resolution.DecidingRule
	}
	if opts.Trace {
		decision.Debug = &DecisionDebug{
			RulesScanned:      scanned,
			RulesMatched:      len(matched),
			PoliciesEvaluated: policiesEvaluated,
			Trace:             trace,
		}
	}

	e.metrics.SetGauge(MetricPoliciesActive, float64(policiesEvaluated), nil)
	e.metrics.ObserveHistogram(MetricRulesScanned, float64(scanned), nil)
	return decision, nil
}

// failClosedDecision converts an internal error into an explicit deny whose
// reasons embed the error text.
func (e *Engine) failClosedDecision(input *types.PolicyInput, evalErr *types.EvaluationError, start time.Time) *PolicyDecision {
	decision := &PolicyDecision{
		Effect:  types.EffectDeny,
		Allowed: false,
		Reasons: []string{
			fmt.Sprintf("evaluation failed closed (%s): %s", evalErr.Code, evalErr.Error()),
		},
		Metadata: e.metadata(input, start),
	}
	e.recordDecision(decision, start)
	return decision
}

func (e *Engine) metadata(input *types.PolicyInput, start time.Time) DecisionMetadata {
	return DecisionMetadata{
		DecisionID:       types.NewDecisionID(),
		Timestamp:        start.UTC(),
		Duration:         time.Since(start),
		EvaluatorVersion: EvaluatorVersion,
		CorrelationID:    input.Context.CorrelationID,
	}
}

func (e *Engine) recordDecision(decision *PolicyDecision, start time.Time) {
	e.metrics.IncCounter(MetricDecisions, map[string]string{
		"effect":  string(decision.Effect),
		"allowed": strconv.FormatBool(decision.Allowed),
	})
	e.metrics.ObserveHistogram(MetricDuration, time.Since(start).Seconds(), nil)
}

// validateInput rejects malformed inputs before any work begins.
func validateInput(input *types.PolicyInput) error {
	if input == nil {
		return types.NewEvaluationError(types.ErrCodeInvalidInput, "input cannot be nil", nil)
	}
	if input.Subject.PrincipalID == "" {
		return types.NewEvaluationError(types.ErrCodeInvalidInput, "subject principal id is required", nil)
	}
	if input.Context.TenantID == "" {
		return types.NewEvaluationError(types.ErrCodeInvalidInput, "tenant id is required", nil)
	}
	if input.Action.Code == "" {
		return types.NewEvaluationError(types.ErrCodeInvalidInput, "action code is required", nil)
	}
	return nil
}
