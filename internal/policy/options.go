// internal/policy/options.go
package policy

import "github.com/arbiterhq/arbiter/internal/types"

// Limits bounds the work one evaluation may perform.
type Limits struct {
	// MaxExpressionDepth bounds condition tree nesting; exceeding it is a
	// hard error carrying ErrCodeExpressionTooDeep.
	MaxExpressionDepth int `json:"maxExpressionDepth,omitempty"`

	// MaxRulesScanned caps total rules considered across all policies.
	// Breaching it degrades gracefully to a decision over the partial set.
	MaxRulesScanned int `json:"maxRulesScanned,omitempty"`

	// TimeoutMs is the wall-clock budget, checked between policy iterations.
	TimeoutMs int64 `json:"timeoutMs,omitempty"`

	// MaxMatchesReturned trims matchedRules in explain output.
	MaxMatchesReturned int `json:"maxMatchesReturned,omitempty"`
}

// Options configures one Evaluate call. Supplied per call, merged with
// engine-wide defaults, never retained between calls.
type Options struct {
	Explain               bool               `json:"explain,omitempty"`
	Trace                 bool               `json:"trace,omitempty"`
	Strict                bool               `json:"strict,omitempty"`
	ConflictResolution    ConflictResolution `json:"conflictResolution,omitempty"`
	StopOnFirstMatch      bool               `json:"stopOnFirstMatch,omitempty"`
	Limits                Limits             `json:"limits,omitempty"`
	IncludeObligations    bool               `json:"includeObligations,omitempty"`
	SkipCache             bool               `json:"skipCache,omitempty"`
	PolicyVersionOverride string             `json:"policyVersionOverride,omitempty"`
}

// DefaultOptions returns the engine-wide defaults merged into every call.
func DefaultOptions() Options {
	return Options{
		ConflictResolution: DenyOverrides,
		IncludeObligations: true,
		Limits: Limits{
			MaxExpressionDepth: types.DefaultMaxExpressionDepth,
			MaxRulesScanned:    types.DefaultMaxRulesScanned,
			TimeoutMs:          types.DefaultEvaluationTimeout.Milliseconds(),
			MaxMatchesReturned: types.DefaultMaxMatchesReturned,
		},
	}
}

// merged fills zero-valued fields from the defaults. Booleans are taken as
// given: false is a meaningful caller choice for explain/trace/obligations.
func (o Options) merged(defaults Options) Options {
	if o.ConflictResolution == "" {
		o.ConflictResolution = defaults.ConflictResolution
	}
	if o.Limits.MaxExpressionDepth <= 0 {
		o.Limits.MaxExpressionDepth = defaults.Limits.MaxExpressionDepth
	}
	if o.Limits.MaxRulesScanned <= 0 {
		o.Limits.MaxRulesScanned = defaults.Limits.MaxRulesScanned
	}
	if o.Limits.TimeoutMs <= 0 {
		o.Limits.TimeoutMs = defaults.Limits.TimeoutMs
	}
	if o.Limits.MaxMatchesReturned <= 0 {
		o.Limits.MaxMatchesReturned = defaults.Limits.MaxMatchesReturned
	}
	return o
}
