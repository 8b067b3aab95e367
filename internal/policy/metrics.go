// internal/policy/metrics.go
package policy

import "context"

// Metric names emitted by the engine. A sink may namespace them.
const (
	MetricDecisions      = "policy_decisions_total"
	MetricDuration       = "policy_evaluation_duration_seconds"
	MetricRulesScanned   = "policy_rules_scanned"
	MetricErrors         = "policy_evaluation_errors_total"
	MetricPoliciesActive = "policy_policies_evaluated"
)

// MetricsSink receives engine metrics. The engine never depends on a backing
// implementation; NopMetrics must be fully supported.
type MetricsSink interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

// Tracer receives span boundaries around evaluation phases. Purely
// observational; NopTracer must be fully supported.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, func())
}

// NopMetrics discards all metrics.
type NopMetrics struct{}

func (NopMetrics) IncCounter(string, map[string]string)                 {}
func (NopMetrics) ObserveHistogram(string, float64, map[string]string)  {}
func (NopMetrics) SetGauge(string, float64, map[string]string)          {}

// NopTracer discards all spans.
type NopTracer struct{}

func (NopTracer) StartSpan(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}
