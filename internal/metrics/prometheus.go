// internal/metrics/prometheus.go

// Package metrics backs the engine's metrics sink with Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arbiterhq/arbiter/internal/policy"
)

// Prometheus implements policy.MetricsSink over pre-registered collectors.
// Unknown metric names are dropped silently so the engine can evolve its
// metric set without a lockstep sink update.
type Prometheus struct {
	decisions *prometheus.CounterVec
	errors    *prometheus.CounterVec
	duration  prometheus.Histogram
	scanned   prometheus.Histogram
	policies  prometheus.Gauge
}

var _ policy.MetricsSink = (*Prometheus)(nil)

// NewPrometheus registers the engine's collectors against reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: policy.MetricDecisions,
			Help: "Policy decisions by effect.",
		}, []string{"effect", "allowed"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: policy.MetricErrors,
			Help: "Evaluation errors by code.",
		}, []string{"code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    policy.MetricDuration,
			Help:    "Wall-clock evaluation latency in seconds.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		scanned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    policy.MetricRulesScanned,
			Help:    "Rules scanned per evaluation.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		policies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: policy.MetricPoliciesActive,
			Help: "Policies evaluated by the most recent evaluation.",
		}),
	}

	for _, c := range []prometheus.Collector{p.decisions, p.errors, p.duration, p.scanned, p.policies} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// IncCounter increments a counter metric.
func (p *Prometheus) IncCounter(name string, labels map[string]string) {
	switch name {
	case policy.MetricDecisions:
		p.decisions.With(prometheus.Labels{
			"effect":  labels["effect"],
			"allowed": labels["allowed"],
		}).Inc()
	case policy.MetricErrors:
		p.errors.With(prometheus.Labels{"code": labels["code"]}).Inc()
	}
}

// ObserveHistogram records a histogram observation.
func (p *Prometheus) ObserveHistogram(name string, value float64, _ map[string]string) {
	switch name {
	case policy.MetricDuration:
		p.duration.Observe(value)
	case policy.MetricRulesScanned:
		p.scanned.Observe(value)
	}
}

// SetGauge sets a gauge metric.
func (p *Prometheus) SetGauge(name string, value float64, _ map[string]string) {
	if name == policy.MetricPoliciesActive {
		p.policies.Set(value)
	}
}
