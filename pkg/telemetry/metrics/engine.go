package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks metrics for policy evaluation.
//
// Metrics:
//   - guardian_policy_evaluations_total: Total evaluations by decision
//   - guardian_policy_evaluation_duration_seconds: Evaluation duration
//   - guardian_policy_violations_total: Rule violations by policy and rule
type EngineMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	violationsTotal    *prometheus.CounterVec
}

// NewEngineMetrics creates and registers engine metrics with the registry.
func NewEngineMetrics(cfg *Config, registry *prometheus.Registry) *EngineMetrics {
	em := &EngineMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_evaluations_total",
				Help:      "Total number of policy evaluations",
			},
			[]string{"decision"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_evaluation_duration_seconds",
				Help:      "Duration of policy evaluation in seconds",
				// Evaluations should be fast (< 10ms)
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),

		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_violations_total",
				Help:      "Total number of rule violations",
			},
			[]string{"policy", "rule"},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.violationsTotal,
	)

	return em
}

// RecordEvaluation records a completed evaluation and its duration.
func (em *EngineMetrics) RecordEvaluation(decision string, duration time.Duration) {
	em.evaluationsTotal.WithLabelValues(decision).Inc()
	em.evaluationDuration.Observe(duration.Seconds())
}

// RecordViolation records a single rule violation.
func (em *EngineMetrics) RecordViolation(policy, rule string) {
	em.violationsTotal.WithLabelValues(policy, rule).Inc()
}
