package metrics

import "github.com/prometheus/client_golang/prometheus"

// RepairStrategyMetrics tracks metrics for action repair.
//
// Metrics:
//   - guardian_repairs_total: Repairs by strategy and outcome
//   - guardian_repair_confidence: Distribution of repair confidence scores
type RepairStrategyMetrics struct {
	repairsTotal *prometheus.CounterVec
	confidence   prometheus.Histogram
}

// NewRepairStrategyMetrics creates and registers repair metrics with the
// registry.
func NewRepairStrategyMetrics(cfg *Config, registry *prometheus.Registry) *RepairStrategyMetrics {
	rm := &RepairStrategyMetrics{
		repairsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "repairs_total",
				Help:      "Total number of repair attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),

		confidence: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "repair_confidence",
				Help:      "Distribution of repair confidence scores",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
			},
		),
	}

	registry.MustRegister(rm.repairsTotal, rm.confidence)
	return rm
}

// RecordRepair records one repair attempt.
func (rm *RepairStrategyMetrics) RecordRepair(strategy, outcome string) {
	rm.repairsTotal.WithLabelValues(strategy, outcome).Inc()
}

// ObserveConfidence records a repair confidence score.
func (rm *RepairStrategyMetrics) ObserveConfidence(confidence float64) {
	rm.confidence.Observe(confidence)
}
