package metrics

import "github.com/prometheus/client_golang/prometheus"

// GuardCheckMetrics tracks metrics for guard checks.
//
// Metrics:
//   - guardian_guard_checks_total: Guard checks by tool and outcome
type GuardCheckMetrics struct {
	checksTotal *prometheus.CounterVec
}

// NewGuardCheckMetrics creates and registers guard metrics with the registry.
func NewGuardCheckMetrics(cfg *Config, registry *prometheus.Registry) *GuardCheckMetrics {
	gm := &GuardCheckMetrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "guard_checks_total",
				Help:      "Total number of guard checks by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
	}

	registry.MustRegister(gm.checksTotal)
	return gm
}

// RecordCheck records one guard check outcome ("allowed", "blocked",
// "flagged").
func (gm *GuardCheckMetrics) RecordCheck(tool, outcome string) {
	gm.checksTotal.WithLabelValues(tool, outcome).Inc()
}
