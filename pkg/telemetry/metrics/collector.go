// Package metrics exposes Prometheus metrics for the policy engine, the
// tool guard, and the repair service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config contains configuration for the metrics collector.
type Config struct {
	// Enabled enables metric recording. When false, every record call is
	// a no-op.
	Enabled bool

	// Namespace and Subsystem prefix every metric name.
	// Defaults: "guardian" / "".
	Namespace string
	Subsystem string
}

// Collector owns the Prometheus registry and all metric families. It
// implements the recorder interfaces the engine, guard, and repair
// packages accept.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	engineMetrics *EngineMetrics
	guardMetrics  *GuardCheckMetrics
	repairMetrics *RepairStrategyMetrics
}

// NewCollector creates a metrics collector with the specified configuration
// and Prometheus registry. A nil registry creates a fresh one.
func NewCollector(cfg *Config, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &Config{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "guardian"
	}

	return &Collector{
		config:        cfg,
		registry:      registry,
		engineMetrics: NewEngineMetrics(cfg, registry),
		guardMetrics:  NewGuardCheckMetrics(cfg, registry),
		repairMetrics: NewRepairStrategyMetrics(cfg, registry),
	}
}

// RecordEvaluation records a completed policy evaluation. Implements the
// engine's MetricsRecorder.
func (c *Collector) RecordEvaluation(decision string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.engineMetrics.RecordEvaluation(decision, duration)
}

// RecordViolation records a rule violation. Implements the engine's
// MetricsRecorder.
func (c *Collector) RecordViolation(policy, rule string) {
	if !c.config.Enabled {
		return
	}
	c.engineMetrics.RecordViolation(policy, rule)
}

// RecordCheck records a guard check outcome. Implements guard.GuardMetrics.
func (c *Collector) RecordCheck(tool, outcome string) {
	if !c.config.Enabled {
		return
	}
	c.guardMetrics.RecordCheck(tool, outcome)
}

// RecordRepair records a repair attempt. Implements repair.RepairMetrics.
func (c *Collector) RecordRepair(strategy, outcome string) {
	if !c.config.Enabled {
		return
	}
	c.repairMetrics.RecordRepair(strategy, outcome)
}

// ObserveConfidence records a repair confidence score. Implements
// repair.RepairMetrics.
func (c *Collector) ObserveConfidence(confidence float64) {
	if !c.config.Enabled {
		return
	}
	c.repairMetrics.ObserveConfidence(confidence)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
