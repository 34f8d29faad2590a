// Package guard wraps operations with transparent policy enforcement.
//
// A guarded operation evaluates the caller's decision state against the
// policy engine before executing, records an audit entry regardless of
// outcome, and either blocks the call (enforce mode) or logs the violation
// and proceeds (log-only mode). The wrapped operation never needs to know
// about policies.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"guardian-hq/guardian/pkg/policy/engine"
)

// Mode selects how the guard reacts to a deny decision.
type Mode string

const (
	// ModeEnforce blocks denied calls with a *PolicyViolationError.
	ModeEnforce Mode = "enforce"

	// ModeLogOnly records the violation but lets the call proceed, so
	// operators can audit "would have blocked" decisions before flipping
	// modes.
	ModeLogOnly Mode = "log-only"
)

// Operation is a unit of work eligible for guarding. The state argument is
// the decision state passed through to policy evaluation.
type Operation interface {
	Invoke(ctx context.Context, state any) (any, error)
}

// OperationFunc adapts a plain function to the Operation interface.
type OperationFunc func(ctx context.Context, state any) (any, error)

// Invoke calls f.
func (f OperationFunc) Invoke(ctx context.Context, state any) (any, error) {
	return f(ctx, state)
}

// Sink receives audit entries for persistence outside the in-memory ring.
// Implementations must not block; the guard calls Record inline.
type Sink interface {
	Record(entry *AuditEntry)
}

// GuardMetrics receives guard telemetry. A nil recorder disables metrics.
type GuardMetrics interface {
	RecordCheck(tool, outcome string)
}

// Config contains configuration for a Guard.
type Config struct {
	// Mode selects enforce or log-only behavior. Default: enforce.
	Mode Mode

	// MaxAudit bounds the in-memory audit ring. Oldest entries are
	// silently dropped once full. Default: 1000.
	MaxAudit int

	// Policies optionally restricts evaluation to the named policies.
	// Empty means all policies.
	Policies []string
}

// DefaultConfig returns the default guard configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:     ModeEnforce,
		MaxAudit: 1000,
	}
}

// Validate validates the guard configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeEnforce, ModeLogOnly:
	default:
		return fmt.Errorf("invalid guard configuration: unknown mode %q", c.Mode)
	}
	if c.MaxAudit <= 0 {
		return fmt.Errorf("invalid guard configuration: max audit must be positive")
	}
	return nil
}

// Guard enforces policy decisions around operation execution.
type Guard struct {
	engine  *engine.Engine
	config  *Config
	logger  *slog.Logger
	sink    Sink
	metrics GuardMetrics
	audit   *auditRing
}

// New creates a Guard backed by the given engine.
func New(eng *engine.Engine, config *Config, logger *slog.Logger) (*Guard, error) {
	if eng == nil {
		return nil, fmt.Errorf("guard requires an engine")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Guard{
		engine: eng,
		config: config,
		logger: logger.With("component", "guard"),
		audit:  newAuditRing(config.MaxAudit),
	}, nil
}

// SetSink attaches an audit persistence sink. Call before serving traffic.
func (g *Guard) SetSink(sink Sink) {
	g.sink = sink
}

// SetMetrics attaches a metrics recorder. Call before serving traffic.
func (g *Guard) SetMetrics(m GuardMetrics) {
	g.metrics = m
}

// Wrap returns an Operation that evaluates policy before delegating to op.
func (g *Guard) Wrap(name string, op Operation) Operation {
	return &guardedOperation{guard: g, name: name, inner: op}
}

// WrapFunc is Wrap for plain functions.
func (g *Guard) WrapFunc(name string, fn OperationFunc) Operation {
	return g.Wrap(name, fn)
}

// guardedOperation is the evaluate -> decide -> maybe block -> call -> record
// wrapper around a single operation.
type guardedOperation struct {
	guard *Guard
	name  string
	inner Operation
}

// Invoke runs the policy check and, if allowed (or in log-only mode), the
// wrapped operation. An audit entry is recorded regardless of outcome.
func (op *guardedOperation) Invoke(ctx context.Context, state any) (any, error) {
	g := op.guard

	start := time.Now()
	evaluation := g.engine.EvaluateSubset(ctx, state, g.config.Policies)
	latency := time.Since(start)

	entry := newAuditEntry(op.name, g.config.Mode, evaluation, latency)
	g.audit.append(entry)
	if g.sink != nil {
		g.sink.Record(entry)
	}

	if !evaluation.Allow {
		if g.metrics != nil {
			g.metrics.RecordCheck(op.name, "blocked")
		}
		if g.config.Mode == ModeEnforce {
			g.logger.Warn("operation blocked by policy",
				"tool", op.name,
				"rules_failed", evaluation.RulesFailed,
				"latency_ms", latency.Milliseconds(),
			)
			return nil, &PolicyViolationError{Tool: op.name, Evaluation: evaluation}
		}
		g.logger.Warn("policy violation logged, proceeding (log-only mode)",
			"tool", op.name,
			"rules_failed", evaluation.RulesFailed,
		)
	} else if g.metrics != nil {
		g.metrics.RecordCheck(op.name, "allowed")
	}

	return op.inner.Invoke(ctx, state)
}

// AuditLog returns a copy of the audit ring, oldest entry first.
func (g *Guard) AuditLog() []*AuditEntry {
	return g.audit.entries()
}

// Stats aggregates the audit ring. The scan is O(n) in ring size, which is
// capacity-bounded.
type Stats struct {
	TotalChecks int `json:"total_checks"`
	Blocked     int `json:"blocked"`
	Allowed     int `json:"allowed"`
}

// GetStats scans the audit ring and returns aggregate counts.
func (g *Guard) GetStats() Stats {
	var stats Stats
	for _, entry := range g.audit.entries() {
		stats.TotalChecks++
		if entry.Allow {
			stats.Allowed++
		} else {
			stats.Blocked++
		}
	}
	return stats
}

// newAuditEntry builds an audit entry for one guarded call.
func newAuditEntry(tool string, mode Mode, evaluation *engine.Evaluation, latency time.Duration) *AuditEntry {
	entry := &AuditEntry{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Tool:         tool,
		Mode:         mode,
		Allow:        evaluation.Allow,
		RulesChecked: evaluation.RulesChecked,
		RulesFailed:  evaluation.RulesFailed,
		LatencyMS:    float64(latency.Microseconds()) / 1000.0,
	}
	for _, v := range evaluation.Violations {
		entry.Violations = append(entry.Violations, ViolationRecord{
			Rule:    v.RuleName,
			Policy:  v.PolicyName,
			Message: v.Message,
		})
	}
	return entry
}
