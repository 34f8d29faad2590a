// Package engine implements the Guardian policy evaluation engine.
//
// The engine is stateless per call: it reads an immutable policy snapshot
// from the registry, flattens the caller's decision state into the
// evaluation namespace, and matches every rule of every policy in
// registration order. It never short-circuits, so callers always receive
// the complete violation list. Mapping or evaluation errors are absorbed
// into the returned Evaluation according to the configured fail mode; the
// engine never propagates them as errors.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"guardian-hq/guardian/pkg/policy/registry"
	"guardian-hq/guardian/pkg/policy/rules"
)

// MetricsRecorder receives evaluation telemetry. Implementations must be
// safe for concurrent use; a nil recorder disables metrics.
type MetricsRecorder interface {
	RecordEvaluation(decision string, duration time.Duration)
	RecordViolation(policy, rule string)
}

// Engine evaluates decision state against the policy registry.
type Engine struct {
	registry *registry.Registry
	mapper   Mapper
	config   *Config
	logger   *slog.Logger
	metrics  MetricsRecorder

	// sem bounds concurrent evaluations. Rule matching is pure
	// computation; it is dispatched onto its own goroutine only so a
	// caller can keep honoring context cancellation while it runs.
	sem chan struct{}
}

// New creates a policy evaluation engine.
func New(reg *registry.Registry, mapper Mapper, config *Config, logger *slog.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, fmt.Errorf("policy registry cannot be nil")
	}
	if mapper == nil {
		return nil, fmt.Errorf("context mapper cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		registry: reg,
		mapper:   mapper,
		config:   config,
		logger:   logger.With("component", "policy.engine"),
		sem:      make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// SetMetrics attaches a metrics recorder. Call before serving traffic.
func (e *Engine) SetMetrics(m MetricsRecorder) {
	e.metrics = m
}

// Registry returns the engine's policy registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Evaluate maps the decision state into the evaluation namespace and
// matches it against every policy. It never returns an error: failures are
// folded into the Evaluation per the fail mode.
func (e *Engine) Evaluate(ctx context.Context, state any) *Evaluation {
	return e.run(ctx, state, nil)
}

// EvaluateSubset behaves like Evaluate restricted to the named policies.
// Unknown names are ignored; an empty subset means all policies.
func (e *Engine) EvaluateSubset(ctx context.Context, state any, policyNames []string) *Evaluation {
	return e.run(ctx, state, policyNames)
}

// EvaluateContext evaluates an already-flattened context, bypassing the
// mapper. Used by the admin test-evaluate endpoint.
func (e *Engine) EvaluateContext(ctx context.Context, evalCtx Context, policyNames []string) *Evaluation {
	return e.dispatch(ctx, func() *Evaluation {
		return e.evaluateContext(evalCtx, policyNames)
	})
}

// run maps state and dispatches the evaluation onto the worker pool.
func (e *Engine) run(ctx context.Context, state any, policyNames []string) *Evaluation {
	return e.dispatch(ctx, func() *Evaluation {
		evalCtx, err := e.mapper.Map(state)
		if err != nil {
			return e.failEvaluation(fmt.Errorf("context mapping failed: %w", err))
		}
		return e.evaluateContext(evalCtx, policyNames)
	})
}

// dispatch runs eval on a worker goroutine, bounded by the semaphore and
// the evaluation timeout, while the caller waits with cancellation.
func (e *Engine) dispatch(ctx context.Context, eval func() *Evaluation) *Evaluation {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.config.EvalTimeout)
	defer cancel()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return e.failEvaluation(fmt.Errorf("evaluation not started: %w", ctx.Err()))
	}

	resultCh := make(chan *Evaluation, 1)
	go func() {
		defer func() {
			<-e.sem
			if r := recover(); r != nil {
				resultCh <- e.failEvaluation(fmt.Errorf("evaluation panic: %v", r))
			}
		}()
		resultCh <- eval()
	}()

	select {
	case result := <-resultCh:
		e.record(result, time.Since(start))
		return result
	case <-ctx.Done():
		// The worker finishes on its own; the buffered channel keeps it
		// from leaking.
		result := e.failEvaluation(fmt.Errorf("evaluation abandoned: %w", ctx.Err()))
		e.record(result, time.Since(start))
		return result
	}
}

// evaluateContext matches the context against every rule of every selected
// policy, in registration order, without short-circuiting.
func (e *Engine) evaluateContext(evalCtx Context, policyNames []string) *Evaluation {
	var selected map[string]bool
	if len(policyNames) > 0 {
		selected = make(map[string]bool, len(policyNames))
		for _, name := range policyNames {
			selected[name] = true
		}
	}

	now := time.Now()
	result := &Evaluation{Allow: true}

	for _, policy := range e.registry.Policies() {
		if selected != nil && !selected[policy.Name] {
			continue
		}
		for _, rule := range policy.Rules {
			rr := evaluateRule(rule, evalCtx)
			result.RulesChecked++
			if rr.Passed {
				result.RulesPassed++
				continue
			}
			result.RulesFailed++
			result.Violations = append(result.Violations, rr)
			result.AuditEntries = append(result.AuditEntries, newAuditEntry(rr, now))
		}
	}

	result.Allow = len(result.Violations) == 0
	result.AuditEntries = append(result.AuditEntries, map[string]any{
		"timestamp":     now.UTC().Format(time.RFC3339Nano),
		"allow":         result.Allow,
		"rules_checked": result.RulesChecked,
		"rules_failed":  result.RulesFailed,
	})

	if !result.Allow {
		e.logger.Info("policy evaluation denied action",
			"rules_checked", result.RulesChecked,
			"violations", len(result.Violations),
		)
	}

	return result
}

// evaluateRule applies one rule to the context.
//
// Condition miss means vacuous pass: rules are guards for specific
// situations, not default-deny filters. A path that cannot be resolved
// during constraint checking is always a failure.
func evaluateRule(rule *rules.Rule, evalCtx Context) RuleResult {
	result := RuleResult{
		RuleName:   rule.Name,
		PolicyName: rule.PolicyName,
		Kind:       rule.Kind,
		Message:    rule.Message,
		Passed:     true,
	}

	for path, expected := range rule.Condition {
		value, ok := evalCtx.Resolve(path)
		if !ok || !conditionEqual(value, expected) {
			return result
		}
	}

	for path, constraint := range rule.Constraint {
		value, ok := evalCtx.Resolve(path)
		if !constraint.Check(value, ok) {
			result.Passed = false
			return result
		}
	}

	return result
}

// conditionEqual compares a resolved context value with a condition's
// expected value, coercing numerics so int and float compare equal.
func conditionEqual(value, expected any) bool {
	c := &rules.EqualityConstraint{Expected: expected}
	return c.Check(value, true)
}

// failEvaluation converts an internal error into an Evaluation per the
// configured fail mode.
func (e *Engine) failEvaluation(err error) *Evaluation {
	allow := !e.config.FailClosed
	e.logger.Error("policy evaluation error",
		"error", err,
		"fail_closed", e.config.FailClosed,
		"allow", allow,
	)
	return &Evaluation{
		Allow: allow,
		Err:   err.Error(),
	}
}

// record emits metrics for a completed evaluation.
func (e *Engine) record(result *Evaluation, duration time.Duration) {
	if e.metrics == nil {
		return
	}
	decision := "allow"
	if !result.Allow {
		decision = "deny"
	}
	if result.Err != "" {
		decision = "error_" + decision
	}
	e.metrics.RecordEvaluation(decision, duration)
	for _, v := range result.Violations {
		e.metrics.RecordViolation(v.PolicyName, v.RuleName)
	}
}
