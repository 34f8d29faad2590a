package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"guardian-hq/guardian/pkg/policy/registry"
)

// identityMapper passes pre-flattened contexts straight through.
var identityMapper = MapperFunc(func(state any) (Context, error) {
	c, ok := state.(Context)
	if !ok {
		return nil, errors.New("not a context")
	}
	return c, nil
})

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	eng, err := New(registry.NewBuiltin(), identityMapper, cfg, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return eng
}

func TestEvaluate_Allow(t *testing.T) {
	eng := newTestEngine(t, nil)

	result := eng.Evaluate(context.Background(), Context{
		"user":   map[string]any{"role": "admin"},
		"action": map[string]any{"type": "read"},
	})

	if !result.Allow {
		t.Errorf("Allow = false, want true; violations: %v", result.ViolationMessages())
	}
	if result.RulesChecked == 0 {
		t.Error("RulesChecked = 0, want every rule counted")
	}
	if result.RulesPassed != result.RulesChecked {
		t.Errorf("RulesPassed = %d, want %d", result.RulesPassed, result.RulesChecked)
	}
}

func TestEvaluate_Deny(t *testing.T) {
	eng := newTestEngine(t, nil)

	result := eng.Evaluate(context.Background(), Context{
		"user":   map[string]any{"role": "junior"},
		"action": map[string]any{"type": "transfer", "amount": 1500.0},
	})

	if result.Allow {
		t.Fatal("Allow = true, want false")
	}
	if len(result.Violations) != 1 {
		t.Fatalf("got %d violations, want 1: %v", len(result.Violations), result.ViolationMessages())
	}
	v := result.Violations[0]
	if v.RuleName != "junior_transfer_limit" {
		t.Errorf("RuleName = %q, want %q", v.RuleName, "junior_transfer_limit")
	}
	if v.PolicyName != "action_gates" {
		t.Errorf("PolicyName = %q, want %q", v.PolicyName, "action_gates")
	}
	if v.Passed {
		t.Error("violation marked Passed")
	}
	// One audit entry per violation plus the summary entry.
	if len(result.AuditEntries) != 2 {
		t.Errorf("got %d audit entries, want 2", len(result.AuditEntries))
	}
}

func TestEvaluate_AtBoundary(t *testing.T) {
	eng := newTestEngine(t, nil)

	// The transfer limit is inclusive: exactly 1000 passes.
	result := eng.Evaluate(context.Background(), Context{
		"user":   map[string]any{"role": "junior"},
		"action": map[string]any{"type": "transfer", "amount": 1000.0},
	})
	if !result.Allow {
		t.Errorf("Allow = false at the bound, want true; violations: %v", result.ViolationMessages())
	}
}

func TestEvaluate_ConditionMissIsVacuousPass(t *testing.T) {
	eng := newTestEngine(t, nil)

	// A senior transfer never matches the junior rule's condition, so the
	// amount constraint is never checked.
	result := eng.Evaluate(context.Background(), Context{
		"user":   map[string]any{"role": "senior"},
		"action": map[string]any{"type": "transfer", "amount": 1500.0},
	})
	if !result.Allow {
		t.Errorf("Allow = false, want true; violations: %v", result.ViolationMessages())
	}
}

func TestEvaluate_NoShortCircuit(t *testing.T) {
	eng := newTestEngine(t, nil)

	// Two independent rules violated in one call: both must be reported,
	// and every rule in the set is still checked.
	result := eng.Evaluate(context.Background(), Context{
		"user":   map[string]any{"role": "junior"},
		"action": map[string]any{"type": "transfer", "amount": 2000.0, "destructive": true},
		"risk":   map[string]any{"level": "high"},
	})

	if result.Allow {
		t.Fatal("Allow = true, want false")
	}
	if len(result.Violations) != 3 {
		t.Fatalf("got %d violations, want 3: %v", len(result.Violations), result.ViolationMessages())
	}
	if result.RulesChecked != result.RulesPassed+result.RulesFailed {
		t.Errorf("RulesChecked = %d, want RulesPassed+RulesFailed = %d",
			result.RulesChecked, result.RulesPassed+result.RulesFailed)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	eng := newTestEngine(t, nil)
	state := Context{
		"user":   map[string]any{"role": "junior"},
		"action": map[string]any{"type": "transfer", "amount": 1500.0, "destructive": true},
	}

	first := eng.Evaluate(context.Background(), state)
	for i := 0; i < 5; i++ {
		again := eng.Evaluate(context.Background(), state)
		if again.Allow != first.Allow ||
			again.RulesChecked != first.RulesChecked ||
			!reflect.DeepEqual(again.Violations, first.Violations) {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}

func TestEvaluate_FailClosed(t *testing.T) {
	eng := newTestEngine(t, nil)

	result := eng.Evaluate(context.Background(), "not a context")
	if result.Allow {
		t.Error("Allow = true on mapping error, want fail-closed deny")
	}
	if result.Err == "" {
		t.Error("Err is empty, want recorded mapping error")
	}
}

func TestEvaluate_FailOpen(t *testing.T) {
	eng := newTestEngine(t, &Config{
		FailClosed:    false,
		EvalTimeout:   100 * time.Millisecond,
		MaxConcurrent: 4,
	})

	result := eng.Evaluate(context.Background(), "not a context")
	if !result.Allow {
		t.Error("Allow = false on mapping error, want fail-open allow")
	}
	if result.Err == "" {
		t.Error("Err is empty, want recorded mapping error")
	}
}

func TestEvaluate_CancelledContext(t *testing.T) {
	eng := newTestEngine(t, &Config{
		FailClosed:    true,
		EvalTimeout:   50 * time.Millisecond,
		MaxConcurrent: 1,
	})

	// Hold the only worker slot so the cancelled caller cannot start.
	eng.sem <- struct{}{}
	defer func() { <-eng.sem }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := eng.Evaluate(ctx, Context{})
	if result.Allow {
		t.Error("Allow = true on cancelled context, want fail-closed deny")
	}
	if result.Err == "" {
		t.Error("Err is empty, want cancellation recorded")
	}
}

func TestEvaluateSubset(t *testing.T) {
	eng := newTestEngine(t, nil)
	state := Context{
		"user":   map[string]any{"role": "junior"},
		"action": map[string]any{"type": "transfer", "amount": 1500.0},
	}

	// Restricted to a policy whose rules don't match, the violating
	// transfer sails through.
	result := eng.EvaluateSubset(context.Background(), state, []string{"budget_limits"})
	if !result.Allow {
		t.Errorf("Allow = false, want true; violations: %v", result.ViolationMessages())
	}

	// Restricted to the owning policy, it's still denied.
	result = eng.EvaluateSubset(context.Background(), state, []string{"action_gates"})
	if result.Allow {
		t.Error("Allow = true, want false")
	}

	// Unknown names are ignored, not errors.
	result = eng.EvaluateSubset(context.Background(), state, []string{"no_such_policy"})
	if !result.Allow || result.RulesChecked != 0 {
		t.Errorf("unknown subset: Allow=%v RulesChecked=%d, want true/0", result.Allow, result.RulesChecked)
	}
}

func TestEvaluateContext_BypassesMapper(t *testing.T) {
	failing := MapperFunc(func(any) (Context, error) {
		return nil, errors.New("mapper must not be called")
	})
	eng, err := New(registry.NewBuiltin(), failing, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	result := eng.EvaluateContext(context.Background(), Context{
		"user": map[string]any{"role": "admin"},
	}, nil)
	if !result.Allow || result.Err != "" {
		t.Errorf("Allow=%v Err=%q, want true with no error", result.Allow, result.Err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, identityMapper, nil, nil); err == nil {
		t.Error("New(nil registry) succeeded, want error")
	}
	if _, err := New(registry.NewBuiltin(), nil, nil, nil); err == nil {
		t.Error("New(nil mapper) succeeded, want error")
	}
	if _, err := New(registry.NewBuiltin(), identityMapper, &Config{EvalTimeout: -1}, nil); err == nil {
		t.Error("New(invalid config) succeeded, want error")
	}
}

func TestContext_Resolve(t *testing.T) {
	c := Context{
		"user": map[string]any{
			"role":    "junior",
			"profile": map[string]any{"team": "payments"},
		},
	}

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"user.role", "junior", true},
		{"user.profile.team", "payments", true},
		{"user.missing", nil, false},
		{"missing.path", nil, false},
		{"user.role.deeper", nil, false},
	}

	for _, tt := range tests {
		got, ok := c.Resolve(tt.path)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("Resolve(%q) = (%v, %v), want (%v, %v)", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMetricsRecorded(t *testing.T) {
	rec := &stubMetrics{}
	eng := newTestEngine(t, nil)
	eng.SetMetrics(rec)

	eng.Evaluate(context.Background(), Context{
		"user":   map[string]any{"role": "junior"},
		"action": map[string]any{"type": "transfer", "amount": 1500.0},
	})

	if rec.decisions != 1 {
		t.Errorf("recorded %d evaluations, want 1", rec.decisions)
	}
	if rec.lastDecision != "deny" {
		t.Errorf("decision = %q, want %q", rec.lastDecision, "deny")
	}
	if rec.violations != 1 {
		t.Errorf("recorded %d violations, want 1", rec.violations)
	}
}

type stubMetrics struct {
	decisions    int
	violations   int
	lastDecision string
}

func (s *stubMetrics) RecordEvaluation(decision string, _ time.Duration) {
	s.decisions++
	s.lastDecision = decision
}

func (s *stubMetrics) RecordViolation(_, _ string) { s.violations++ }
