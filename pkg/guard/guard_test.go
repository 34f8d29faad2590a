package guard

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"guardian-hq/guardian/pkg/policy/engine"
	"guardian-hq/guardian/pkg/policy/mapper"
	"guardian-hq/guardian/pkg/policy/registry"
)

func newTestGuard(t *testing.T, config *Config) *Guard {
	t.Helper()
	eng, err := engine.New(registry.NewBuiltin(), mapper.New(), nil, nil)
	if err != nil {
		t.Fatalf("engine.New() failed: %v", err)
	}
	g, err := New(eng, config, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return g
}

func violatingState() *mapper.DecisionState {
	return &mapper.DecisionState{
		User:   map[string]any{"role": "junior"},
		Action: map[string]any{"type": "transfer", "amount": 1500.0},
	}
}

func cleanState() *mapper.DecisionState {
	return &mapper.DecisionState{
		User:   map[string]any{"role": "senior"},
		Action: map[string]any{"type": "read"},
	}
}

func TestGuard_EnforceBlocks(t *testing.T) {
	g := newTestGuard(t, nil)

	called := false
	op := g.WrapFunc("transfer_funds", func(ctx context.Context, state any) (any, error) {
		called = true
		return "done", nil
	})

	_, err := op.Invoke(context.Background(), violatingState())
	if err == nil {
		t.Fatal("Invoke() succeeded, want policy violation")
	}
	if called {
		t.Error("wrapped operation ran despite enforce-mode block")
	}

	var violation *PolicyViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("error type = %T, want *PolicyViolationError", err)
	}
	if violation.Tool != "transfer_funds" {
		t.Errorf("Tool = %q, want %q", violation.Tool, "transfer_funds")
	}
	if violation.Evaluation == nil || len(violation.Evaluation.Violations) == 0 {
		t.Error("violation carries no evaluation detail")
	}
}

func TestGuard_EnforceAllows(t *testing.T) {
	g := newTestGuard(t, nil)

	op := g.WrapFunc("read_report", func(ctx context.Context, state any) (any, error) {
		return "report", nil
	})

	result, err := op.Invoke(context.Background(), cleanState())
	if err != nil {
		t.Fatalf("Invoke() failed: %v", err)
	}
	if result != "report" {
		t.Errorf("result = %v, want %q", result, "report")
	}
}

func TestGuard_LogOnlyProceeds(t *testing.T) {
	g := newTestGuard(t, &Config{Mode: ModeLogOnly, MaxAudit: 10})

	called := false
	op := g.WrapFunc("transfer_funds", func(ctx context.Context, state any) (any, error) {
		called = true
		return "done", nil
	})

	result, err := op.Invoke(context.Background(), violatingState())
	if err != nil {
		t.Fatalf("Invoke() failed in log-only mode: %v", err)
	}
	if !called || result != "done" {
		t.Error("wrapped operation did not run in log-only mode")
	}

	// The violation is still recorded.
	log := g.AuditLog()
	if len(log) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(log))
	}
	if log[0].Allow {
		t.Error("audit entry marked allowed for a violating call")
	}
	if log[0].Mode != ModeLogOnly {
		t.Errorf("Mode = %q, want %q", log[0].Mode, ModeLogOnly)
	}
}

func TestGuard_OperationErrorsPropagate(t *testing.T) {
	g := newTestGuard(t, nil)

	opErr := errors.New("downstream unavailable")
	op := g.WrapFunc("read_report", func(ctx context.Context, state any) (any, error) {
		return nil, opErr
	})

	_, err := op.Invoke(context.Background(), cleanState())
	if !errors.Is(err, opErr) {
		t.Errorf("err = %v, want the operation's own error", err)
	}
}

func TestGuard_AuditEntryFields(t *testing.T) {
	g := newTestGuard(t, nil)
	op := g.WrapFunc("transfer_funds", func(ctx context.Context, state any) (any, error) {
		return nil, nil
	})

	op.Invoke(context.Background(), violatingState())

	log := g.AuditLog()
	if len(log) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(log))
	}
	entry := log[0]
	if entry.ID == "" {
		t.Error("ID is empty")
	}
	if entry.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
	if entry.Tool != "transfer_funds" {
		t.Errorf("Tool = %q, want %q", entry.Tool, "transfer_funds")
	}
	if entry.Allow {
		t.Error("Allow = true, want false")
	}
	if entry.RulesChecked == 0 {
		t.Error("RulesChecked = 0")
	}
	if entry.RulesFailed != 1 {
		t.Errorf("RulesFailed = %d, want 1", entry.RulesFailed)
	}
	if len(entry.Violations) != 1 {
		t.Fatalf("got %d violation records, want 1", len(entry.Violations))
	}
	if entry.Violations[0].Rule != "junior_transfer_limit" {
		t.Errorf("Rule = %q, want %q", entry.Violations[0].Rule, "junior_transfer_limit")
	}
}

func TestGuard_AuditRingBounded(t *testing.T) {
	const capacity = 5
	g := newTestGuard(t, &Config{Mode: ModeEnforce, MaxAudit: capacity})
	op := g.WrapFunc("read_report", func(ctx context.Context, state any) (any, error) {
		return nil, nil
	})

	for i := 0; i < capacity+3; i++ {
		state := &mapper.DecisionState{
			User:   map[string]any{"role": "senior"},
			Action: map[string]any{"type": "read", "seq": float64(i)},
		}
		if _, err := op.Invoke(context.Background(), state); err != nil {
			t.Fatal(err)
		}
	}

	log := g.AuditLog()
	if len(log) != capacity {
		t.Fatalf("got %d audit entries, want ring capacity %d", len(log), capacity)
	}
	// Oldest entries were evicted; the survivors are in order.
	for i := 1; i < len(log); i++ {
		if log[i].Timestamp.Before(log[i-1].Timestamp) {
			t.Error("audit entries out of order")
		}
	}
}

func TestGuard_GetStats(t *testing.T) {
	g := newTestGuard(t, &Config{Mode: ModeLogOnly, MaxAudit: 10})
	op := g.WrapFunc("transfer_funds", func(ctx context.Context, state any) (any, error) {
		return nil, nil
	})

	op.Invoke(context.Background(), cleanState())
	op.Invoke(context.Background(), cleanState())
	op.Invoke(context.Background(), violatingState())

	stats := g.GetStats()
	want := Stats{TotalChecks: 3, Blocked: 1, Allowed: 2}
	if stats != want {
		t.Errorf("GetStats() = %+v, want %+v", stats, want)
	}
}

func TestGuard_SinkReceivesEntries(t *testing.T) {
	g := newTestGuard(t, nil)

	var received []*AuditEntry
	g.SetSink(sinkFunc(func(entry *AuditEntry) {
		received = append(received, entry)
	}))

	op := g.WrapFunc("read_report", func(ctx context.Context, state any) (any, error) {
		return nil, nil
	})
	op.Invoke(context.Background(), cleanState())
	op.Invoke(context.Background(), violatingState())

	if len(received) != 2 {
		t.Fatalf("sink received %d entries, want 2", len(received))
	}
	if !received[0].Allow || received[1].Allow {
		t.Error("sink entries carry wrong decisions")
	}
}

func TestGuard_PolicySubset(t *testing.T) {
	// Restricted to budget policies, the junior transfer is out of scope.
	g := newTestGuard(t, &Config{
		Mode:     ModeEnforce,
		MaxAudit: 10,
		Policies: []string{"budget_limits"},
	})
	op := g.WrapFunc("transfer_funds", func(ctx context.Context, state any) (any, error) {
		return "done", nil
	})

	if _, err := op.Invoke(context.Background(), violatingState()); err != nil {
		t.Errorf("Invoke() failed outside the policy subset: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"enforce", Config{Mode: ModeEnforce, MaxAudit: 1}, false},
		{"log-only", Config{Mode: ModeLogOnly, MaxAudit: 1}, false},
		{"unknown mode", Config{Mode: "audit", MaxAudit: 1}, true},
		{"zero max audit", Config{Mode: ModeEnforce, MaxAudit: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPolicyViolationError_Message(t *testing.T) {
	err := &PolicyViolationError{
		Tool: "transfer_funds",
		Evaluation: &engine.Evaluation{
			Violations: []engine.RuleResult{
				{Message: "first violation"},
				{Message: "second violation"},
			},
		},
	}
	want := `operation "transfer_funds" blocked by policy: first violation; second violation`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	empty := &PolicyViolationError{Tool: "x", Evaluation: &engine.Evaluation{}}
	if got := empty.Error(); got != fmt.Sprintf("operation %q blocked by policy", "x") {
		t.Errorf("Error() = %q", got)
	}
}

// sinkFunc adapts a function to the Sink interface.
type sinkFunc func(*AuditEntry)

func (f sinkFunc) Record(entry *AuditEntry) { f(entry) }
