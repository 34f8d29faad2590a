package mapper

import (
	"errors"
	"testing"

	"guardian-hq/guardian/pkg/policy/engine"
)

func TestMap_DecisionState(t *testing.T) {
	state := &DecisionState{
		User:   map[string]any{"role": "junior"},
		Action: map[string]any{"type": "transfer", "amount": 1500.0},
	}

	ctx, err := New().Map(state)
	if err != nil {
		t.Fatalf("Map() failed: %v", err)
	}

	role, ok := ctx.Resolve("user.role")
	if !ok || role != "junior" {
		t.Errorf("user.role = (%v, %v), want (junior, true)", role, ok)
	}
	amount, ok := ctx.Resolve("action.amount")
	if !ok || amount != 1500.0 {
		t.Errorf("action.amount = (%v, %v), want (1500, true)", amount, ok)
	}

	// Unset sections are materialized empty, so constraint checks report a
	// missing path rather than a missing section.
	for _, section := range []string{"domain", "risk", "approval", "prediction", "data", "session"} {
		v, ok := ctx.Resolve(section)
		if !ok {
			t.Errorf("section %q not materialized", section)
			continue
		}
		if m, isMap := v.(map[string]any); !isMap || len(m) != 0 {
			t.Errorf("section %q = %v, want empty map", section, v)
		}
	}
}

func TestMap_ValueState(t *testing.T) {
	ctx, err := New().Map(DecisionState{User: map[string]any{"role": "admin"}})
	if err != nil {
		t.Fatalf("Map() failed: %v", err)
	}
	if role, ok := ctx.Resolve("user.role"); !ok || role != "admin" {
		t.Errorf("user.role = (%v, %v), want (admin, true)", role, ok)
	}
}

func TestMap_FlatContext(t *testing.T) {
	flat := map[string]any{
		"user":   map[string]any{"role": "junior"},
		"action": map[string]any{"type": "transfer"},
	}

	ctx, err := New().Map(flat)
	if err != nil {
		t.Fatalf("Map() failed: %v", err)
	}
	if role, ok := ctx.Resolve("user.role"); !ok || role != "junior" {
		t.Errorf("user.role = (%v, %v), want (junior, true)", role, ok)
	}

	// engine.Context input follows the same validation path.
	if _, err := New().Map(engine.Context(flat)); err != nil {
		t.Errorf("Map(engine.Context) failed: %v", err)
	}
}

func TestMap_Errors(t *testing.T) {
	tests := []struct {
		name  string
		state any
	}{
		{"nil state", nil},
		{"nil decision state", (*DecisionState)(nil)},
		{"unsupported type", 42},
		{"unknown section", map[string]any{"bogus": map[string]any{}}},
		{"non-map section", map[string]any{"user": "junior"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Map(tt.state)
			if err == nil {
				t.Fatal("Map() succeeded, want error")
			}
			var mappingErr *MappingError
			if !errors.As(err, &mappingErr) {
				t.Errorf("error type = %T, want *MappingError", err)
			}
		})
	}
}
