package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollector_RecordsMetrics(t *testing.T) {
	c := NewCollector(&Config{Enabled: true}, nil)

	c.RecordEvaluation("deny", 5*time.Millisecond)
	c.RecordViolation("action_gates", "junior_transfer_limit")
	c.RecordCheck("transfer_funds", "blocked")
	c.RecordRepair("hybrid", "full")
	c.ObserveConfidence(0.85)

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"guardian_policy_evaluations_total",
		"guardian_policy_evaluation_duration_seconds",
		"guardian_policy_violations_total",
		"guardian_guard_checks_total",
		"guardian_repairs_total",
		"guardian_repair_confidence",
	} {
		if !found[name] {
			t.Errorf("metric family %q not exported; got %v", name, found)
		}
	}
}

func TestCollector_DisabledIsNoop(t *testing.T) {
	c := NewCollector(&Config{Enabled: false}, nil)

	c.RecordEvaluation("deny", time.Millisecond)
	c.RecordCheck("tool", "allowed")
	c.RecordRepair("heuristic", "none")

	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil && m.GetCounter().GetValue() != 0 {
				t.Errorf("disabled collector recorded %s", mf.GetName())
			}
		}
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(&Config{Enabled: true}, nil)
	c.RecordCheck("transfer_funds", "blocked")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "guardian_guard_checks_total") {
		t.Errorf("exposition missing guard counter:\n%s", body)
	}
}
