package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"guardian-hq/guardian/pkg/audit/storage"
	"guardian-hq/guardian/pkg/guard"
)

func seed(t *testing.T, m *storage.MemoryStorage, id string, age time.Duration) {
	t.Helper()
	entry := &guard.AuditEntry{
		ID:        id,
		Timestamp: time.Now().Add(-age),
		Tool:      "tool-a",
		Mode:      guard.ModeEnforce,
	}
	if err := m.Store(context.Background(), entry); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
}

func TestPrune_ByAge(t *testing.T) {
	m := storage.NewMemoryStorage()
	seed(t, m, "fresh", time.Hour)
	seed(t, m, "week-old", 7*24*time.Hour)
	seed(t, m, "ancient", 100*24*time.Hour)

	p := NewPruner(m, &Config{RetentionDays: 30})
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d entries, want 1", deleted)
	}

	count, _ := m.Count(context.Background(), nil)
	if count != 2 {
		t.Errorf("remaining count = %d, want 2", count)
	}
}

func TestPrune_ByCount(t *testing.T) {
	m := storage.NewMemoryStorage()
	for i := 0; i < 10; i++ {
		seed(t, m, fmt.Sprintf("entry-%d", i), time.Duration(i)*time.Hour)
	}

	p := NewPruner(m, &Config{RetentionDays: 0, MaxRecords: 4})
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 6 {
		t.Errorf("deleted %d entries, want 6", deleted)
	}

	// The newest entries survive.
	remaining, _ := m.Query(context.Background(), nil)
	if len(remaining) != 4 {
		t.Fatalf("remaining = %d, want 4", len(remaining))
	}
	for _, e := range remaining {
		if e.ID == "entry-9" || e.ID == "entry-8" {
			t.Errorf("oldest entry %s survived count pruning", e.ID)
		}
	}
}

func TestPrune_NothingToDo(t *testing.T) {
	m := storage.NewMemoryStorage()
	seed(t, m, "fresh", time.Hour)

	p := NewPruner(m, &Config{RetentionDays: 30, MaxRecords: 100})
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted %d entries, want 0", deleted)
	}
}

func TestPrune_DisabledPolicies(t *testing.T) {
	m := storage.NewMemoryStorage()
	seed(t, m, "ancient", 1000*24*time.Hour)

	// Zero retention days and zero max records disable both passes.
	p := NewPruner(m, &Config{})
	deleted, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted %d entries with pruning disabled, want 0", deleted)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	m := storage.NewMemoryStorage()
	p := NewPruner(m, &Config{RetentionDays: 30, PruneSchedule: "0 3 * * *"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if next := p.NextPruning(); next == nil || next.Before(time.Now()) {
		t.Errorf("NextPruning() = %v, want a future time", next)
	}
	p.Stop()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	m := storage.NewMemoryStorage()
	p := NewPruner(m, &Config{RetentionDays: 30, PruneSchedule: "not a cron expression"})

	if err := p.Start(context.Background()); err == nil {
		t.Error("Start() succeeded with an invalid schedule, want error")
		p.Stop()
	}
}
