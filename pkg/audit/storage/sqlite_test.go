package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"guardian-hq/guardian/pkg/audit"
	"guardian-hq/guardian/pkg/guard"
)

func newSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(&SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "audit.db"),
		Driver:       "sqlite",
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		WALMode:      true,
		BusyTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewSQLiteStorage() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage_RoundTrip(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	entry := &guard.AuditEntry{
		ID:           "entry-1",
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Tool:         "transfer_funds",
		Mode:         guard.ModeEnforce,
		Allow:        false,
		RulesChecked: 10,
		RulesFailed:  1,
		LatencyMS:    0.42,
		Violations: []guard.ViolationRecord{
			{Rule: "junior_transfer_limit", Policy: "action_gates", Message: "Junior users cannot transfer more than $1,000"},
		},
	}
	if err := s.Store(ctx, entry); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	got, err := s.Query(ctx, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}

	e := got[0]
	if e.ID != entry.ID || e.Tool != entry.Tool || e.Mode != entry.Mode {
		t.Errorf("identity fields = %s/%s/%s", e.ID, e.Tool, e.Mode)
	}
	if e.Allow || e.RulesChecked != 10 || e.RulesFailed != 1 {
		t.Errorf("decision fields = %v/%d/%d", e.Allow, e.RulesChecked, e.RulesFailed)
	}
	if len(e.Violations) != 1 || e.Violations[0].Rule != "junior_transfer_limit" {
		t.Errorf("violations = %+v", e.Violations)
	}
	if !e.Timestamp.Equal(entry.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", e.Timestamp, entry.Timestamp)
	}
}

func TestSQLiteStorage_QueryFilters(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		err := s.Store(ctx, &guard.AuditEntry{
			ID:         fmt.Sprintf("entry-%d", i),
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			Tool:       "tool-" + string(rune('a'+i%2)),
			Mode:       guard.ModeEnforce,
			Allow:      i%3 != 0,
			Violations: nil,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	byTool, err := s.Query(ctx, &audit.Query{Tool: "tool-a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byTool) != 3 {
		t.Errorf("got %d tool-a entries, want 3", len(byTool))
	}

	denied := false
	count, err := s.Count(ctx, &audit.Query{Allow: &denied})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("denied count = %d, want 2", count)
	}

	limited, err := s.Query(ctx, &audit.Query{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[0].ID != "entry-5" {
		t.Errorf("limited query = %d entries, newest %s", len(limited), limited[0].ID)
	}
}

func TestSQLiteStorage_Delete(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		if err := s.Store(ctx, &guard.AuditEntry{
			ID:        fmt.Sprintf("entry-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Tool:      "tool-a",
			Mode:      guard.ModeEnforce,
		}); err != nil {
			t.Fatal(err)
		}
	}

	cutoff := base.Add(time.Hour)
	deleted, err := s.Delete(ctx, &audit.Query{EndTime: &cutoff})
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d entries, want 2", deleted)
	}

	remaining, _ := s.Count(ctx, nil)
	if remaining != 2 {
		t.Errorf("remaining = %d, want 2", remaining)
	}
}

func TestSQLiteStorage_DuplicateID(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	entry := &guard.AuditEntry{ID: "dup", Timestamp: time.Now(), Tool: "t", Mode: guard.ModeEnforce}
	if err := s.Store(ctx, entry); err != nil {
		t.Fatal(err)
	}
	err := s.Store(ctx, entry)
	if err == nil {
		t.Fatal("duplicate insert succeeded, want error")
	}
	storageErr, ok := err.(*audit.StorageError)
	if !ok {
		t.Fatalf("error type = %T, want *audit.StorageError", err)
	}
	if storageErr.Backend != "sqlite" || storageErr.Op != "insert" {
		t.Errorf("StorageError = %s/%s", storageErr.Backend, storageErr.Op)
	}
}
