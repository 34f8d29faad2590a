// Package audit persists guard audit entries beyond the in-memory ring.
//
// The guard keeps a bounded ring of recent entries for fast inspection;
// this package adds durable storage behind it. A Recorder drains entries
// asynchronously so the guarded call path never blocks on a database
// write, and a retention pruner keeps the store within configured bounds.
package audit

import (
	"context"
	"time"

	"guardian-hq/guardian/pkg/guard"
)

// Storage is the interface for audit entry persistence backends.
type Storage interface {
	// Store persists a single audit entry.
	Store(ctx context.Context, entry *guard.AuditEntry) error

	// Query returns entries matching the query, newest first.
	Query(ctx context.Context, q *Query) ([]*guard.AuditEntry, error)

	// Count returns the number of entries matching the query.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes entries matching the query and returns how many
	// were removed.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Close releases backend resources.
	Close() error
}

// Query filters audit entries. Zero-value fields match everything.
type Query struct {
	// Tool filters by tool name.
	Tool string

	// Allow filters by decision when non-nil.
	Allow *bool

	// StartTime and EndTime bound the entry timestamp (inclusive).
	StartTime *time.Time
	EndTime   *time.Time

	// Limit caps the number of returned entries. 0 means no limit.
	Limit int
}
