package storage

import (
	"context"
	"sort"
	"sync"

	"guardian-hq/guardian/pkg/audit"
	"guardian-hq/guardian/pkg/guard"
)

// MemoryStorage implements audit.Storage in memory. Intended for tests
// and for deployments that do not need durable audit history.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]*guard.AuditEntry
}

// NewMemoryStorage creates an empty in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]*guard.AuditEntry),
	}
}

// Store persists an audit entry.
func (m *MemoryStorage) Store(ctx context.Context, entry *guard.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	m.entries[entry.ID] = &copied
	return nil
}

// Query returns entries matching the query, newest first.
func (m *MemoryStorage) Query(ctx context.Context, q *audit.Query) ([]*guard.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*guard.AuditEntry
	for _, entry := range m.entries {
		if matches(entry, q) {
			copied := *entry
			out = append(out, &copied)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if q != nil && q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Count returns the number of entries matching the query.
func (m *MemoryStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, entry := range m.entries {
		if matches(entry, q) {
			count++
		}
	}
	return count, nil
}

// Delete removes entries matching the query.
func (m *MemoryStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, entry := range m.entries {
		if matches(entry, q) {
			delete(m.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryStorage) Close() error {
	return nil
}

// matches reports whether an entry satisfies the query filters.
func matches(entry *guard.AuditEntry, q *audit.Query) bool {
	if q == nil {
		return true
	}
	if q.Tool != "" && entry.Tool != q.Tool {
		return false
	}
	if q.Allow != nil && entry.Allow != *q.Allow {
		return false
	}
	if q.StartTime != nil && entry.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && entry.Timestamp.After(*q.EndTime) {
		return false
	}
	return true
}
