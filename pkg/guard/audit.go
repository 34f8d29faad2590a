package guard

import (
	"sync"
	"time"
)

// ViolationRecord is the audit-facing projection of a rule violation.
type ViolationRecord struct {
	Rule    string `json:"rule"`
	Policy  string `json:"policy"`
	Message string `json:"message"`
}

// AuditEntry records one guarded call, allowed or blocked.
type AuditEntry struct {
	ID           string            `json:"id"`
	Timestamp    time.Time         `json:"timestamp"`
	Tool         string            `json:"tool"`
	Mode         Mode              `json:"mode"`
	Allow        bool              `json:"allow"`
	RulesChecked int               `json:"rules_checked"`
	RulesFailed  int               `json:"rules_failed"`
	LatencyMS    float64           `json:"latency_ms"`
	Violations   []ViolationRecord `json:"violations,omitempty"`
}

// auditRing is a fixed-capacity circular buffer of audit entries. Once
// full, the oldest entry is overwritten. The capacity bound is a hard
// invariant; concurrent appends are serialized by the mutex so eviction
// never corrupts or duplicates entries.
type auditRing struct {
	mu    sync.Mutex
	buf   []*AuditEntry
	next  int // write position
	count int // entries held, <= len(buf)
}

func newAuditRing(capacity int) *auditRing {
	return &auditRing{buf: make([]*AuditEntry, capacity)}
}

// append stores an entry, overwriting the oldest once the ring is full.
func (r *auditRing) append(entry *AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = entry
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// entries returns a copy of the ring contents, oldest first.
func (r *auditRing) entries() []*AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*AuditEntry, 0, r.count)
	start := r.next - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
