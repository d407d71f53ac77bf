package audit

import (
	"sync"

	"github.com/bottlecrm/authd/internal/core"
)

// defaultCapacity bounds the in-memory auditor. Login attempts arrive at
// request rate, so the oldest entries are evicted rather than kept forever.
const defaultCapacity = 4096

var _ core.Auditor = (*InMemoryAuditor)(nil)

// InMemoryAuditor keeps the most recent audit entries in memory.
type InMemoryAuditor struct {
	mu       sync.Mutex
	entries  []core.AuditEntry
	capacity int
}

func NewInMemoryAuditor() *InMemoryAuditor {
	return &InMemoryAuditor{capacity: defaultCapacity}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = append(i.entries, entry)
	if len(i.entries) > i.capacity {
		i.entries = i.entries[len(i.entries)-i.capacity:]
	}
	return nil
}

// Recent returns up to limit of the newest entries, oldest first.
func (i *InMemoryAuditor) Recent(limit int) []core.AuditEntry {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limit > len(i.entries) {
		limit = len(i.entries)
	}
	out := make([]core.AuditEntry, limit)
	copy(out, i.entries[len(i.entries)-limit:])
	return out
}

// FindBySubject returns the newest entries about one subject, oldest first.
func (i *InMemoryAuditor) FindBySubject(subjectID string, limit int) []core.AuditEntry {
	i.mu.Lock()
	defer i.mu.Unlock()

	var matches []core.AuditEntry
	for _, entry := range i.entries {
		if entry.SubjectID == subjectID {
			matches = append(matches, entry)
		}
	}
	if len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	return matches
}

func (i *InMemoryAuditor) Close() error {
	return nil
}
