package journal

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage keeps connection records in memory. It is the default
// backend when no journal path is configured, and the one the tests use.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*ConnectionRecord
}

// NewMemoryStorage returns an empty in-memory journal.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store persists one record.
func (m *MemoryStorage) Store(ctx context.Context, rec *ConnectionRecord) error {
	cp := *rec
	m.mu.Lock()
	m.records = append(m.records, &cp)
	m.mu.Unlock()
	return nil
}

// Query returns records matching q, newest first.
func (m *MemoryStorage) Query(ctx context.Context, q *Query) ([]*ConnectionRecord, error) {
	m.mu.RLock()
	matched := make([]*ConnectionRecord, 0, len(m.records))
	for _, rec := range m.records {
		if matches(rec, q) {
			matched = append(matched, rec)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].AcceptedAt.After(matched[j].AcceptedAt)
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Offset:]
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*ConnectionRecord, len(matched))
	for i, rec := range matched {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}

// Count returns the number of records matching q.
func (m *MemoryStorage) Count(ctx context.Context, q *Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, rec := range m.records {
		if matches(rec, q) {
			n++
		}
	}
	return n, nil
}

// Delete removes records matching q.
func (m *MemoryStorage) Delete(ctx context.Context, q *Query) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, rec := range m.records {
		if matches(rec, q) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept
	return deleted, nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryStorage) Close() error {
	return nil
}

func matches(rec *ConnectionRecord, q *Query) bool {
	if q == nil {
		return true
	}
	if q.Since != nil && rec.AcceptedAt.Before(*q.Since) {
		return false
	}
	if q.Until != nil && rec.AcceptedAt.After(*q.Until) {
		return false
	}
	if q.Protocol != "" && rec.Protocol != q.Protocol {
		return false
	}
	switch q.Outcome {
	case "":
	case "clean":
		if rec.Error != "" || rec.Panicked {
			return false
		}
	case "error":
		if rec.Error == "" || rec.Panicked {
			return false
		}
	case "panic":
		if !rec.Panicked {
			return false
		}
	default:
		return false
	}
	return true
}
