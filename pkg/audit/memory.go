package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process slice.
// Events are lost on restart; use it for tests and development.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends one event.
func (m *MemoryStore) Insert(ctx context.Context, event *Event) error {
	copied := *event
	m.mu.Lock()
	m.events = append(m.events, &copied)
	m.mu.Unlock()
	return nil
}

// Query returns matching events, newest first.
func (m *MemoryStore) Query(ctx context.Context, q Query) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Event
	for _, e := range m.events {
		if matches(e, q) {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Count returns the number of matching events.
func (m *MemoryStore) Count(ctx context.Context, q Query) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, e := range m.events {
		if matches(e, q) {
			n++
		}
	}
	return n, nil
}

// DeleteBefore removes events older than cutoff.
func (m *MemoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	var deleted int64
	for _, e := range m.events {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return deleted, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

func matches(e *Event, q Query) bool {
	if q.Identifier != "" && e.Identifier != q.Identifier {
		return false
	}
	if q.Kind != "" && e.Kind != q.Kind {
		return false
	}
	if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !e.Timestamp.Before(q.Until) {
		return false
	}
	return true
}
