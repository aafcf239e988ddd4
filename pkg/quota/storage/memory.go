package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"edustack-hq/turnstile/pkg/quota"
)

// MemoryBackend implements quota.Backend with an in-process map.
// State is lost on restart; use it for tests and development.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[recordKey]*quota.UsageRecord
}

type recordKey struct {
	userID      string
	periodType  string
	periodStart int64
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[recordKey]*quota.UsageRecord),
	}
}

// Apply accumulates the mutations under a single lock acquisition.
func (m *MemoryBackend) Apply(ctx context.Context, muts ...quota.Mutation) error {
	for _, mut := range muts {
		if mut.UserID == "" {
			return fmt.Errorf("user id cannot be empty")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mut := range muts {
		key := recordKey{mut.UserID, mut.PeriodType, mut.PeriodStart.Unix()}
		rec, ok := m.records[key]
		if !ok {
			rec = &quota.UsageRecord{
				UserID:      mut.UserID,
				PeriodType:  mut.PeriodType,
				PeriodStart: mut.PeriodStart,
				PeriodEnd:   mut.PeriodEnd,
			}
			m.records[key] = rec
		}
		rec.Accumulate(mut)
	}

	return nil
}

// Get returns a copy of the record, or nil when absent.
func (m *MemoryBackend) Get(ctx context.Context, userID, periodType string, periodStart time.Time) (*quota.UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[recordKey{userID, periodType, periodStart.Unix()}]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

// List returns copies of every record for the period.
func (m *MemoryBackend) List(ctx context.Context, periodType string, periodStart time.Time) ([]*quota.UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*quota.UsageRecord
	start := periodStart.Unix()
	for key, rec := range m.records {
		if key.periodType == periodType && key.periodStart == start {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}
