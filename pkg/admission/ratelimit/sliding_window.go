package ratelimit

import (
	"sort"
	"sync"
	"time"
)

// record is a single observed request. The identifier is the map key of
// the sequence the record lives in; it is not duplicated here.
type record struct {
	at       time.Time
	endpoint string
}

// Config configures a sliding window counter.
type Config struct {
	// Capacity is the maximum number of records retained per key.
	// When exceeded, the oldest record is evicted even if still
	// inside the window. Default: 10000.
	Capacity int

	// Retention is the longest window the counter will be asked
	// about; records older than this are pruned on access and keys
	// idle for longer are removed by PruneIdle. Default: 24h.
	Retention time.Duration

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 10000
	}
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Counter is a per-key sliding window event counter.
type Counter struct {
	mu     sync.Mutex
	seqs   map[string][]record
	config Config
}

// NewCounter creates a per-key sliding window counter.
func NewCounter(cfg Config) *Counter {
	cfg.applyDefaults()
	return &Counter{
		seqs:   make(map[string][]record),
		config: cfg,
	}
}

// Add appends a request record for the key at the current time.
// Records are inserted in non-decreasing timestamp order.
func (c *Counter) Add(key, endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(key, endpoint, c.config.Now())
}

// CountWithin returns the number of records for key within the last
// window duration, pruning expired records first.
func (c *Counter) CountWithin(key string, window time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countLocked(key, window, c.config.Now())
}

// AddAndCount appends a record for the key and returns the count within
// each requested window, including the record just added. The whole
// operation holds the counter lock once, so concurrent requests for the
// same key observe each other's records.
func (c *Counter) AddAndCount(key, endpoint string, windows ...time.Duration) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.config.Now()
	c.addLocked(key, endpoint, now)

	counts := make([]int, len(windows))
	for i, w := range windows {
		counts[i] = c.countLocked(key, w, now)
	}
	return counts
}

// Keys returns the number of tracked keys. Used by metrics.
func (c *Counter) Keys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seqs)
}

// PruneIdle removes keys whose newest record is older than the
// retention period and returns how many keys were removed. The
// controller calls this periodically so that one-off identifiers do
// not accumulate forever.
func (c *Counter) PruneIdle() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.config.Now().Add(-c.config.Retention)
	removed := 0
	for key, seq := range c.seqs {
		if len(seq) == 0 || seq[len(seq)-1].at.Before(cutoff) {
			delete(c.seqs, key)
			removed++
		}
	}
	return removed
}

func (c *Counter) addLocked(key, endpoint string, now time.Time) {
	seq := c.seqs[key]

	// Evict the oldest record at capacity, even if still in-window.
	if len(seq) >= c.config.Capacity {
		drop := len(seq) - c.config.Capacity + 1
		seq = seq[drop:]
	}

	c.seqs[key] = append(seq, record{at: now, endpoint: endpoint})
}

func (c *Counter) countLocked(key string, window time.Duration, now time.Time) int {
	seq := c.seqs[key]
	if len(seq) == 0 {
		return 0
	}

	// Drop everything outside the retention period from the front.
	// Timestamps are non-decreasing, so the retained suffix is exact.
	retain := now.Add(-c.config.Retention)
	start := sort.Search(len(seq), func(i int) bool {
		return !seq[i].at.Before(retain)
	})
	if start > 0 {
		seq = seq[start:]
		if len(seq) == 0 {
			delete(c.seqs, key)
			return 0
		}
		// Re-slice into a fresh backing array once most of the
		// sequence has expired, so old records can be collected.
		if cap(seq) > 2*len(seq) {
			seq = append(make([]record, 0, len(seq)), seq...)
		}
		c.seqs[key] = seq
	}

	cutoff := now.Add(-window)
	idx := sort.Search(len(seq), func(i int) bool {
		return !seq[i].at.Before(cutoff)
	})
	return len(seq) - idx
}

// Aggregate is a single keyless sliding window counter used for the
// global traffic scope. It carries the same capacity bound and pruning
// behavior as Counter but tracks one sequence for all identities.
type Aggregate struct {
	mu     sync.Mutex
	seq    []record
	config Config
}

// NewAggregate creates a global-scope sliding window counter.
func NewAggregate(cfg Config) *Aggregate {
	cfg.applyDefaults()
	return &Aggregate{config: cfg}
}

// Add appends a request record at the current time.
func (a *Aggregate) Add(endpoint string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addLocked(endpoint, a.config.Now())
}

// CountWithin returns the number of records within the last window.
func (a *Aggregate) CountWithin(window time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.countLocked(window, a.config.Now())
}

// AddAndCount appends a record and returns counts for each window,
// including the record just added, under a single lock acquisition.
func (a *Aggregate) AddAndCount(endpoint string, windows ...time.Duration) []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.config.Now()
	a.addLocked(endpoint, now)

	counts := make([]int, len(windows))
	for i, w := range windows {
		counts[i] = a.countLocked(w, now)
	}
	return counts
}

func (a *Aggregate) addLocked(endpoint string, now time.Time) {
	if len(a.seq) >= a.config.Capacity {
		drop := len(a.seq) - a.config.Capacity + 1
		a.seq = a.seq[drop:]
	}
	a.seq = append(a.seq, record{at: now, endpoint: endpoint})
}

func (a *Aggregate) countLocked(window time.Duration, now time.Time) int {
	if len(a.seq) == 0 {
		return 0
	}

	retain := now.Add(-a.config.Retention)
	start := sort.Search(len(a.seq), func(i int) bool {
		return !a.seq[i].at.Before(retain)
	})
	if start > 0 {
		a.seq = a.seq[start:]
		if cap(a.seq) > 2*len(a.seq) {
			a.seq = append(make([]record, 0, len(a.seq)), a.seq...)
		}
	}

	cutoff := now.Add(-window)
	idx := sort.Search(len(a.seq), func(i int) bool {
		return !a.seq[i].at.Before(cutoff)
	})
	return len(a.seq) - idx
}
