// Package blocklist tracks temporary per-identifier blocks.
//
// A block is created by the admission controller when an identifier
// crosses an escalation threshold and denies every request until it
// expires. Expiry is lazy: there is no background timer, an entry is
// removed on the first IsBlocked call at or after its deadline.
package blocklist

import (
	"sync"
	"time"
)

// Registry holds block state for identifiers (user IDs or IPs).
// The zero value is not usable; create with NewRegistry.
type Registry struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewRegistry creates an empty block registry using the given clock.
// A nil clock defaults to time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		entries: make(map[string]time.Time),
		now:     now,
	}
}

// Block sets or overwrites the block deadline for the identifier to
// now + duration.
func (r *Registry) Block(identifier string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[identifier] = r.now().Add(duration)
}

// IsBlocked reports whether the identifier is currently blocked and,
// if so, how long until the block expires. An expired entry is removed
// as a side effect and reported as unblocked.
func (r *Registry) IsBlocked(identifier string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until, ok := r.entries[identifier]
	if !ok {
		return false, 0
	}

	remaining := until.Sub(r.now())
	if remaining <= 0 {
		delete(r.entries, identifier)
		return false, 0
	}
	return true, remaining
}

// Unblock removes the identifier's block, if any. Used by admin tooling.
func (r *Registry) Unblock(identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, identifier)
}

// Active returns the identifiers currently blocked with their
// deadlines, dropping expired entries on the way. Used by the admin
// surface and metrics.
func (r *Registry) Active() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	active := make(map[string]time.Time, len(r.entries))
	for id, until := range r.entries {
		if until.After(now) {
			active[id] = until
		} else {
			delete(r.entries, id)
		}
	}
	return active
}
