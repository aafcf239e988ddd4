package audit

import (
	"context"
	"time"
)

// Event kinds.
const (
	// KindDenial is a request denied by the admission controller.
	KindDenial = "denial"

	// KindBlock is an escalation block placed on an identifier.
	KindBlock = "block"

	// KindUnblock is an operator lifting a block early.
	KindUnblock = "unblock"
)

// Event is one audited admission outcome.
type Event struct {
	// ID is a generated UUID.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Kind is one of the Kind constants.
	Kind string `json:"kind"`

	// Identifier is the blocked or denied identifier (user id or IP).
	Identifier string `json:"identifier"`

	// UserID is the resolved user, empty for anonymous traffic.
	UserID string `json:"user_id,omitempty"`

	// IP is the client address the decision applied to.
	IP string `json:"ip,omitempty"`

	// Endpoint is the request path that triggered the event.
	Endpoint string `json:"endpoint,omitempty"`

	// Reason is the machine-readable denial reason code.
	Reason string `json:"reason,omitempty"`

	// Message is the human-readable denial message.
	Message string `json:"message,omitempty"`

	// RetryAfter is the retry hint attached to a denial, in seconds.
	RetryAfter int `json:"retry_after,omitempty"`
}

// Query filters stored events. Zero fields match everything.
type Query struct {
	// Identifier matches events for one identifier.
	Identifier string

	// Kind matches one event kind.
	Kind string

	// Since excludes events before this instant.
	Since time.Time

	// Until excludes events at or after this instant.
	Until time.Time

	// Limit caps the result size; 0 means no cap. Results are newest
	// first.
	Limit int
}

// Store persists audit events. Implementations must be safe for
// concurrent use.
type Store interface {
	// Insert appends one event.
	Insert(ctx context.Context, event *Event) error

	// Query returns matching events, newest first.
	Query(ctx context.Context, q Query) ([]*Event, error)

	// Count returns the number of matching events.
	Count(ctx context.Context, q Query) (int64, error)

	// DeleteBefore removes events older than cutoff and returns how
	// many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases store resources.
	Close() error
}
