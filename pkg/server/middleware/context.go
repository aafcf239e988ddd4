package middleware

import (
	"context"
	"time"

	"edustack-hq/turnstile/pkg/admission/identity"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// Context keys for storing values in request context.
const (
	// RequestIDKey stores the unique request ID.
	RequestIDKey contextKey = "request_id"

	// StartTimeKey stores the request start time for latency
	// calculation.
	StartTimeKey contextKey = "start_time"

	// IdentityKey stores the identity resolved by the admission
	// middleware.
	IdentityKey contextKey = "identity"
)

// GetRequestID extracts the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetStartTime extracts the request start time from the context.
// Returns zero time if not found.
func GetStartTime(ctx context.Context) time.Time {
	if startTime, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return startTime
	}
	return time.Time{}
}

// GetIdentity extracts the resolved identity from the context.
// The second return reports whether an identity was stored.
func GetIdentity(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(identity.Identity)
	return id, ok
}
