package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// UserKey is the context key for user identifiers.
	UserKey contextKey = "user"

	// TierKey is the context key for the resolved tier.
	TierKey contextKey = "tier"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithUser adds a user identifier to the context.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser retrieves the user identifier from the context.
func GetUser(ctx context.Context) string {
	if user, ok := ctx.Value(UserKey).(string); ok {
		return user
	}
	return ""
}

// WithTier adds the resolved tier to the context.
func WithTier(ctx context.Context, tier string) context.Context {
	return context.WithValue(ctx, TierKey, tier)
}

// GetTier retrieves the resolved tier from the context.
func GetTier(ctx context.Context) string {
	if tier, ok := ctx.Value(TierKey).(string); ok {
		return tier
	}
	return ""
}

// extractContextFields collects the known context fields as slog args.
func extractContextFields(ctx context.Context) []any {
	var args []any
	if requestID := GetRequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	if user := GetUser(ctx); user != "" {
		args = append(args, "user", user)
	}
	if tier := GetTier(ctx); tier != "" {
		args = append(args, "tier", tier)
	}
	return args
}
