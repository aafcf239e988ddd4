// Package logging configures the process-wide structured logger.
//
// The Logger wraps log/slog with level and format parsing and context
// helpers for request-scoped fields. Install applies the logger as the
// slog default so components that log through slog.Default pick up the
// configured handler.
package logging
