// Package cli contains shared helpers for the turnstile command line:
// signal-aware contexts for graceful shutdown and output formatting
// for command results.
package cli
