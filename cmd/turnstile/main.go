// Turnstile is an admission control and quota governance service for
// AI-assisted education platforms.
//
// It guards a shared AI backend with layered rate limiting:
//   - Tier-based per-user ceilings (minute, hour, day) with burst
//   - Global load shedding across all callers
//   - Per-IP ceilings with escalating temporary blocks
//   - A persisted usage ledger tracking tokens and cost per user
//
// Usage:
//
//	# Start server with default configuration
//	turnstile run
//
//	# Start with custom configuration file
//	turnstile run --config /path/to/turnstile.yaml
//
//	# Validate a configuration file
//	turnstile validate --config /path/to/turnstile.yaml
//
//	# Export usage records
//	turnstile export --period monthly --format csv
//
//	# Show version information
//	turnstile version
package main

func main() {
	Execute()
}
