// Package server provides the turnstile admin and operations HTTP
// server.
//
// The server exposes the operational surface of the admission
// controller and the usage ledger; the education API itself mounts
// the enforcement middleware from pkg/server/middleware and is not
// routed here.
//
// # Routes
//
//   - GET /healthz - liveness probe (always 200 while the process runs)
//   - GET /readyz - readiness probe (503 when a registered check fails)
//   - GET /version - build information
//   - GET /metrics - Prometheus metrics
//   - GET /admin/usage - usage records for a period (json or csv)
//   - GET /admin/usage/{user_id} - current daily and monthly usage for one user
//   - GET /admin/blocks - active temporary blocks
//   - DELETE /admin/blocks/{identifier} - lift a block early
//   - GET /admin/audit - recent denial and block events
//
// # Lifecycle
//
// Start blocks until the context is cancelled, a shutdown signal
// arrives, or the listener fails. Shutdown drains in-flight requests
// up to the configured timeout. Both are safe to call from multiple
// goroutines; shutdown runs once.
package server
