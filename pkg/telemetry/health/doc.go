// Package health provides liveness and readiness checks plus the
// utilization classification used by the admin surface.
//
// Readiness aggregates registered component checks (storage, audit
// store) and reports degraded with a 503 when any fails. Utilization
// classification maps window usage ratios onto healthy, warning, and
// critical states at the 75% and 90% thresholds.
package health
