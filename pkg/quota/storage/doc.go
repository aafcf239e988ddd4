// Package storage provides persistence backends for usage records.
//
// Two implementations of quota.Backend are available: an in-memory
// backend for tests and development, and a SQLite backend for
// single-instance deployments that need usage accounting to survive
// restarts. Both guarantee that the mutations of one Apply call land
// atomically, so the daily and monthly records for a request can never
// diverge.
package storage
