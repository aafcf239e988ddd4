// Package admission gates inbound requests before they consume an
// expensive upstream resource.
//
// # Overview
//
// The Controller combines four pieces into a single yes/no gate:
//
//   - identity resolution (who is calling, which tier)
//   - a temporary block registry with lazy expiry
//   - layered sliding-window counters (global, per-user, per-IP)
//   - the fixed tier catalog of per-window ceilings
//
// Checks are ordered and short-circuiting: block state first, then the
// global load-shedding ceilings that protect the shared upstream
// budget, then per-user tier ceilings with escalation into temporary
// blocks, then per-IP ceilings that catch anonymous abuse even when a
// user-level check passed.
//
// # Failure semantics
//
// Check never fails. Every branch produces a structured Decision with
// a retry hint; a denial is policy, not an error, and nothing in this
// package may surface as a 500 to the caller.
//
// # Concurrency
//
// Counter and registry state is shared across request-handling
// goroutines and guarded by per-structure mutexes. Decisions for a
// single identifier are serialized by the counter's lock, so two
// concurrent requests from the same user cannot both slip past a hard
// ceiling. The global and IP scopes use separate locks and are
// independently serialized.
package admission
