// Package ratelimit implements sliding window event counters.
//
// A sliding window answers "how many events for key K occurred in the
// last W seconds" by keeping a per-key, timestamp-ordered sequence of
// request records and pruning entries from the front as time advances.
// One sequence serves every window granularity (minute, hour, day), so
// a single key costs at most Capacity records regardless of how many
// windows are checked against it.
//
// # Capacity bound
//
// Each sequence is bounded. When a key is at capacity the oldest record
// is evicted even if it is still inside the window, which slightly
// undercounts that key under extreme burst. This is an accepted
// approximation: exact counting under such bursts is not required, and
// the bound is what caps worst-case memory for a single hot key.
//
// # Thread safety
//
// All operations on a counter take its mutex, so admission decisions
// that go through AddAndCount are serialized per counter.
package ratelimit
