// Package quota persists per-user usage and cost accounting.
//
// The Ledger accumulates token counts and computed cost into one
// record per user per accounting period. Two period granularities are
// kept side by side: daily records anchored at UTC midnight and
// monthly records anchored at the first of the month. A single
// TrackUsage call updates both in one storage transaction, including
// the per-endpoint breakdown.
//
// Tracking is strictly advisory for the request path: a storage
// failure is logged and reported in the TrackResult, but TrackUsage
// never returns an error and must never fail the request that
// produced the usage.
package quota
