// Package costs converts token counts into monetary cost.
//
// The model is a pure function over (input tokens, output tokens) using
// per-million-token rates: it is deterministic, side-effect free, and
// independent of the wall clock. Rates can be swapped at runtime under
// a lock to support pricing hot-reload; the arithmetic itself never
// changes.
package costs
