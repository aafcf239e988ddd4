package quota

import (
	"context"
	"time"
)

// Accounting period granularities.
const (
	// PeriodDaily anchors records at UTC midnight.
	PeriodDaily = "daily"

	// PeriodMonthly anchors records at the first of the month, UTC.
	PeriodMonthly = "monthly"
)

// TrackResult reports whether a usage sample was persisted.
// Reason is set only when Tracked is false.
type TrackResult struct {
	Tracked bool   `json:"tracked"`
	Reason  string `json:"reason,omitempty"`
}

// Track failure reasons.
const (
	// ReasonStorageError means the backend transaction failed and the
	// sample was dropped.
	ReasonStorageError = "storage_error"

	// ReasonMissingUser means no user identifier was supplied.
	ReasonMissingUser = "missing_user"
)

// EndpointUsage is the per-endpoint slice of a usage record.
type EndpointUsage struct {
	Requests     int64   `json:"requests"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// UsageRecord is the accumulated usage for one user in one accounting
// period. TotalTokens is always TotalInputTokens + TotalOutputTokens,
// and the endpoint breakdown sums to the record totals.
type UsageRecord struct {
	UserID      string    `json:"user_id"`
	PeriodType  string    `json:"period_type"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	TotalRequests     int64   `json:"total_requests"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	TotalTokens       int64   `json:"total_tokens"`
	TotalCost         float64 `json:"total_cost"`

	// Endpoints maps endpoint path to its share of the totals.
	Endpoints map[string]EndpointUsage `json:"endpoint_usage"`
}

// Clone returns a deep copy of the record.
func (r *UsageRecord) Clone() *UsageRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Endpoints = make(map[string]EndpointUsage, len(r.Endpoints))
	for k, v := range r.Endpoints {
		out.Endpoints[k] = v
	}
	return &out
}

// Accumulate folds one mutation into the record totals and its
// endpoint breakdown. Backends call this inside their transactions.
func (r *UsageRecord) Accumulate(m Mutation) {
	r.TotalRequests += m.Requests
	r.TotalInputTokens += m.InputTokens
	r.TotalOutputTokens += m.OutputTokens
	r.TotalTokens += m.InputTokens + m.OutputTokens
	r.TotalCost += m.Cost

	if r.Endpoints == nil {
		r.Endpoints = make(map[string]EndpointUsage)
	}
	e := r.Endpoints[m.Endpoint]
	e.Requests += m.Requests
	e.InputTokens += m.InputTokens
	e.OutputTokens += m.OutputTokens
	e.TotalTokens += m.InputTokens + m.OutputTokens
	e.Cost += m.Cost
	r.Endpoints[m.Endpoint] = e
}

// Mutation is one usage sample addressed to a single period record.
// The ledger issues one mutation per period granularity and hands them
// to the backend as a unit.
type Mutation struct {
	UserID      string
	PeriodType  string
	PeriodStart time.Time
	PeriodEnd   time.Time

	Endpoint     string
	Requests     int64
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

// Backend is the persistence contract for usage records.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Apply accumulates the mutations into their period records as a
	// single atomic unit: either every mutation lands or none do.
	// Missing records are created.
	Apply(ctx context.Context, muts ...Mutation) error

	// Get returns the record for a user and period, or nil when no
	// usage has been tracked for that period yet.
	Get(ctx context.Context, userID, periodType string, periodStart time.Time) (*UsageRecord, error)

	// List returns every record for a period, unordered.
	List(ctx context.Context, periodType string, periodStart time.Time) ([]*UsageRecord, error)

	// Close releases backend resources.
	Close() error
}
