package quota

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"edustack-hq/turnstile/pkg/quota/costs"
)

// Ledger accumulates usage samples into daily and monthly records.
// Construct with NewLedger; all methods are safe for concurrent use.
type Ledger struct {
	backend Backend
	costs   *costs.Model
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// LedgerConfig configures a Ledger.
type LedgerConfig struct {
	// Metrics may be nil to disable instrumentation.
	Metrics *Metrics

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// NewLedger creates a usage ledger over the given backend and cost
// model.
func NewLedger(backend Backend, model *costs.Model, cfg LedgerConfig) *Ledger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ledger{
		backend: backend,
		costs:   model,
		metrics: cfg.Metrics,
		logger:  slog.Default().With("component", "quota"),
		now:     cfg.Now,
	}
}

// TrackUsage records one request's token consumption for a user. The
// daily and monthly records for the current instant are updated in a
// single backend transaction, totals and endpoint breakdown together.
//
// TrackUsage never returns an error. A failed write is logged, counted,
// and reported as {Tracked: false, Reason: "storage_error"}; the
// caller's request proceeds regardless.
func (l *Ledger) TrackUsage(ctx context.Context, userID string, inputTokens, outputTokens int64, endpoint string) TrackResult {
	if userID == "" {
		l.metrics.RecordDropped(ReasonMissingUser)
		return TrackResult{Tracked: false, Reason: ReasonMissingUser}
	}
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}

	cost := l.costs.Calculate(int(inputTokens), int(outputTokens))
	now := l.now()

	muts := make([]Mutation, 0, 2)
	for _, periodType := range []string{PeriodDaily, PeriodMonthly} {
		start, end, err := PeriodBounds(periodType, now)
		if err != nil {
			// Unreachable with the fixed period list.
			l.logger.Error("period bounds", "error", err)
			l.metrics.RecordDropped(ReasonStorageError)
			return TrackResult{Tracked: false, Reason: ReasonStorageError}
		}
		muts = append(muts, Mutation{
			UserID:       userID,
			PeriodType:   periodType,
			PeriodStart:  start,
			PeriodEnd:    end,
			Endpoint:     endpoint,
			Requests:     1,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			Cost:         cost,
		})
	}

	if err := l.backend.Apply(ctx, muts...); err != nil {
		l.logger.Error("usage write failed, sample dropped",
			"user_id", userID,
			"endpoint", endpoint,
			"error", err,
		)
		l.metrics.RecordDropped(ReasonStorageError)
		return TrackResult{Tracked: false, Reason: ReasonStorageError}
	}

	l.metrics.RecordTracked(inputTokens+outputTokens, cost)
	return TrackResult{Tracked: true}
}

// GetUsage returns the user's record for the current daily or monthly
// period, or nil when nothing has been tracked this period.
func (l *Ledger) GetUsage(ctx context.Context, userID, periodType string) (*UsageRecord, error) {
	start, _, err := PeriodBounds(periodType, l.now())
	if err != nil {
		return nil, err
	}
	return l.backend.Get(ctx, userID, periodType, start)
}

// ListUsage returns every record for the period starting at
// periodStart, most expensive first. Admin dashboards page over this.
func (l *Ledger) ListUsage(ctx context.Context, periodType string, periodStart time.Time) ([]*UsageRecord, error) {
	records, err := l.backend.List(ctx, periodType, periodStart)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].TotalCost != records[j].TotalCost {
			return records[i].TotalCost > records[j].TotalCost
		}
		return records[i].UserID < records[j].UserID
	})
	return records, nil
}
