package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig configures the audit pruner.
type RetentionConfig struct {
	// RetentionDays is the number of days to retain events.
	// 0 means keep events forever.
	RetentionDays int

	// Schedule is a cron expression for automatic pruning,
	// e.g. "0 3 * * *" for daily at 3 AM. Empty disables the
	// scheduler; Prune can still be called directly.
	Schedule string

	// Now is the clock. Default: time.Now.
	Now func() time.Time

	// Metrics receives prune counts. Optional.
	Metrics *Metrics
}

// Pruner deletes audit events past the retention period.
type Pruner struct {
	store   Store
	config  RetentionConfig
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	logger  *slog.Logger
}

// NewPruner creates a retention pruner over the given store.
func NewPruner(store Store, cfg RetentionConfig) *Pruner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pruner{
		store:  store,
		config: cfg,
		cron:   cron.New(),
		logger: slog.Default().With("component", "audit.retention"),
	}
}

// Prune deletes events older than the retention period and returns the
// number removed. A zero retention period is a no-op.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := p.config.Now().AddDate(0, 0, -p.config.RetentionDays)
	deleted, err := p.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit prune failed: %w", err)
	}

	p.config.Metrics.RecordPruned(deleted)
	if deleted > 0 {
		p.logger.Info("audit events pruned",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
		)
	}
	return deleted, nil
}

// Start begins scheduled pruning per the cron expression. It returns
// an error for an invalid expression and does nothing when no schedule
// is configured. The scheduler stops when ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Schedule == "" {
		p.logger.Info("audit prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(p.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.config.Schedule, err)
	}

	_, err := p.cron.AddFunc(p.config.Schedule, func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled audit pruning failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit pruning: %w", err)
	}

	p.cron.Start()
	p.running = true

	p.logger.Info("audit retention scheduler started",
		"schedule", p.config.Schedule,
		"retention_days", p.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		<-p.cron.Stop().Done()
		p.running = false
		p.logger.Info("audit retention scheduler stopped")
	}
}

// NextRun returns the next scheduled pruning time, or nil when the
// scheduler is not running.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
