package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig configures the Pruner.
type RetentionConfig struct {
	// RetentionDays is how long entries are kept. 0 keeps them forever.
	RetentionDays int

	// MaxEntries caps the store size. 0 means unlimited.
	MaxEntries int64

	// Schedule is a standard cron expression, e.g. "0 3 * * *".
	// Empty disables scheduled pruning.
	Schedule string
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RetentionDays: 365,
		Schedule:      "0 3 * * *",
	}
}

// Pruner enforces retention on a Store.
type Pruner struct {
	store  Store
	config *RetentionConfig
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool

	onPrune func(deleted int64)
}

// NewPruner creates a pruner for store.
func NewPruner(store Store, config *RetentionConfig, logger *slog.Logger) *Pruner {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:  store,
		config: config,
		logger: logger.With("component", "audit.retention"),
		now:    time.Now,
		cron:   cron.New(),
	}
}

// OnPrune registers fn to be called after every successful Prune with the
// number of deleted entries. It must be called before Start.
func (p *Pruner) OnPrune(fn func(deleted int64)) {
	p.onPrune = fn
}

// Prune deletes entries older than the retention period, then trims the
// store to MaxEntries. It returns the number of entries deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
		deleted, err := p.store.DeleteBefore(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune by age: %w", err)
		}
		total += deleted
		p.logger.Debug("pruned entries by age",
			"deleted_count", deleted,
			"cutoff", cutoff,
		)
	}

	if p.config.MaxEntries > 0 {
		deleted, err := p.store.Trim(ctx, p.config.MaxEntries)
		if err != nil {
			return total, fmt.Errorf("prune by count: %w", err)
		}
		total += deleted
		p.logger.Debug("pruned entries by count",
			"deleted_count", deleted,
			"max_entries", p.config.MaxEntries,
		)
	}

	if p.onPrune != nil {
		p.onPrune(total)
	}
	if total > 0 {
		p.logger.Info("audit pruning completed",
			"total_deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_entries", p.config.MaxEntries,
		)
	}
	return total, nil
}

// Start schedules Prune on the configured cron expression. It is a no-op
// when no schedule is configured. The schedule stops when ctx is done.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Schedule == "" {
		p.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}
	if p.running {
		return nil
	}
	if _, err := cron.ParseStandard(p.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", p.config.Schedule, err)
	}
	if _, err := p.cron.AddFunc(p.config.Schedule, func() { p.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("retention scheduler started",
		"schedule", p.config.Schedule,
		"retention_days", p.config.RetentionDays,
		"max_entries", p.config.MaxEntries,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

func (p *Pruner) run(ctx context.Context) {
	if _, err := p.Prune(ctx); err != nil {
		p.logger.Error("scheduled pruning failed", "error", err)
	}
}

// Stop stops the scheduler and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	<-p.cron.Stop().Done()
	p.running = false
	p.logger.Info("retention scheduler stopped")
}

// Running reports whether the scheduler is active.
func (p *Pruner) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextRun returns the next scheduled prune, or nil when not scheduled.
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
