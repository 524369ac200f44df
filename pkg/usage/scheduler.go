package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls scheduled pruning of old ledger rows.
type RetentionConfig struct {
	// Days is how long rows are kept. 0 disables pruning.
	Days int

	// Schedule is a standard cron expression, e.g. "0 3 * * *" for daily
	// at 03:00. Empty disables the scheduler.
	Schedule string
}

// Scheduler prunes the ledger on a cron schedule.
type Scheduler struct {
	ledger *Ledger
	config RetentionConfig
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a retention scheduler over the ledger.
func NewScheduler(ledger *Ledger, cfg RetentionConfig) *Scheduler {
	return &Scheduler{
		ledger: ledger,
		config: cfg,
		cron:   cron.New(),
		logger: slog.Default().With("component", "usage.retention"),
	}
}

// Start begins scheduled pruning. With no schedule or no retention window it
// does nothing. Cancelling ctx stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" || s.config.Days <= 0 {
		s.logger.Info("usage retention not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.config.Schedule, err)
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, func() { s.runPrune(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule usage pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("usage retention scheduler started",
		"schedule", s.config.Schedule,
		"retention_days", s.config.Days,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runPrune executes one pruning cycle.
func (s *Scheduler) runPrune(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.Days)

	deleted, err := s.ledger.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("scheduled usage pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("usage rows pruned", "deleted", deleted, "cutoff", cutoff)
	}
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("usage retention scheduler stopped")
	}
}

// Running reports whether the scheduler is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
