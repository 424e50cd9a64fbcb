package services

import (
	"context"
	"log/slog"
	"time"
)

// StatusSweeper periodically flips due upcoming matches to ongoing. One
// instance runs per process; overlapping processes are safe because the
// transition itself is guarded by the match row lock.
type StatusSweeper struct {
	lifecycle MatchLifecycleService
	interval  time.Duration
	logger    *slog.Logger
}

func NewStatusSweeper(lifecycle MatchLifecycleService, interval time.Duration, logger *slog.Logger) *StatusSweeper {
	return &StatusSweeper{
		lifecycle: lifecycle,
		interval:  interval,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled. A sweep that is in flight when the
// context is cancelled finishes its current transition; only the next tick
// is abandoned.
func (s *StatusSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("match status sweeper started", slog.Duration("interval", s.interval))

	// Run once immediately at startup, then on ticker.
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("match status sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *StatusSweeper) sweep(ctx context.Context) {
	// The sweep runs with its own context so cancellation stops the loop
	// without aborting a lock that is already being taken.
	sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.interval)
	defer cancel()

	if err := s.lifecycle.StartDueMatches(sweepCtx); err != nil {
		s.logger.Error("status sweep failed", slog.Any("error", err))
	}
}
