package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Reindexer rebuilds derived leaderboard state from the score log.
type Reindexer interface {
	ReindexAll(ctx context.Context) error
}

// Scheduler runs the periodic maintenance jobs of the engine.
type Scheduler struct {
	scheduler *gocron.Scheduler
	reindexer Reindexer
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a scheduler that reindexes every interval.
func New(reindexer Reindexer, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		reindexer: reindexer,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the jobs and runs them in the background. The first
// reindex runs immediately so a stale index is healed at boot.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.reindex, ctx)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", zap.Duration("reindex_interval", s.interval))
	return nil
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) reindex(ctx context.Context) {
	start := time.Now()
	if err := s.reindexer.ReindexAll(ctx); err != nil {
		s.logger.Warn("leaderboard reindex failed", zap.Error(err))
		return
	}
	s.logger.Debug("leaderboard reindexed", zap.Duration("took", time.Since(start)))
}
