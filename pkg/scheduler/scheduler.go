// Package scheduler triggers routine sync passes on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/pkg/models"
	"github.com/Ramsey-B/laurel/pkg/redis"
	syncengine "github.com/Ramsey-B/laurel/pkg/sync"
)

// lockKey serializes scheduled syncs across instances; whichever instance
// wins the lock runs the cycle, the rest skip it
const lockKey = "scheduler-sync"

// SyncRunner starts one sync pass
type SyncRunner interface {
	Run(ctx context.Context, opts syncengine.Options) (*models.SyncLog, error)
}

// CounterPurger removes stale inbound rate limit rows
type CounterPurger interface {
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Config holds the scheduler configuration
type Config struct {
	PollInterval  time.Duration
	LockTTL       time.Duration
	CounterMaxAge time.Duration
}

// Scheduler runs routine syncs in the background and does periodic
// housekeeping between them
type Scheduler struct {
	runner SyncRunner
	purger CounterPurger
	locker *redis.Locker
	cfg    Config
	logger ectologger.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a new scheduler
func NewScheduler(runner SyncRunner, purger CounterPurger, locker *redis.Locker, cfg Config, logger ectologger.Logger) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.PollInterval
	}
	if cfg.CounterMaxAge <= 0 {
		cfg.CounterMaxAge = 24 * time.Hour
	}

	return &Scheduler{
		runner: runner,
		purger: purger,
		locker: locker,
		cfg:    cfg,
		logger: logger,
	}
}

// Start launches the poll loop
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.pollLoop(ctx)
	s.logger.WithContext(ctx).Infof("Scheduler started, polling every %v", s.cfg.PollInterval)
}

// Stop halts the poll loop and waits for an in-flight cycle to finish
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle runs one scheduled sync under the cross-instance lock
func (s *Scheduler) cycle(ctx context.Context) {
	lock, err := s.locker.Acquire(ctx, lockKey, s.cfg.LockTTL)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		s.logger.WithContext(ctx).Debug("another instance is running the scheduled sync")
		return
	}
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to acquire scheduler lock")
		return
	}
	defer lock.Release(ctx)

	if _, err := s.purger.PurgeOlderThan(ctx, s.cfg.CounterMaxAge); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("rate limit counter purge failed")
	}

	run, err := s.runner.Run(ctx, syncengine.Options{
		Type:        models.SyncTypeRoutine,
		TriggeredBy: "scheduler",
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("scheduled sync failed")
		return
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"sync_log_id": run.ID,
		"status":      run.Status,
	}).Debug("scheduled sync finished")
}
