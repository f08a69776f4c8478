package scheduler

import (
	"context"
	"time"

	"slamonitor_backend/internal/runtrack"
	"slamonitor_backend/platform/logger"
)

const (
	defaultRunHistoryCleanupInterval = time.Hour
	defaultRunHistoryRetention       = 30 * 24 * time.Hour
)

// RunHistoryCleanup periodically removes finished monitor runs past the
// retention window. Step rows go with their run via cascade.
type RunHistoryCleanup struct {
	repo      *runtrack.Repository
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
}

func NewRunHistoryCleanup(repo *runtrack.Repository, log *logger.Logger, interval, retention time.Duration) *RunHistoryCleanup {
	if interval <= 0 {
		interval = defaultRunHistoryCleanupInterval
	}
	if retention <= 0 {
		retention = defaultRunHistoryRetention
	}

	return &RunHistoryCleanup{
		repo:      repo,
		log:       log,
		interval:  interval,
		retention: retention,
	}
}

func (c *RunHistoryCleanup) Run(ctx context.Context) {
	if c == nil || c.repo == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *RunHistoryCleanup) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-c.retention)

	deleted, err := c.repo.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		c.log.Warn("run history cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("run history cleanup deleted old runs", "deleted", deleted)
	}
}
