package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/next-chapter/resume-engine/internal/metrics"
)

// Purger deletes translation history older than a retention window
type Purger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// Cleaner handles periodic purging of expired translation history
type Cleaner struct {
	purger    Purger
	interval  time.Duration
	retention time.Duration
	recorder  *metrics.Recorder
}

// NewCleaner creates a new retention worker
func NewCleaner(purger Purger, interval, retention time.Duration, recorder *metrics.Recorder) *Cleaner {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	return &Cleaner{
		purger:    purger,
		interval:  interval,
		retention: retention,
		recorder:  recorder,
	}
}

// Run purges immediately and then on every tick until ctx is done.
// It always returns nil so it can be handed to an errgroup.
func (c *Cleaner) Run(ctx context.Context) error {
	slog.Info("retention worker started", "interval", c.interval, "retention", c.retention)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention worker stopped")
			return nil
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) {
	slog.Debug("running retention cycle")
	start := time.Now()

	purged, err := c.purger.PurgeExpired(ctx, c.retention)
	c.recorder.RecordRetentionCycle(purged, time.Since(start), err)
	if err != nil {
		slog.Error("failed to purge expired translations", "error", err)
		return
	}

	if purged == 0 {
		slog.Debug("no expired translations found")
		return
	}

	slog.Info("expired translations purged", "count", purged, "retention", c.retention)
}
