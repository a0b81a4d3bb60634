package core

// scheduler.go runs the retention sweep.
//
// Finished imports (COMPLETED or FAILED) older than the retention window are
// deleted in batches together with their row results. The sweep runs once on
// start and then every CheckInterval until ctx is cancelled. A failed sweep
// is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls the retention sweep. Zero fields take defaults.
type RetentionConfig struct {
	RetentionDays int           // Days a finished import is kept (default: 30)
	BatchSize     int           // Imports deleted per statement (default: 500)
	CheckInterval time.Duration // Time between sweeps (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetentionScheduler blocks running sweeps until ctx is cancelled.
// Run it in its own goroutine.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"batch_size", cfg.BatchSize,
		"interval", cfg.CheckInterval,
	)

	s.runRetention(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.runRetention(ctx, cfg)
		}
	}
}

func (s *Service) runRetention(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()
	purged, err := s.PurgeFinishedImports(ctx, s.now().AddDate(0, 0, -cfg.RetentionDays), cfg.BatchSize)
	if err != nil {
		slog.Error("retention sweep failed", "error", err, "purged", purged)
		return
	}
	slog.Info("retention sweep completed",
		"purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// PurgeFinishedImports deletes finished imports completed before cutoff,
// batchSize at a time, and returns how many were removed.
func (s *Service) PurgeFinishedImports(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.store.PurgeImports(ctx, cutoff, batchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}
