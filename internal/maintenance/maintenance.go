// Package maintenance runs periodic background tasks as Go tickers inside
// the API server.
package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	PruneInterval time.Duration // Drop old runs and their rows
	KeepRuns      int           // Newest runs kept by a prune
}

// RunPruner deletes all but the newest keep runs. *db.Pool satisfies it.
type RunPruner interface {
	PruneRuns(ctx context.Context, keep int) (int64, error)
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`. onPrune, when set, is called
// after a prune removed at least one run.
func Start(ctx context.Context, runs RunPruner, cfg Config, onPrune func(), logger *slog.Logger) {
	if cfg.PruneInterval <= 0 || cfg.KeepRuns <= 0 {
		logger.Info("Maintenance tickers disabled")
		return
	}
	logger.Info("Maintenance tickers started",
		"prune", cfg.PruneInterval,
		"keep_runs", cfg.KeepRuns)

	t := time.NewTicker(cfg.PruneInterval)
	defer t.Stop()
	runLoop(ctx, t.C, func() {
		if prune(ctx, runs, cfg.KeepRuns, logger) > 0 && onPrune != nil {
			onPrune()
		}
	})
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// prune removes runs beyond the retention count. Their rows go with them
// through the foreign key cascade.
func prune(ctx context.Context, runs RunPruner, keep int, logger *slog.Logger) int64 {
	start := time.Now()
	n, err := runs.PruneRuns(ctx, keep)
	if err != nil {
		logger.Warn("Prune: failed to drop old runs", "error", err)
		return 0
	}
	if n > 0 {
		logger.Info("Prune: dropped old runs",
			"count", n, "kept", keep, "duration", time.Since(start).Round(time.Millisecond))
	}
	return n
}
