// Package listener provides a Postgres LISTEN/NOTIFY consumer for finished
// pipeline runs. It holds a dedicated pgx connection (not from the pool)
// listening on db.RunsChannel, so an API server drops responses cached under
// the latest run alias as soon as a `wrangle run --db` completes.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/understat-wrangler/internal/api/handler"
	"github.com/albapepper/understat-wrangler/internal/cache"
	"github.com/albapepper/understat-wrangler/internal/db"
)

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Start opens a dedicated connection and calls onRun with the id of every
// run that finishes. It reconnects automatically on connection loss. Blocks
// until ctx is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, onRun func(runID string), logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, onRun, logger)
		if ctx.Err() != nil {
			logger.Info("Run listener stopped (context cancelled)")
			return
		}

		logger.Error("Run listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = nextBackoff(backoff)
		case <-ctx.Done():
			return
		}
	}
}

func nextBackoff(d time.Duration) time.Duration {
	return min(d*2, maxReconnect)
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, onRun func(string), logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{db.RunsChannel}.Sanitize()); err != nil {
		return fmt.Errorf("LISTEN %s: %w", db.RunsChannel, err)
	}
	logger.Info("Run listener connected", "channel", db.RunsChannel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		if notification.Payload == "" {
			logger.Warn("Run notification without a run id")
			continue
		}
		logger.Info("Run finished", "run_id", notification.Payload)
		onRun(notification.Payload)
	}
}

// InvalidateLatest returns an onRun callback that drops every response cached
// under the latest run alias.
func InvalidateLatest(c *cache.Cache, logger *slog.Logger) func(string) {
	return func(runID string) {
		n := c.DeletePrefix(handler.LatestCachePrefix)
		logger.Debug("Dropped cached latest run responses", "run_id", runID, "entries", n)
	}
}
