// Package db provides a pgxpool-based connection pool with schema bootstrap,
// prepared statement registration and health checking.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/understat-wrangler/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// ErrNoRows is returned when a run or dataset has no stored rows.
var ErrNoRows = errors.New("db: no rows")

// RunsChannel is the NOTIFY channel a finished run's id is published on.
const RunsChannel = "wrangle_runs_finished"

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Statements are prepared against the schema, so bootstrap it first.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// StartRun records a new run with its inputs.
func (p *Pool) StartRun(ctx context.Context, runID string, inputs any) error {
	raw, err := json.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("encode run inputs: %w", err)
	}
	if _, err := p.Exec(ctx, "insert_run", runID, raw); err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	return nil
}

// FinishRun stamps a run with its outcome.
func (p *Pool) FinishRun(ctx context.Context, runID string, tablesWritten int, errs []string) error {
	if errs == nil {
		errs = []string{}
	}
	raw, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("encode run errors: %w", err)
	}
	if _, err := p.Exec(ctx, "finish_run", runID, tablesWritten, raw); err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if _, err := p.Exec(ctx, "notify_run", RunsChannel, runID); err != nil {
		return fmt.Errorf("notify run %s: %w", runID, err)
	}
	return nil
}

// PruneRuns deletes every run but the newest keep ones, together with their
// rows, and returns how many runs were removed.
func (p *Pool) PruneRuns(ctx context.Context, keep int) (int64, error) {
	tag, err := p.Exec(ctx, "prune_runs", keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// LatestRun returns the id of the most recently started run.
func (p *Pool) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := p.QueryRow(ctx, "latest_run").Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoRows
	}
	return id, err
}

// Datasets lists the dataset names stored for a run.
func (p *Pool) Datasets(ctx context.Context, runID string) ([]string, error) {
	rows, err := p.Query(ctx, "run_datasets", runID)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan datasets: %w", err)
	}
	return names, nil
}

// DatasetRows returns the stored rows of one dataset as raw JSON objects,
// in row order.
func (p *Pool) DatasetRows(ctx context.Context, runID, dataset string) ([][]byte, error) {
	rows, err := p.Query(ctx, "dataset_rows", runID, dataset)
	if err != nil {
		return nil, fmt.Errorf("query dataset %s: %w", dataset, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("scan dataset %s: %w", dataset, err)
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}

// registerPreparedStatements registers all statements the sink and API use.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Runs
		"insert_run": "INSERT INTO " + config.RunsTable + " (id, inputs) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET inputs = EXCLUDED.inputs",
		"finish_run": "UPDATE " + config.RunsTable + " SET finished_at = now(), tables_written = $2, errors = $3 WHERE id = $1",
		"latest_run": "SELECT id FROM " + config.RunsTable + " ORDER BY started_at DESC LIMIT 1",
		"notify_run": "SELECT pg_notify($1, $2)",
		"prune_runs": "DELETE FROM " + config.RunsTable + " WHERE id NOT IN (SELECT id FROM " + config.RunsTable + " ORDER BY started_at DESC LIMIT $1)",

		// Rows
		"delete_dataset_rows": "DELETE FROM " + config.WrangledRowsTable + " WHERE run_id = $1 AND dataset = $2",
		"run_datasets":        "SELECT DISTINCT dataset FROM " + config.WrangledRowsTable + " WHERE run_id = $1 ORDER BY dataset",
		"dataset_rows":        "SELECT data FROM " + config.WrangledRowsTable + " WHERE run_id = $1 AND dataset = $2 ORDER BY row_num",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
