package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/understat-wrangler/internal/config"
	"github.com/albapepper/understat-wrangler/internal/db"
	"github.com/albapepper/understat-wrangler/internal/normalize"
)

// Postgres stores every row of a table as a JSON object in wrangled_rows,
// keyed by run and dataset name.
type Postgres struct {
	pool   *db.Pool
	runID  string
	logger *slog.Logger
}

// NewPostgres creates a Postgres sink writing under runID.
func NewPostgres(pool *db.Pool, runID string, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, runID: runID, logger: logger}
}

// Write implements Sink. A dataset written twice in one run replaces its
// earlier rows.
func (p *Postgres) Write(ctx context.Context, name string, t *normalize.Table) error {
	rows, err := tableRows(p.runID, name, t)
	if err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "delete_dataset_rows", p.runID, name); err != nil {
		return fmt.Errorf("clear dataset %s: %w", name, err)
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{config.WrangledRowsTable},
		[]string{"run_id", "dataset", "row_num", "data"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy dataset %s: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dataset %s: %w", name, err)
	}

	p.logger.Info("stored table", "dataset", name, "run_id", p.runID, "rows", n)
	return nil
}

// tableRows converts t into CopyFrom rows of (run_id, dataset, row_num, data).
func tableRows(runID, name string, t *normalize.Table) ([][]any, error) {
	rows := make([][]any, 0, t.Len())
	for r := 0; r < t.Len(); r++ {
		data, err := t.Row(r).MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode %s row %d: %w", name, r, err)
		}
		rows = append(rows, []any{runID, name, int32(r), data})
	}
	return rows, nil
}
