// Package sink writes wrangled tables to their destinations: CSV files on
// disk and, when configured, a Postgres table.
package sink

import (
	"context"
	"errors"
	"strings"

	"github.com/albapepper/understat-wrangler/internal/normalize"
)

// Sink stores one named table.
type Sink interface {
	Write(ctx context.Context, name string, t *normalize.Table) error
}

// Multi writes every table to each of its sinks. All sinks are attempted;
// their errors are joined.
type Multi []Sink

// Write implements Sink.
func (m Multi) Write(ctx context.Context, name string, t *normalize.Table) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, name, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var fileNameReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "\x00", "")

// FileName turns a dataset name into a safe file name stem.
func FileName(name string) string {
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}
