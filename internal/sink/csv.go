package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/albapepper/understat-wrangler/internal/normalize"
)

// Supported CSV encodings.
const (
	EncodingLatin1 = "latin-1"
	EncodingUTF8   = "utf-8"
)

// CSV writes each table to <Dir>/<name>.csv with a header row.
type CSV struct {
	Dir      string
	Encoding string
	logger   *slog.Logger
}

// NewCSV creates the output directory and validates the encoding.
func NewCSV(dir, encoding string, logger *slog.Logger) (*CSV, error) {
	if logger == nil {
		logger = slog.Default()
	}
	enc, err := normalizeEncoding(encoding)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder: %w", err)
	}
	return &CSV{Dir: dir, Encoding: enc, logger: logger}, nil
}

func normalizeEncoding(enc string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "latin-1", "latin1", "iso-8859-1":
		return EncodingLatin1, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	default:
		return "", fmt.Errorf("unsupported output encoding %q", enc)
	}
}

// Path returns the file a dataset is written to.
func (c *CSV) Path(name string) string {
	return filepath.Join(c.Dir, FileName(name)+".csv")
}

// Write implements Sink.
func (c *CSV) Write(_ context.Context, name string, t *normalize.Table) error {
	path := c.Path(name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := WriteCSV(f, t, c.Encoding); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	c.logger.Info("saved table", "file", path, "rows", t.Len(), "columns", len(t.Columns()))
	return nil
}

// latin1 maps runes outside ISO-8859-1 to '?' and then encodes.
func latin1() transform.Transformer {
	return transform.Chain(
		runes.Map(func(r rune) rune {
			if r > 0xFF {
				return '?'
			}
			return r
		}),
		charmap.ISO8859_1.NewEncoder(),
	)
}

// WriteCSV writes t as comma-separated text in the given encoding.
func WriteCSV(w io.Writer, t *normalize.Table, encoding string) error {
	enc, err := normalizeEncoding(encoding)
	if err != nil {
		return err
	}
	var tw *transform.Writer
	if enc == EncodingLatin1 {
		tw = transform.NewWriter(w, latin1())
		w = tw
	}

	cw := csv.NewWriter(w)
	columns := t.Columns()
	if err := cw.Write(columns); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for r := 0; r < t.Len(); r++ {
		for i, col := range columns {
			// null is written empty, objects and arrays as compact JSON
			v, _ := t.Cell(r, col)
			record[i] = v.Text()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if tw != nil {
		return tw.Close()
	}
	return nil
}

// ReadCSV reads a file written by WriteCSV back into header and rows.
func ReadCSV(r io.Reader, encoding string) ([]string, [][]string, error) {
	enc, err := normalizeEncoding(encoding)
	if err != nil {
		return nil, nil, err
	}
	if enc == EncodingLatin1 {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}
