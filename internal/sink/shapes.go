package sink

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Shape is the size of one CSV file found by Shapes.
type Shape struct {
	Path    string
	Rows    int
	Columns int
	Empty   bool
	Err     error
}

// String renders the shape as one report line.
func (s Shape) String() string {
	switch {
	case s.Err != nil:
		return fmt.Sprintf("ERROR (%v) --> '%s'", s.Err, s.Path)
	case s.Empty:
		return fmt.Sprintf("EMPTY --> '%s'", s.Path)
	default:
		return fmt.Sprintf("Shape: (%d, %d) --> '%s'", s.Rows, s.Columns, s.Path)
	}
}

// Shapes walks root for .csv files and reports rows × columns of each,
// sorted by path. Rows excludes the header. A file that fails to parse is
// reported with its error rather than aborting the walk.
func Shapes(root, encoding string) ([]Shape, error) {
	var out []Shape
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		out = append(out, shapeOf(path, encoding))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func shapeOf(path, encoding string) Shape {
	s := Shape{Path: path}
	f, err := os.Open(path)
	if err != nil {
		s.Err = err
		return s
	}
	defer f.Close()

	header, rows, err := ReadCSV(f, encoding)
	if err != nil {
		s.Err = err
		return s
	}
	if header == nil {
		s.Empty = true
		return s
	}
	s.Rows, s.Columns = len(rows), len(header)
	return s
}
