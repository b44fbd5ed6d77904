package normalize

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Table is a flat table: an ordered column list and rows holding one cell per
// column. Tables returned by this package are fresh values owned by the caller.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	t.columns = append(t.columns, name)
	t.index[name] = len(t.columns) - 1
	for r := range t.rows {
		t.rows[r] = append(t.rows[r], Null())
	}
	return len(t.columns) - 1
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// IsEmpty reports whether the table has no rows. Writers skip empty tables.
func (t *Table) IsEmpty() bool { return len(t.rows) == 0 }

// HasColumn reports whether name is a column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AppendRecord appends an object as a row. Unknown keys add columns, filling
// earlier rows with null.
func (t *Table) AppendRecord(rec Value) error {
	if !rec.IsObject() {
		return &ShapeError{Want: "object record", Got: rec.Kind().String()}
	}
	row := make([]Value, len(t.columns))
	for _, f := range rec.Fields() {
		i, ok := t.index[f.Key]
		if !ok {
			i = t.addColumn(f.Key)
			row = append(row, Null())
		}
		row[i] = f.Value
	}
	t.rows = append(t.rows, row)
	return nil
}

// Cell returns the value at row r in column col.
func (t *Table) Cell(r int, col string) (Value, bool) {
	i, ok := t.index[col]
	if !ok || r < 0 || r >= len(t.rows) {
		return Value{}, false
	}
	return t.rows[r][i], true
}

// Row returns row r as an ordered object.
func (t *Table) Row(r int) Value {
	fields := make([]Field, len(t.columns))
	for i, c := range t.columns {
		fields[i] = Field{Key: c, Value: t.rows[r][i]}
	}
	return Value{kind: KindObject, fields: fields}
}

// Records returns every row as an object, in row order.
func (t *Table) Records() Value {
	items := make([]Value, len(t.rows))
	for r := range t.rows {
		items[r] = t.Row(r)
	}
	return Array(items...)
}

// Column returns a copy of the cells of col.
func (t *Table) Column(col string) ([]Value, error) {
	i, ok := t.index[col]
	if !ok {
		return nil, &MissingColumnError{Column: col}
	}
	out := make([]Value, len(t.rows))
	for r := range t.rows {
		out[r] = t.rows[r][i]
	}
	return out, nil
}

// SetColumn sets or adds col with one value per row.
func (t *Table) SetColumn(col string, values []Value) error {
	if len(values) != len(t.rows) {
		return fmt.Errorf("column %q: got %d values for %d rows", col, len(values), len(t.rows))
	}
	i := t.addColumn(col)
	for r := range t.rows {
		t.rows[r][i] = values[r]
	}
	return nil
}

// SetConstant sets or adds col with the same value in every row.
func (t *Table) SetConstant(col string, v Value) {
	i := t.addColumn(col)
	for r := range t.rows {
		t.rows[r][i] = v
	}
}

// MapColumn replaces each cell of col with fn(cell).
func (t *Table) MapColumn(col string, fn func(row int, v Value) (Value, error)) error {
	i, ok := t.index[col]
	if !ok {
		return &MissingColumnError{Column: col}
	}
	for r := range t.rows {
		nv, err := fn(r, t.rows[r][i])
		if err != nil {
			return err
		}
		t.rows[r][i] = nv
	}
	return nil
}

// Drop removes columns. Unknown names are ignored.
func (t *Table) Drop(cols ...string) {
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}
	keep := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	if len(keep) == len(t.columns) {
		return
	}
	*t = *t.mustSelect(keep)
}

// Rename renames a column in place.
func (t *Table) Rename(from, to string) error {
	i, ok := t.index[from]
	if !ok {
		return &MissingColumnError{Column: from}
	}
	if from == to {
		return nil
	}
	if _, exists := t.index[to]; exists {
		return fmt.Errorf("rename %q: column %q already exists", from, to)
	}
	delete(t.index, from)
	t.columns[i] = to
	t.index[to] = i
	return nil
}

// Select returns a new table with only the named columns, in that order.
func (t *Table) Select(cols ...string) (*Table, error) {
	for _, c := range cols {
		if !t.HasColumn(c) {
			return nil, &MissingColumnError{Column: c}
		}
	}
	return t.mustSelect(cols), nil
}

func (t *Table) mustSelect(cols []string) *Table {
	out := NewTable(cols...)
	out.rows = make([][]Value, len(t.rows))
	for r, row := range t.rows {
		nr := make([]Value, len(cols))
		for j, c := range cols {
			nr[j] = row[t.index[c]]
		}
		out.rows[r] = nr
	}
	return out
}

// Clone returns a deep copy of the table structure. Cells are values and are
// shared safely.
func (t *Table) Clone() *Table {
	return t.mustSelect(t.columns)
}

// CoerceInt converts every cell of col to an integer. Nulls stay null.
func (t *Table) CoerceInt(col string) error {
	return t.MapColumn(col, func(r int, v Value) (Value, error) {
		if v.IsNull() {
			return v, nil
		}
		n, ok := v.Int64()
		if !ok {
			return Value{}, &TypeCoercionError{Column: col, Row: r, Want: "int", Value: v.Text()}
		}
		return Int(n), nil
	})
}

// CoerceFloat converts every cell of col to a float. Nulls stay null.
func (t *Table) CoerceFloat(col string) error {
	return t.MapColumn(col, func(r int, v Value) (Value, error) {
		if v.IsNull() {
			return v, nil
		}
		f, ok := v.Float()
		if !ok {
			return Value{}, &TypeCoercionError{Column: col, Row: r, Want: "float", Value: v.Text()}
		}
		return Number(f), nil
	})
}

// SortKey orders rows by one column.
type SortKey struct {
	Column     string
	Descending bool
}

// Asc sorts ascending by col.
func Asc(col string) SortKey { return SortKey{Column: col} }

// Desc sorts descending by col.
func Desc(col string) SortKey { return SortKey{Column: col, Descending: true} }

// SortBy stably sorts the rows by the given keys. Rows that compare equal keep
// their original relative order.
func (t *Table) SortBy(keys ...SortKey) error {
	idx := make([]int, len(keys))
	for k, key := range keys {
		i, ok := t.index[key.Column]
		if !ok {
			return &MissingColumnError{Column: key.Column}
		}
		idx[k] = i
	}
	sort.SliceStable(t.rows, func(a, b int) bool {
		for k, key := range keys {
			c := compareCells(t.rows[a][idx[k]], t.rows[b][idx[k]])
			if c == 0 {
				continue
			}
			// nulls stay last regardless of direction
			if t.rows[a][idx[k]].IsNull() || t.rows[b][idx[k]].IsNull() {
				return c < 0
			}
			if key.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

// compareCells orders two cells: nulls last, numbers (and numeric strings when
// both sides parse) numerically, everything else by text.
func compareCells(a, b Value) int {
	switch {
	case a.IsNull() && b.IsNull():
		return 0
	case a.IsNull():
		return 1
	case b.IsNull():
		return -1
	}
	if af, ok := a.Float(); ok {
		if bf, ok := b.Float(); ok && !math.IsNaN(af) && !math.IsNaN(bf) {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a.Text(), b.Text())
}

// Equal reports whether two tables have the same columns and cells.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.columns) != len(o.columns) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != o.columns[i] {
			return false
		}
	}
	for r := range t.rows {
		for c := range t.rows[r] {
			if !t.rows[r][c].Equal(o.rows[r][c]) {
				return false
			}
		}
	}
	return true
}

// MarshalJSON encodes the table as an array of row objects.
func (t *Table) MarshalJSON() ([]byte, error) {
	return t.Records().MarshalJSON()
}
