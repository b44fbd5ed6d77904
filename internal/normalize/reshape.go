package normalize

// ListToTable builds a table from a list of flat records. Null or an empty list
// gives a zero-row, zero-column table. When a date or datetime column is
// present the rows are sorted ascending by it, keeping source order for ties.
func ListToTable(records Value) (*Table, error) {
	t := NewTable()
	switch records.Kind() {
	case KindNull:
		return t, nil
	case KindArray:
	default:
		return nil, &ShapeError{Want: "list of records", Got: records.Kind().String()}
	}

	for _, rec := range records.Items() {
		if err := t.AppendRecord(rec); err != nil {
			return nil, err
		}
	}

	switch {
	case t.HasColumn("date"):
		return t, t.SortBy(Asc("date"))
	case t.HasColumn("datetime"):
		return t, t.SortBy(Asc("datetime"))
	}
	return t, nil
}

// MaxMinAvgSuffixes are appended to each exploded column name.
var MaxMinAvgSuffixes = [3]string{"maximum", "minimum", "average"}

// ExplodeMaxMinAvg replaces every column except exclude with three float
// columns <name>_maximum, <name>_minimum and <name>_average taken from the
// max/min/avg object in each cell. The excluded column, when present, is
// carried over unchanged after the exploded columns. Null cells stay null.
func ExplodeMaxMinAvg(t *Table, exclude string) (*Table, error) {
	if t.IsEmpty() {
		return NewTable(), nil
	}

	out := NewTable()
	out.rows = make([][]Value, t.Len())
	for r := range out.rows {
		out.rows[r] = []Value{}
	}

	for _, col := range t.columns {
		if col == exclude {
			continue
		}
		cells, _ := t.Column(col)
		exploded := [3][]Value{}
		for i := range exploded {
			exploded[i] = make([]Value, len(cells))
		}
		for r, cell := range cells {
			if cell.IsNull() {
				continue
			}
			m, err := DecodeMaxMinAvg(cell)
			if err != nil {
				if fe, ok := err.(*InvalidFieldError); ok {
					fe.Field = col
				}
				return nil, err
			}
			exploded[0][r] = Number(m.Max)
			exploded[1][r] = Number(m.Min)
			exploded[2][r] = Number(m.Avg)
		}
		for i, suffix := range MaxMinAvgSuffixes {
			if err := out.SetColumn(col+"_"+suffix, exploded[i]); err != nil {
				return nil, err
			}
		}
	}

	if t.HasColumn(exclude) {
		cells, _ := t.Column(exclude)
		if err := out.SetColumn(exclude, cells); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ExplodeGroupedSubstat flattens a two-dimensional grid whose cells are either
// record objects or empty. The grid is either an object of objects (outer keys
// are columns, inner keys are rows) or an array of arrays. Object cells become
// rows in row-major order; every other cell is skipped. The result is sorted by
// season when that column exists.
func ExplodeGroupedSubstat(grid Value) (*Table, error) {
	t := NewTable()

	switch grid.Kind() {
	case KindNull:
		return t, nil
	case KindObject:
		columns := grid.Fields()
		var rowKeys []string
		seen := make(map[string]bool)
		for _, col := range columns {
			inner, err := gridColumn(col.Value)
			if err != nil {
				return nil, err
			}
			for _, k := range inner.Keys() {
				if !seen[k] {
					seen[k] = true
					rowKeys = append(rowKeys, k)
				}
			}
		}
		for _, rk := range rowKeys {
			for _, col := range columns {
				inner, _ := gridColumn(col.Value)
				cell, ok := inner.Get(rk)
				if !ok || !cell.IsObject() {
					continue
				}
				if err := t.AppendRecord(cell); err != nil {
					return nil, err
				}
			}
		}
	case KindArray:
		for _, row := range grid.Items() {
			cells := row.Items()
			if row.IsObject() {
				cells = []Value{row}
			}
			for _, cell := range cells {
				if !cell.IsObject() {
					continue
				}
				if err := t.AppendRecord(cell); err != nil {
					return nil, err
				}
			}
		}
	default:
		return nil, &ShapeError{Want: "grid of records", Got: grid.Kind().String()}
	}

	if t.HasColumn("season") {
		if err := t.SortBy(Asc("season")); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// gridColumn returns the inner object of a grid column. A column that is not
// an object holds no cells.
func gridColumn(v Value) (Value, error) {
	if v.IsObject() {
		return v, nil
	}
	if s, ok := v.Str(); ok {
		if decoded, err := Decode(s); err == nil && decoded.IsObject() {
			return decoded, nil
		}
	}
	return Object(), nil
}

// AgainstColumns are the counters split out of a team statistic's against field.
var AgainstColumns = [3]string{"shots_against", "goals_against", "xG_against"}

// WrangleTeamStats converts a team's statistics, keyed by category, into one
// table per category. Each category maps a sub-label to its metrics; rows are
// indexed by sub-label in a column named after the category. The against
// field is split into shots_against, goals_against and xG_against, and every
// row is stamped with team_name and season.
func WrangleTeamStats(raw Value, teamName string, season int) (*Bundle, error) {
	bundle := NewBundle()
	switch raw.Kind() {
	case KindNull:
		return bundle, nil
	case KindObject:
	default:
		return nil, &ShapeError{Want: "team statistics object", Got: raw.Kind().String()}
	}

	for _, category := range raw.Fields() {
		t, err := teamStatCategory(category.Key, category.Value)
		if err != nil {
			return nil, err
		}
		if err := expandAgainst(t); err != nil {
			return nil, err
		}
		t.SetConstant("team_name", String(teamName))
		t.SetConstant("season", Int(int64(season)))
		bundle.Set(category.Key, t)
	}
	return bundle, nil
}

// StatLabelColumn indexes a category that carries its metrics directly rather
// than per sub-label.
const StatLabelColumn = "stat"

func teamStatCategory(name string, v Value) (*Table, error) {
	sub, err := nestedObject(v)
	if err != nil {
		return nil, err
	}
	if isMetricsRow(sub) {
		rec := append([]Field{{Key: StatLabelColumn, Value: String(name)}}, sub.Fields()...)
		t := NewTable(StatLabelColumn)
		return t, t.AppendRecord(Object(rec...))
	}
	t := NewTable(name)
	for _, label := range sub.Fields() {
		metrics, err := nestedObject(label.Value)
		if err != nil {
			return nil, err
		}
		rec := make([]Field, 0, metrics.Len()+1)
		rec = append(rec, Field{Key: name, Value: String(label.Key)})
		rec = append(rec, metrics.Fields()...)
		if err := t.AppendRecord(Object(rec...)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// isMetricsRow reports whether a category object is itself one row of metrics:
// it has an against field or a scalar value where sub-labels would hold objects.
func isMetricsRow(obj Value) bool {
	for _, f := range obj.Fields() {
		if f.Key == "against" {
			return true
		}
		if _, err := nestedObject(f.Value); err != nil {
			return true
		}
	}
	return false
}

// expandAgainst splits the against column. Tables without one are left as is.
func expandAgainst(t *Table) error {
	cells, err := t.Column("against")
	if err != nil {
		return nil
	}
	var out [3][]Value
	for i := range out {
		out[i] = make([]Value, len(cells))
	}
	for r, cell := range cells {
		if cell.IsNull() {
			continue
		}
		a, err := DecodeAgainst(cell)
		if err != nil {
			return err
		}
		out[0][r] = Int(a.Shots)
		out[1][r] = Int(a.Goals)
		out[2][r] = Number(a.XG)
	}
	for i, col := range AgainstColumns {
		if err := t.SetColumn(col, out[i]); err != nil {
			return err
		}
	}
	t.Drop("against")
	return nil
}
