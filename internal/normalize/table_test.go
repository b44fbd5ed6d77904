package normalize

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, text string) Value {
	t.Helper()
	v, err := Decode(text)
	require.NoError(t, err)
	return v
}

func mustTable(t *testing.T, text string) *Table {
	t.Helper()
	tbl, err := ListToTable(mustDecode(t, text))
	require.NoError(t, err)
	return tbl
}

func columnText(t *testing.T, tbl *Table, col string) []string {
	t.Helper()
	cells, err := tbl.Column(col)
	require.NoError(t, err)
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.Text()
	}
	return out
}

func TestAppendRecordFillsMissingCells(t *testing.T) {
	tbl := mustTable(t, `[{"a": 1}, {"b": 2}, {"a": 3, "c": 4}]`)

	require.Equal(t, []string{"a", "b", "c"}, tbl.Columns())
	require.Equal(t, 3, tbl.Len())
	if diff := cmp.Diff([]string{"1", "", "3"}, columnText(t, tbl, "a")); diff != "" {
		t.Fatalf("column a mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"", "2", ""}, columnText(t, tbl, "b")); diff != "" {
		t.Fatalf("column b mismatch (-want +got):\n%s", diff)
	}
}

func TestSortByNumericAwareAndStable(t *testing.T) {
	tbl := mustTable(t, `[
		{"minute": "45", "id": "a"},
		{"minute": "9", "id": "b"},
		{"minute": "45", "id": "c"},
		{"minute": null, "id": "d"},
		{"minute": "90", "id": "e"}
	]`)

	require.NoError(t, tbl.SortBy(Asc("minute")))
	require.Equal(t, []string{"b", "a", "c", "e", "d"}, columnText(t, tbl, "id"))

	require.NoError(t, tbl.SortBy(Desc("minute")))
	require.Equal(t, []string{"e", "a", "c", "b", "d"}, columnText(t, tbl, "id"))
}

func TestSortByMissingColumn(t *testing.T) {
	tbl := mustTable(t, `[{"a": 1}]`)
	require.ErrorIs(t, tbl.SortBy(Asc("season")), ErrMissingColumn)
}

func TestCoerceIntRejectsFractionsAndText(t *testing.T) {
	tbl := mustTable(t, `[{"goals": "3"}, {"goals": 2.5}]`)
	err := tbl.CoerceInt("goals")
	require.ErrorIs(t, err, ErrTypeCoercion)

	var ce *TypeCoercionError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, 1, ce.Row)

	tbl = mustTable(t, `[{"goals": "three"}]`)
	require.ErrorIs(t, tbl.CoerceInt("goals"), ErrTypeCoercion)

	tbl = mustTable(t, `[{"goals": "3"}, {"goals": null}]`)
	require.NoError(t, tbl.CoerceInt("goals"))
	c, _ := tbl.Cell(0, "goals")
	require.Equal(t, KindNumber, c.Kind())
	c, _ = tbl.Cell(1, "goals")
	require.True(t, c.IsNull())

	require.ErrorIs(t, tbl.CoerceFloat("assists"), ErrMissingColumn)
}

func TestCoerceIntRejectsOverflow(t *testing.T) {
	for _, raw := range []string{
		`"1e20"`,
		`"99999999999999999999"`,
		`99999999999999999999`,
		`-1e19`,
		`"9223372036854775808"`,
		`"NaN"`,
	} {
		tbl := mustTable(t, `[{"goals": 1}, {"goals": `+raw+`}]`)
		err := tbl.CoerceInt("goals")
		require.ErrorIs(t, err, ErrTypeCoercion, raw)

		var ce *TypeCoercionError
		require.ErrorAs(t, err, &ce)
		require.Equal(t, 1, ce.Row, raw)
	}
}

func TestCoerceIntKeepsLargeIntegersExact(t *testing.T) {
	tbl := mustTable(t, `[{"id": 9007199254740993}, {"id": "9223372036854775807"}, {"id": 1e3}]`)
	require.NoError(t, tbl.CoerceInt("id"))

	want := []int64{9007199254740993, math.MaxInt64, 1000}
	for r, w := range want {
		c, _ := tbl.Cell(r, "id")
		n, ok := c.Int64()
		require.True(t, ok)
		require.Equal(t, w, n)
	}
}

func TestSelectDropRename(t *testing.T) {
	tbl := mustTable(t, `[{"id": "1", "title": "Arsenal", "history": []}]`)

	sel, err := tbl.Select("title", "id")
	require.NoError(t, err)
	require.Equal(t, []string{"title", "id"}, sel.Columns())

	_, err = tbl.Select("nope")
	require.ErrorIs(t, err, ErrMissingColumn)

	tbl.Drop("history", "unknown")
	require.Equal(t, []string{"id", "title"}, tbl.Columns())

	require.NoError(t, tbl.Rename("title", "name"))
	require.Equal(t, []string{"id", "name"}, tbl.Columns())
	require.Error(t, tbl.Rename("id", "name"))
}

func TestTableRecordsRoundTrip(t *testing.T) {
	tbl := mustTable(t, `[
		{"date": "2020-09-20", "xG": "1.2", "h": {"title": "A"}},
		{"date": "2020-09-12", "xG": "0.4", "h": {"title": "B"}}
	]`)

	raw, err := tbl.MarshalJSON()
	require.NoError(t, err)

	again, err := ListToTable(mustDecode(t, string(raw)))
	require.NoError(t, err)
	require.True(t, tbl.Equal(again), "round trip changed the table")
}
