package normalize

import (
	"fmt"
)

// Options filters a list of records by field value, mirroring the options
// argument accepted by every understat listing.
type Options map[string]string

// Filter keeps the records whose fields match every option. Fields are
// compared by their text form, so {"isResult": "true"} matches a boolean.
// Non-array input is returned unchanged.
func Filter(records Value, opts Options) Value {
	if len(opts) == 0 || !records.IsArray() {
		return records
	}
	kept := make([]Value, 0, records.Len())
	for _, rec := range records.Items() {
		if matches(rec, opts) {
			kept = append(kept, rec)
		}
	}
	return Array(kept...)
}

func matches(rec Value, opts Options) bool {
	for k, want := range opts {
		got, ok := rec.Get(k)
		if !ok || got.Text() != want {
			return false
		}
	}
	return true
}

// ObjectValues turns an object into the array of its values. Arrays pass
// through; null becomes an empty array.
func ObjectValues(v Value) Value {
	switch v.Kind() {
	case KindObject:
		items := make([]Value, 0, v.Len())
		for _, f := range v.Fields() {
			items = append(items, f.Value)
		}
		return Array(items...)
	case KindNull:
		return Array()
	default:
		return v
	}
}

// Concat joins several arrays into one. Null inputs are skipped.
func Concat(lists ...Value) (Value, error) {
	var items []Value
	for _, l := range lists {
		switch l.Kind() {
		case KindNull:
		case KindArray:
			items = append(items, l.Items()...)
		default:
			return Value{}, &ShapeError{Want: "list", Got: l.Kind().String()}
		}
	}
	return Array(items...), nil
}

// derive fills a new column of out from a source column of src. Null source
// cells stay null.
func derive(out, src *Table, dst, col string, fn func(Value) (Value, error)) error {
	cells, err := src.Column(col)
	if err != nil {
		return err
	}
	values := make([]Value, len(cells))
	for r, cell := range cells {
		if cell.IsNull() {
			continue
		}
		v, err := fn(cell)
		if err != nil {
			return fmt.Errorf("%s row %d: %w", dst, r, err)
		}
		values[r] = v
	}
	return out.SetColumn(dst, values)
}

func asInt(col string) func(Value) (Value, error) {
	return func(v Value) (Value, error) {
		if v.IsNull() {
			return v, nil
		}
		n, ok := v.Int64()
		if !ok {
			return Value{}, &TypeCoercionError{Column: col, Row: -1, Want: "int", Value: v.Text()}
		}
		return Int(n), nil
	}
}

func asFloat(col string) func(Value) (Value, error) {
	return func(v Value) (Value, error) {
		if v.IsNull() {
			return v, nil
		}
		f, ok := v.Float()
		if !ok {
			return Value{}, &TypeCoercionError{Column: col, Row: -1, Want: "float", Value: v.Text()}
		}
		return Number(f), nil
	}
}

func sideValue(side string, convert func(Value) (Value, error)) func(Value) (Value, error) {
	return func(cell Value) (Value, error) {
		v, err := ExtractNestedField(cell, "", ShapeHomeAway, side)
		if err != nil {
			return Value{}, err
		}
		return convert(v)
	}
}

func forecastPercent(outcome string) func(Value) (Value, error) {
	return func(cell Value) (Value, error) {
		f, err := DecodeForecast(cell)
		if err != nil {
			return Value{}, err
		}
		p, err := f.Percent(outcome)
		if err != nil {
			return Value{}, err
		}
		return Number(p), nil
	}
}

func teamTitle(cell Value) (Value, error) {
	title, err := TeamTitle(cell)
	if err != nil {
		return Value{}, err
	}
	return String(title), nil
}

// fixtureBase builds datetime, HomeTeam and AwayTeam in source row order.
func fixtureBase(t *Table) (*Table, error) {
	dt, err := t.Column("datetime")
	if err != nil {
		return nil, err
	}
	out := NewTable()
	out.rows = make([][]Value, len(dt))
	for r := range out.rows {
		out.rows[r] = []Value{}
	}
	if err := out.SetColumn("datetime", dt); err != nil {
		return nil, err
	}
	if err := derive(out, t, "HomeTeam", "h", teamTitle); err != nil {
		return nil, err
	}
	if err := derive(out, t, "AwayTeam", "a", teamTitle); err != nil {
		return nil, err
	}
	return out, nil
}

// UpcomingFixtures reduces fixture records to datetime, HomeTeam and AwayTeam,
// sorted by datetime.
func UpcomingFixtures(t *Table) (*Table, error) {
	if t.IsEmpty() {
		return NewTable(), nil
	}
	out, err := fixtureBase(t)
	if err != nil {
		return nil, err
	}
	return out, out.SortBy(Asc("datetime"))
}

func results(t *Table) (*Table, error) {
	out, err := fixtureBase(t)
	if err != nil {
		return nil, err
	}
	steps := []struct {
		dst, src string
		fn       func(Value) (Value, error)
	}{
		{"HomeGoals", "goals", sideValue("H", asInt("HomeGoals"))},
		{"AwayGoals", "goals", sideValue("A", asInt("AwayGoals"))},
		{"Home_xG", "xG", sideValue("H", asFloat("Home_xG"))},
		{"Away_xG", "xG", sideValue("A", asFloat("Away_xG"))},
		{"ForecastedHomeWinPercent", "forecast", forecastPercent("H")},
		{"ForecastedAwayWinPercent", "forecast", forecastPercent("A")},
		{"ForecastedDrawPercent", "forecast", forecastPercent("D")},
	}
	for _, s := range steps {
		if err := derive(out, t, s.dst, s.src, s.fn); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Results flattens played matches: team titles, goals and xG per side and
// the forecast as percentages, sorted by datetime.
func Results(t *Table) (*Table, error) {
	if t.IsEmpty() {
		return NewTable(), nil
	}
	out, err := results(t)
	if err != nil {
		return nil, err
	}
	return out, out.SortBy(Asc("datetime"))
}

var resultNames = map[string]string{"w": "Win", "l": "Loss", "d": "Draw"}

// TeamResults is Results for one team's season, adding the side the team
// played on (h_a), the spelled-out result, TeamOfInterest and season.
func TeamResults(t *Table, team string, season int) (*Table, error) {
	if t.IsEmpty() {
		return NewTable(), nil
	}
	out, err := results(t)
	if err != nil {
		return nil, err
	}
	if err := derive(out, t, "h_a", "side", func(v Value) (Value, error) { return v, nil }); err != nil {
		return nil, err
	}
	if err := derive(out, t, "result", "result", func(v Value) (Value, error) {
		if name, ok := resultNames[v.Text()]; ok {
			return String(name), nil
		}
		return Null(), nil
	}); err != nil {
		return nil, err
	}
	out.SetConstant("TeamOfInterest", String(team))
	out.SetConstant("season", Int(int64(season)))
	return out, out.SortBy(Asc("datetime"))
}

// TeamFixtures merges a team's upcoming home and away fixtures.
func TeamFixtures(home, away Value, team string) (*Table, error) {
	all, err := Concat(home, away)
	if err != nil {
		return nil, err
	}
	t, err := ListToTable(all)
	if err != nil {
		return nil, err
	}
	if t.IsEmpty() {
		return NewTable(), nil
	}
	out, err := fixtureBase(t)
	if err != nil {
		return nil, err
	}
	if err := derive(out, t, "h_a", "side", func(v Value) (Value, error) { return v, nil }); err != nil {
		return nil, err
	}
	out.SetConstant("TeamOfInterest", String(team))
	return out, out.SortBy(Asc("datetime"))
}

// LeaguePlayers coerces goals and assists to integers and ranks players by
// goals, then assists, both descending. Both columns are required.
func LeaguePlayers(t *Table) (*Table, error) {
	if t.IsEmpty() {
		return t, nil
	}
	out := t.Clone()
	for _, col := range []string{"goals", "assists"} {
		if err := out.CoerceInt(col); err != nil {
			return nil, err
		}
	}
	return out, out.SortBy(Desc("goals"), Desc("assists"))
}

// TeamPlayers stamps a team's player list with the season.
func TeamPlayers(t *Table, season int) *Table {
	out := t.Clone()
	out.SetConstant("season", Int(int64(season)))
	return out
}

// MatchPlayers flattens a match roster: home players first, then away. Each
// side maps a roster id to a player record.
func MatchPlayers(rosters Value) (*Table, error) {
	t := NewTable()
	if rosters.IsNull() {
		return t, nil
	}
	for _, side := range []string{"h", "a"} {
		players, ok := rosters.Get(side)
		if !ok {
			return nil, &MissingColumnError{Column: side}
		}
		for _, rec := range ObjectValues(players).Items() {
			if err := t.AppendRecord(rec); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// MatchShots joins the home and away shot lists, ordered by minute.
func MatchShots(shots Value) (*Table, error) {
	if shots.IsNull() {
		return NewTable(), nil
	}
	var sides []Value
	for _, side := range []string{"h", "a"} {
		list, ok := shots.Get(side)
		if !ok {
			return nil, &MissingColumnError{Column: side}
		}
		sides = append(sides, list)
	}
	all, err := Concat(sides...)
	if err != nil {
		return nil, err
	}
	t, err := ListToTable(all)
	if err != nil {
		return nil, err
	}
	if t.HasColumn("minute") {
		return t, t.SortBy(Asc("minute"))
	}
	return t, nil
}

// PlayerStats explodes a player's per-position max/min/avg statistics. raw is
// either an object keyed by position or a list of records carrying a position
// field. A non-empty positions list keeps only those positions.
func PlayerStats(raw Value, positions []string) (*Table, error) {
	var records []Value
	switch raw.Kind() {
	case KindNull:
	case KindObject:
		for _, f := range raw.Fields() {
			stat, err := nestedObject(f.Value)
			if err != nil {
				return nil, err
			}
			records = append(records, stat.With("position", String(f.Key)))
		}
	case KindArray:
		records = raw.Items()
	default:
		return nil, &ShapeError{Want: "player statistics", Got: raw.Kind().String()}
	}

	if len(positions) > 0 {
		allowed := make(map[string]bool, len(positions))
		for _, p := range positions {
			allowed[p] = true
		}
		kept := records[:0:0]
		for _, rec := range records {
			if p, ok := rec.Get("position"); ok && allowed[p.Text()] {
				kept = append(kept, rec)
			}
		}
		records = kept
	}

	t, err := ListToTable(Array(records...))
	if err != nil {
		return nil, err
	}
	return ExplodeMaxMinAvg(t, "position")
}

// GroupedSubstats are the grid-shaped groups of a player's grouped statistics.
var GroupedSubstats = []string{"position", "situation", "shotZones", "shotTypes"}

// PlayerGroupedStats splits a player's grouped statistics into a per-season
// table and one table per substat grid.
func PlayerGroupedStats(raw Value) (*Bundle, error) {
	bundle := NewBundle()
	if raw.IsNull() {
		return bundle, nil
	}
	if !raw.IsObject() {
		return nil, &ShapeError{Want: "grouped statistics object", Got: raw.Kind().String()}
	}

	seasonList, _ := raw.Get("season")
	seasons, err := ListToTable(seasonList)
	if err != nil {
		return nil, fmt.Errorf("season: %w", err)
	}
	if !seasons.IsEmpty() {
		if err := seasons.SortBy(Asc("season")); err != nil {
			return nil, err
		}
	}
	bundle.Set("season", seasons)

	for _, substat := range GroupedSubstats {
		grid, _ := raw.Get(substat)
		t, err := ExplodeGroupedSubstat(grid)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", substat, err)
		}
		bundle.Set(substat, t)
	}
	return bundle, nil
}

// LeagueStats orders the monthly per-league summary by league, year and
// month, and adds a datetime column on the 28th of each month. With
// sortByDate the rows are then reordered by datetime.
func LeagueStats(t *Table, sortByDate bool) (*Table, error) {
	if t.IsEmpty() {
		return t, nil
	}
	out := t.Clone()
	for _, col := range []string{"year", "month"} {
		if err := out.CoerceInt(col); err != nil {
			return nil, err
		}
	}
	if err := out.SortBy(Asc("league"), Asc("year"), Asc("month")); err != nil {
		return nil, err
	}
	dates := make([]Value, out.Len())
	for r := range dates {
		y, _ := out.Cell(r, "year")
		m, _ := out.Cell(r, "month")
		yy, yok := y.Int64()
		mm, mok := m.Int64()
		if yok && mok {
			dates[r] = String(fmt.Sprintf("%04d-%02d-28", yy, mm))
		}
	}
	if err := out.SetColumn("datetime", dates); err != nil {
		return nil, err
	}
	if sortByDate {
		return out, out.SortBy(Asc("datetime"))
	}
	return out, nil
}

// Teams reduces the league's team listing to id and title.
func Teams(raw Value) (*Table, error) {
	t, err := ListToTable(ObjectValues(raw))
	if err != nil {
		return nil, err
	}
	if t.IsEmpty() {
		return t, nil
	}
	return t.Select("id", "title")
}
