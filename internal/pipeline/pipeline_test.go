package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/albapepper/understat-wrangler/internal/config"
	"github.com/albapepper/understat-wrangler/internal/idcache"
	"github.com/albapepper/understat-wrangler/internal/normalize"
	"github.com/albapepper/understat-wrangler/internal/understat"
)

// ------------------------------------------------------------------------
// Fakes
// ------------------------------------------------------------------------

type fakeSource struct {
	mu    sync.Mutex
	data  map[string]string
	calls []string
}

func (f *fakeSource) get(format string, args ...any) ([]byte, error) {
	key := fmt.Sprintf(format, args...)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if v, ok := f.data[key]; ok {
		return []byte(v), nil
	}
	return nil, fmt.Errorf("%s: %w", key, understat.ErrVariableNotFound)
}

func (f *fakeSource) LeagueFixtures(_ context.Context, league string, season int) ([]byte, error) {
	return f.get("league_fixtures/%s/%d", league, season)
}

func (f *fakeSource) LeagueResults(_ context.Context, league string, season int) ([]byte, error) {
	return f.get("league_results/%s/%d", league, season)
}

func (f *fakeSource) LeaguePlayers(_ context.Context, league string, season int) ([]byte, error) {
	return f.get("league_players/%s/%d", league, season)
}

func (f *fakeSource) Teams(_ context.Context, league string, season int) ([]byte, error) {
	return f.get("teams/%s/%d", league, season)
}

func (f *fakeSource) Stats(context.Context) ([]byte, error) { return f.get("stats") }

func (f *fakeSource) PlayerMatches(_ context.Context, id string) ([]byte, error) {
	return f.get("player_matches/%s", id)
}

func (f *fakeSource) PlayerShots(_ context.Context, id string) ([]byte, error) {
	return f.get("player_shots/%s", id)
}

func (f *fakeSource) PlayerStats(_ context.Context, id string) ([]byte, error) {
	return f.get("player_stats/%s", id)
}

func (f *fakeSource) PlayerGroupedStats(_ context.Context, id string) ([]byte, error) {
	return f.get("player_grouped/%s", id)
}

func (f *fakeSource) TeamFixtures(_ context.Context, team string, season int, side string) ([]byte, error) {
	return f.get("team_fixtures/%s/%d/%s", team, season, side)
}

func (f *fakeSource) TeamResults(_ context.Context, team string, season int) ([]byte, error) {
	return f.get("team_results/%s/%d", team, season)
}

func (f *fakeSource) TeamPlayers(_ context.Context, team string, season int) ([]byte, error) {
	return f.get("team_players/%s/%d", team, season)
}

func (f *fakeSource) TeamStats(_ context.Context, team string, season int) ([]byte, error) {
	return f.get("team_stats/%s/%d", team, season)
}

func (f *fakeSource) MatchPlayers(_ context.Context, id string) ([]byte, error) {
	return f.get("match_players/%s", id)
}

func (f *fakeSource) MatchShots(_ context.Context, id string) ([]byte, error) {
	return f.get("match_shots/%s", id)
}

type fakeNames struct {
	teams, players map[string]string
}

func (n fakeNames) TeamName(id string) (string, error) {
	if name, ok := n.teams[id]; ok {
		return name, nil
	}
	return "", fmt.Errorf("team %s: %w", id, idcache.ErrUnknownID)
}

func (n fakeNames) PlayerName(id string) (string, error) {
	if name, ok := n.players[id]; ok {
		return name, nil
	}
	return "", fmt.Errorf("player %s: %w", id, idcache.ErrUnknownID)
}

type memorySink struct {
	mu     sync.Mutex
	tables map[string]*normalize.Table
	fail   string
}

func (m *memorySink) Write(_ context.Context, name string, t *normalize.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == m.fail {
		return errors.New("disk full")
	}
	if m.tables == nil {
		m.tables = map[string]*normalize.Table{}
	}
	m.tables[name] = t
	return nil
}

func (m *memorySink) names() []string {
	var out []string
	for name := range m.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type memoryStore struct {
	teams, players map[string]string
	saved          int
	saveErr        error
}

func (s *memoryStore) SetTeams(m map[string]string)   { s.teams = m }
func (s *memoryStore) SetPlayers(m map[string]string) { s.players = m }
func (s *memoryStore) Save(context.Context) error {
	s.saved++
	return s.saveErr
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func column(t *testing.T, tbl *normalize.Table, col string) []string {
	t.Helper()
	values, err := tbl.Column(col)
	require.NoError(t, err)
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Text()
	}
	return out
}

// ------------------------------------------------------------------------
// Fixtures
// ------------------------------------------------------------------------

const (
	playedJSON = `[
		{"id": "14100", "isResult": true, "side": "h", "result": "l",
		 "h": {"id": "83", "title": "Arsenal"}, "a": {"id": "80", "title": "Liverpool"},
		 "goals": {"h": "1", "a": "3"}, "xG": {"h": "0.7", "a": "2.4"},
		 "datetime": "2020-09-28 19:00:00",
		 "forecast": {"w": "0.1", "d": "0.2", "l": "0.7"}},
		{"id": "14620", "isResult": true, "side": "a", "result": "w",
		 "h": {"id": "87", "title": "Fulham"}, "a": {"id": "83", "title": "Arsenal"},
		 "goals": {"h": "0", "a": "3"}, "xG": {"h": "0.1", "a": "1.9"},
		 "datetime": "2020-09-12 11:30:00",
		 "forecast": {"w": "0.0091", "d": "0.0736", "l": "0.9173"}}
	]`
	upcomingJSON = `[
		{"id": "14200", "isResult": false, "side": "h",
		 "h": {"id": "83", "title": "Arsenal"}, "a": {"id": "81", "title": "Chelsea"},
		 "datetime": "2021-05-12 18:00:00", "forecast": null}
	]`
	upcomingAwayJSON = `[
		{"id": "14210", "isResult": false, "side": "a",
		 "h": {"id": "80", "title": "Liverpool"}, "a": {"id": "83", "title": "Arsenal"},
		 "datetime": "2021-05-01 18:00:00", "forecast": null}
	]`
	leaguePlayersJSON = `[
		{"id": "318", "player_name": "Pierre-Emerick Aubameyang", "goals": "10", "assists": "2", "team_title": "Arsenal"},
		{"id": "1250", "player_name": "Mohamed Salah", "goals": "22", "assists": "5", "team_title": "Liverpool"}
	]`
	teamsJSON = `{
		"83": {"id": "83", "title": "Arsenal"},
		"87": {"id": "87", "title": "Fulham"}
	}`
	rostersJSON = `{
		"h": {"1": {"player": "Alphonse Areola", "team_id": "87"}},
		"a": {"2": {"player": "Bernd Leno", "team_id": "83"}, "3": {"player": "Kieran Tierney", "team_id": "83"}}
	}`
	shotsJSON = `{
		"h": [{"id": "1", "minute": "78", "player": "Ademola Lookman"}],
		"a": [{"id": "2", "minute": "8", "player": "Alexandre Lacazette"}]
	}`
	playerStatsJSON = `{
		"FW": {"goals": {"max": "0.9", "min": "0", "avg": "0.4"}},
		"AML": {"goals": {"max": "0.5", "min": "0", "avg": "0.2"}}
	}`
	groupedJSON = `{
		"season": [{"season": "2020", "goals": "10"}, {"season": "2019", "goals": "22"}],
		"position": {"2020": {"FW": {"position": "FW", "season": "2020", "goals": "10"}}},
		"situation": {"2020": {"OpenPlay": {"situation": "OpenPlay", "season": "2020", "goals": "8"}}},
		"shotZones": {"2020": {"shotOboxTotal": {"shotZones": "shotOboxTotal", "season": "2020", "goals": "1"}}},
		"shotTypes": {"2020": {"Head": {"shotTypes": "Head", "season": "2020", "goals": "2"}}}
	}`
	statsJSON = `[
		{"league": "EPL", "year": "2021", "month": "1", "goals": "10"},
		{"league": "EPL", "year": "2020", "month": "12", "goals": "12"}
	]`
	teamStatsJSON = `{
		"situation": {"OpenPlay": {"shots": 300, "goals": 40, "xG": 38.2, "against": {"shots": 200, "goals": 25, "xG": 22.1}}},
		"formation": {"4-3-3": {"stat": "4-3-3", "time": 900, "against": {"shots": 80, "goals": 9, "xG": 8.5}}}
	}`
)

func runSource() *fakeSource {
	return &fakeSource{data: map[string]string{
		"league_fixtures/EPL/2020":     upcomingJSON,
		"league_results/EPL/2020":      playedJSON,
		"league_players/EPL/2020":      leaguePlayersJSON,
		"match_players/14620":          rostersJSON,
		"match_shots/14620":            shotsJSON,
		"player_grouped/318":           groupedJSON,
		"player_matches/318":           `[{"id": "14620", "goals": "1", "date": "2020-09-12"}]`,
		"player_stats/318":             playerStatsJSON,
		"stats":                        statsJSON,
		"team_fixtures/Arsenal/2020/h": upcomingJSON,
		"team_fixtures/Arsenal/2020/a": upcomingAwayJSON,
		"team_players/Arsenal/2020":    `[]`,
		"team_results/Arsenal/2020":    playedJSON,
		"team_stats/Arsenal/2020":      teamStatsJSON,
	}}
}

func testNames() fakeNames {
	return fakeNames{
		teams:   map[string]string{"83": "Arsenal", "87": "Fulham"},
		players: map[string]string{"318": "Pierre-Emerick Aubameyang"},
	}
}

func testInputs() config.Inputs {
	return config.Inputs{
		Season:     2020,
		LeagueName: "EPL",
		TeamName:   "Arsenal",
		MatchID:    "14620",
		PlayerID:   "318",
	}
}

// ------------------------------------------------------------------------
// Run
// ------------------------------------------------------------------------

func TestRunWritesEveryDataset(t *testing.T) {
	svc := NewService(runSource(), testNames(), quietLogger())
	out := &memorySink{}

	result := svc.Run(context.Background(), testInputs(), out, 4)

	// player_shots has no data in the fake source.
	require.Len(t, result.Stages, 14)
	require.Equal(t, 1, result.Failed())
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "Problem with stat: player_shots --> ErrorMsg:")
	require.Equal(t, 1, result.TablesEmpty)

	require.Equal(t, []string{
		"All league stats - TimeSeries",
		"League players - 2020-21 - EPL",
		"League results - 2020-21 - EPL",
		"Match players - MatchID14620",
		"Match shots - MatchID14620",
		"Player grouped stats - 318Pierre-EmerickAubameyang - position",
		"Player grouped stats - 318Pierre-EmerickAubameyang - season",
		"Player grouped stats - 318Pierre-EmerickAubameyang - shotTypes",
		"Player grouped stats - 318Pierre-EmerickAubameyang - shotZones",
		"Player grouped stats - 318Pierre-EmerickAubameyang - situation",
		"Player matches - 318Pierre-EmerickAubameyang",
		"Player stats - 318Pierre-EmerickAubameyang",
		"Team results - 2020-21 - Arsenal",
		"Team stats - 2020-21 - Arsenal - formation",
		"Team stats - 2020-21 - Arsenal - situation",
		"Upcoming league fixtures - 2020-21 - EPL",
		"Upcoming team fixtures - 2020-21 - Arsenal",
	}, out.names())
	require.Equal(t, len(out.tables), result.TablesWritten)
	require.Contains(t, result.Summary(), "failed=1")
}

func TestRunStageContents(t *testing.T) {
	svc := NewService(runSource(), testNames(), quietLogger())
	out := &memorySink{}
	svc.Run(context.Background(), testInputs(), out, 1)

	results := out.tables["League results - 2020-21 - EPL"]
	require.Equal(t, []string{"Fulham", "Arsenal"}, column(t, results, "HomeTeam"))

	players := out.tables["Match players - MatchID14620"]
	require.Equal(t, []string{"Fulham", "Arsenal", "Arsenal"}, column(t, players, "team_name"))
	require.Equal(t, []string{"14620", "14620", "14620"}, column(t, players, "match_id"))

	shots := out.tables["Match shots - MatchID14620"]
	require.Equal(t, []string{"2", "1"}, column(t, shots, "id"))

	matches := out.tables["Player matches - 318Pierre-EmerickAubameyang"]
	require.Equal(t, []string{"Pierre-Emerick Aubameyang"}, column(t, matches, "PlayerName"))

	grouped := out.tables["Player grouped stats - 318Pierre-EmerickAubameyang - season"]
	require.Equal(t, []string{"2019", "2020"}, column(t, grouped, "season"))
	require.Equal(t, []string{"Pierre-Emerick Aubameyang", "Pierre-Emerick Aubameyang"}, column(t, grouped, "PlayerName"))

	fixtures := out.tables["Upcoming team fixtures - 2020-21 - Arsenal"]
	require.Equal(t, []string{"a", "h"}, column(t, fixtures, "h_a"))
	require.Equal(t, []string{"Arsenal", "Arsenal"}, column(t, fixtures, "TeamOfInterest"))
}

func TestRunUnknownPlayerFallsBackToID(t *testing.T) {
	svc := NewService(runSource(), fakeNames{teams: testNames().teams}, quietLogger())
	out := &memorySink{}

	result := svc.Run(context.Background(), testInputs(), out, 2)

	// grouped stats, matches and stats need the player's name; shots has no data.
	require.Equal(t, 4, result.Failed())
	_, ok := out.tables["Player grouped stats - 318 - season"]
	require.False(t, ok)
	for _, err := range result.Errors {
		require.Contains(t, err, "player_")
	}
}

func TestRunWriteFailureIsRecorded(t *testing.T) {
	svc := NewService(runSource(), testNames(), quietLogger())
	out := &memorySink{fail: "Team stats - 2020-21 - Arsenal - situation"}

	result := svc.Run(context.Background(), testInputs(), out, 3)

	require.Equal(t, 2, result.Failed())
	var teamStats StageResult
	for _, sr := range result.Stages {
		if sr.Key == "team_stats" {
			teamStats = sr
		}
	}
	require.ErrorContains(t, teamStats.Err, "disk full")
	_, ok := out.tables["League results - 2020-21 - EPL"]
	require.True(t, ok)
}

func TestForEachVisitsEveryIndexOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 50} {
		var mu sync.Mutex
		seen := map[int]int{}
		forEach(20, workers, func(i int) {
			mu.Lock()
			seen[i]++
			mu.Unlock()
		})
		require.Len(t, seen, 20, "workers=%d", workers)
		for i, n := range seen {
			require.Equal(t, 1, n, "index %d", i)
		}
	}
	forEach(0, 4, func(int) { t.Fatal("called with n=0") })
}

// ------------------------------------------------------------------------
// Naming
// ------------------------------------------------------------------------

func TestSeasonLabel(t *testing.T) {
	require.Equal(t, "2020-21", SeasonLabel(2020))
	require.Equal(t, "2014-15", SeasonLabel(2014))
	require.Equal(t, "2099-00", SeasonLabel(2099))
}

func TestOutputFolder(t *testing.T) {
	now := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)
	require.Equal(t, "out/results_2021_03_04_05_06_07", OutputFolder("out", now, true))
	require.Equal(t, "out/results", OutputFolder("out", now, false))
}

// ------------------------------------------------------------------------
// IDs and export
// ------------------------------------------------------------------------

func TestRegenerateIDs(t *testing.T) {
	src := &fakeSource{data: map[string]string{
		"teams/EPL/2019":          `{"83": {"id": "83", "title": "Arsenal FC"}}`,
		"league_players/EPL/2019": `[{"id": "318", "player_name": "P. Aubameyang", "goals": "22", "assists": "3"}]`,
		"teams/EPL/2020":          teamsJSON,
		"league_players/EPL/2020": leaguePlayersJSON,
		"teams/Serie A/2020":      `{}`,
		// Serie A 2019 is missing and must not stop the others.
		"league_players/Serie A/2020": `[]`,
	}}
	svc := NewService(src, testNames(), quietLogger())
	store := &memoryStore{}

	result, err := svc.RegenerateIDs(context.Background(), store, []string{"EPL", "Serie A"}, 2019, 2020, 2)
	require.NoError(t, err)
	require.Equal(t, 3, result.Fetched)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "Serie A 2019")

	require.Equal(t, 1, store.saved)
	require.Equal(t, map[string]string{"83": "Arsenal FC", "87": "Fulham"}, store.teams)
	require.Equal(t, map[string]string{"318": "P. Aubameyang", "1250": "Mohamed Salah"}, store.players)
	require.Equal(t, 2, result.Teams)
	require.Equal(t, 2, result.Players)
}

func TestRegenerateIDsNothingFetched(t *testing.T) {
	svc := NewService(&fakeSource{}, testNames(), quietLogger())
	store := &memoryStore{}

	result, err := svc.RegenerateIDs(context.Background(), store, []string{"EPL"}, 2020, 2020, 1)
	require.Error(t, err)
	require.Len(t, result.Errors, 1)
	require.Zero(t, store.saved)
}

func TestRegenerateIDsSaveError(t *testing.T) {
	src := &fakeSource{data: map[string]string{
		"teams/EPL/2020":          teamsJSON,
		"league_players/EPL/2020": leaguePlayersJSON,
	}}
	svc := NewService(src, testNames(), quietLogger())
	store := &memoryStore{saveErr: idcache.ErrUnknownID}

	_, err := svc.RegenerateIDs(context.Background(), store, []string{"EPL"}, 2020, 2020, 1)
	require.ErrorIs(t, err, idcache.ErrUnknownID)
}

func TestExportLeagueResults(t *testing.T) {
	src := &fakeSource{data: map[string]string{
		"league_results/EPL/2020":     playedJSON,
		"league_results/La Liga/2020": `[]`,
	}}
	svc := NewService(src, testNames(), quietLogger())
	out := &memorySink{}

	result := svc.ExportLeagueResults(context.Background(), []string{"EPL", "la_liga", "Serie A", "MLS"}, 2020, out)

	require.Equal(t, 2, result.Leagues)
	require.Equal(t, 2, result.Rows)
	require.Len(t, result.Errors, 2)
	require.Equal(t, []string{"EPL - 2020-21", "La Liga - 2020-21"}, out.names())

	epl := out.tables["EPL - 2020-21"]
	require.Equal(t, ExportColumns, epl.Columns())
	require.Equal(t, []string{"09/12/2020", "09/28/2020"}, column(t, epl, "Date"))
	require.Equal(t, []string{"0", "1"}, column(t, epl, "HomeGoals"))
	require.Equal(t, []string{"England", "England"}, column(t, epl, "Country"))
	require.Equal(t, []string{"2020-21", "2020-21"}, column(t, epl, "Season"))

	require.True(t, out.tables["La Liga - 2020-21"].IsEmpty())
}

func TestExportLeagueResultsBadDate(t *testing.T) {
	src := &fakeSource{data: map[string]string{
		"league_results/EPL/2020": `[{"h": {"title": "A"}, "a": {"title": "B"},
			"goals": {"h": "1", "a": "0"}, "xG": {"h": "1", "a": "0"},
			"forecast": {"w": "1", "d": "0", "l": "0"}, "datetime": "12 May"}]`,
	}}
	svc := NewService(src, testNames(), quietLogger())
	out := &memorySink{}

	result := svc.ExportLeagueResults(context.Background(), []string{"EPL"}, 2020, out)
	require.Zero(t, result.Leagues)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], `date "12 May"`)
}
