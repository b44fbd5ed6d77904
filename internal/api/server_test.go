package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/albapepper/understat-wrangler/internal/api/handler"
	"github.com/albapepper/understat-wrangler/internal/cache"
	"github.com/albapepper/understat-wrangler/internal/config"
	"github.com/albapepper/understat-wrangler/internal/db"
	"github.com/albapepper/understat-wrangler/internal/idcache"
	"github.com/albapepper/understat-wrangler/internal/pipeline"
	"github.com/albapepper/understat-wrangler/internal/understat"
)

// ------------------------------------------------------------------------
// Fake understat site
// ------------------------------------------------------------------------

func hexEscape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		fmt.Fprintf(&sb, `\x%02X`, s[i])
	}
	return sb.String()
}

func pageHTML(vars map[string]string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for name, data := range vars {
		fmt.Fprintf(&sb, "<script>var %s = JSON.parse('%s');</script>", name, hexEscape(data))
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

const datesJSON = `[
	{"id": "14620", "isResult": true, "side": "a", "result": "w",
	 "h": {"id": "87", "title": "Fulham"}, "a": {"id": "83", "title": "Arsenal"},
	 "goals": {"h": "0", "a": "3"}, "xG": {"h": "0.1", "a": "1.9"},
	 "datetime": "2020-09-12 11:30:00",
	 "forecast": {"w": "0.0091", "d": "0.0736", "l": "0.9173"}},
	{"id": "14200", "isResult": false, "side": "h",
	 "h": {"id": "83", "title": "Arsenal"}, "a": {"id": "81", "title": "Chelsea"},
	 "goals": {"h": null, "a": null}, "xG": {"h": null, "a": null},
	 "datetime": "2021-05-12 18:00:00", "forecast": null}
]`

const statisticsJSON = `{
	"situation": {"OpenPlay": {"shots": 300, "goals": 40, "xG": 38.2, "against": {"shots": 200, "goals": 25, "xG": 22.1}}},
	"formation": {"4-3-3": {"stat": "4-3-3", "time": 900, "against": {"shots": 80, "goals": 9, "xG": 8.5}}}
}`

type site struct {
	srv   *httptest.Server
	pages atomic.Int64
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{}
	mux := http.NewServeMux()
	mux.HandleFunc("/league/EPL/2020", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML(map[string]string{"datesData": datesJSON}))
	})
	mux.HandleFunc("/team/Arsenal/2020", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML(map[string]string{"datesData": datesJSON, "statisticsData": statisticsJSON}))
	})
	mux.HandleFunc("/player/318", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML(map[string]string{"shotsData": `[{"id": "1", "minute": "8"}]`}))
	})
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.pages.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

type names struct{}

func (names) TeamName(id string) (string, error) {
	return "", fmt.Errorf("team %s: %w", id, idcache.ErrUnknownID)
}

func (names) PlayerName(id string) (string, error) {
	if id == "318" {
		return "Pierre-Emerick Aubameyang", nil
	}
	return "", fmt.Errorf("player %s: %w", id, idcache.ErrUnknownID)
}

// ------------------------------------------------------------------------
// Fake run store
// ------------------------------------------------------------------------

type runStore struct {
	healthErr error
	rows      map[string][][]byte
}

func (s *runStore) HealthCheck(context.Context) error { return s.healthErr }

func (s *runStore) LatestRun(context.Context) (string, error) {
	if len(s.rows) == 0 {
		return "", db.ErrNoRows
	}
	return "run-2", nil
}

func (s *runStore) Datasets(_ context.Context, runID string) ([]string, error) {
	if runID != "run-2" {
		return nil, nil
	}
	var out []string
	for name := range s.rows {
		out = append(out, name)
	}
	return out, nil
}

func (s *runStore) DatasetRows(_ context.Context, runID, dataset string) ([][]byte, error) {
	rows, ok := s.rows[dataset]
	if runID != "run-2" || !ok {
		return nil, db.ErrNoRows
	}
	return rows, nil
}

// ------------------------------------------------------------------------
// Helpers
// ------------------------------------------------------------------------

func testConfig() *config.Config {
	return &config.Config{
		CORSAllowOrigins:  []string{"*"},
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		CacheEnabled:      true,
		CacheTTL:          time.Minute,
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, runs *runStore) (http.Handler, *site) {
	t.Helper()
	s := newSite(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := understat.NewClient(s.srv.URL, 0, 5*time.Second, logger)
	svc := pipeline.NewService(client, names{}, logger)
	appCache := cache.New(cfg.CacheEnabled)
	t.Cleanup(appCache.Close)

	var store handler.RunStore
	if runs != nil {
		store = runs
	}
	return NewRouter(svc, store, appCache, cfg, logger), s
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code
}

// ------------------------------------------------------------------------
// Tests
// ------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), nil)

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"healthy"`)
	require.NotEmpty(t, rec.Header().Get("X-Process-Time"))

	rec = get(t, h, "/health/db")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "not_configured")

	rec = get(t, h, "/health/cache")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "active_keys")
}

func TestHealthDBUnhealthy(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), &runStore{healthErr: db.ErrNoRows})
	rec := get(t, h, "/health/db")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLeagueResultsCachedWithETag(t *testing.T) {
	h, s := newTestRouter(t, testConfig(), nil)

	rec := get(t, h, "/api/v1/league/epl/2020/results")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "Fulham", rows[0]["HomeTeam"])
	require.EqualValues(t, 3, rows[0]["AwayGoals"])
	require.True(t, strings.HasPrefix(rec.Body.String(), `[{"datetime":"2020-09-12 11:30:00","HomeTeam":"Fulham"`))

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = get(t, h, "/api/v1/league/epl/2020/results")
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	rec = get(t, h, "/api/v1/league/epl/2020/results", "If-None-Match", etag)
	require.Equal(t, http.StatusNotModified, rec.Code)

	require.EqualValues(t, 1, s.pages.Load())
}

func TestLeagueFixturesCSV(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), nil)

	rec := get(t, h, "/api/v1/league/EPL/2020/fixtures?format=csv")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "datetime,HomeTeam,AwayTeam\n2021-05-12 18:00:00,Arsenal,Chelsea\n", rec.Body.String())
}

func TestTeamStatsBundle(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), nil)

	rec := get(t, h, "/api/v1/team/Arsenal/2020/stats")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bundle map[string][]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	require.Len(t, bundle, 2)
	require.Equal(t, "OpenPlay", bundle["situation"][0]["situation"])
	require.True(t, strings.HasPrefix(rec.Body.String(), `{"situation":`))

	rec = get(t, h, "/api/v1/team/Arsenal/2020/stats?format=csv")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_TABLE", errorCode(t, rec))

	rec = get(t, h, "/api/v1/team/Arsenal/2020/stats?format=csv&table=formation")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, strings.HasPrefix(rec.Body.String(), "formation,"))

	rec = get(t, h, "/api/v1/team/Arsenal/2020/stats?table=nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTeamResultsFilter(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), nil)

	rec := get(t, h, "/api/v1/team/Arsenal/2020/results?side=h")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "[]", rec.Body.String())

	rec = get(t, h, "/api/v1/team/Arsenal/2020/results?side=a")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"result":"Win"`)
}

func TestDatasetErrors(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), nil)

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/api/v1/league/MLS/2020/results", http.StatusBadRequest, "INVALID_LEAGUE"},
		{"/api/v1/league/EPL/2010/results", http.StatusBadRequest, "INVALID_SEASON"},
		{"/api/v1/league/EPL/twenty/results", http.StatusBadRequest, "INVALID_SEASON"},
		{"/api/v1/league/EPL/2020/goals", http.StatusNotFound, "UNKNOWN_DATASET"},
		{"/api/v1/league/EPL/2020/results?format=xml", http.StatusBadRequest, "INVALID_FORMAT"},
		{"/api/v1/player/abc/shots", http.StatusBadRequest, "INVALID_ID"},
		{"/api/v1/player/318/matches", http.StatusNotFound, "NOT_FOUND"},
		{"/api/v1/player/999/matches", http.StatusNotFound, "UNKNOWN_ID"},
		{"/api/v1/match/1/shots", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		rec := get(t, h, tc.path)
		require.Equal(t, tc.status, rec.Code, tc.path)
		require.Equal(t, tc.code, errorCode(t, rec), tc.path)
	}
}

func TestPlayerShots(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), nil)
	rec := get(t, h, "/api/v1/player/318/shots")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, `[{"id":"1","minute":"8"}]`, rec.Body.String())
}

func TestDatasetsListing(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), nil)
	rec := get(t, h, "/api/v1/datasets")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"grouped_stats"`)
	require.Contains(t, rec.Body.String(), `"La Liga"`)
}

func TestRunsWithoutDatabase(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), nil)
	rec := get(t, h, "/api/v1/runs/latest")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "NO_DATABASE", errorCode(t, rec))
}

func TestStoredRuns(t *testing.T) {
	runs := &runStore{rows: map[string][][]byte{
		"League results - 2020-21 - EPL": {
			[]byte(`{"z":1,"HomeTeam":"Fulham"}`),
			[]byte(`{"z":2,"HomeTeam":"Arsenal"}`),
		},
	}}
	h, _ := newTestRouter(t, testConfig(), runs)

	rec := get(t, h, "/api/v1/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"run-2"`)

	rec = get(t, h, "/api/v1/runs/latest/League%20results%20-%202020-21%20-%20EPL")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, `[{"z":1,"HomeTeam":"Fulham"},{"z":2,"HomeTeam":"Arsenal"}]`, rec.Body.String())

	rec = get(t, h, "/api/v1/runs/run-2/League%20results%20-%202020-21%20-%20EPL?format=csv")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "z,HomeTeam\n1,Fulham\n2,Arsenal\n", rec.Body.String())

	rec = get(t, h, "/api/v1/runs/run-1")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, h, "/api/v1/runs/run-2/nothing")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNoRunsStored(t *testing.T) {
	h, _ := newTestRouter(t, testConfig(), &runStore{})
	rec := get(t, h, "/api/v1/runs/latest")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitEnabled = true
	cfg.RateLimitRequests = 2
	h, _ := newTestRouter(t, cfg, nil)

	require.Equal(t, http.StatusOK, get(t, h, "/health").Code)
	rec := get(t, h, "/health")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
}
