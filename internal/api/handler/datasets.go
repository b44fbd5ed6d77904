package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/understat-wrangler/internal/api/respond"
	"github.com/albapepper/understat-wrangler/internal/cache"
	"github.com/albapepper/understat-wrangler/internal/normalize"
	"github.com/albapepper/understat-wrangler/internal/understat"
)

// Datasets lists the dataset names each scope serves.
var Datasets = map[string][]string{
	"league": {"fixtures", "players", "results", "teams"},
	"team":   {"fixtures", "players", "results", "stats"},
	"player": {"grouped_stats", "matches", "shots", "stats"},
	"match":  {"players", "shots"},
}

// Query parameters with a meaning of their own. Every other parameter is an
// equality filter on the raw records.
var reservedParams = map[string]bool{
	"format":       true,
	"table":        true,
	"sort_by_date": true,
	"positions":    true,
}

// minSeason is the first season understat covers.
const minSeason = 2014

type loader func(ctx context.Context) (*normalize.Bundle, error)

func table(fn func(ctx context.Context) (*normalize.Table, error)) loader {
	return func(ctx context.Context) (*normalize.Bundle, error) {
		t, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return normalize.Single(t), nil
	}
}

// GetDatasets lists the datasets of every scope.
// @Summary List datasets
// @Description Returns the dataset names served under each scope.
// @Tags datasets
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /datasets [get]
func (h *Handler) GetDatasets(w http.ResponseWriter, r *http.Request) {
	leagues := make([]string, 0, len(understat.Leagues))
	for _, l := range understat.Leagues {
		leagues = append(leagues, l.Name)
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"datasets": Datasets,
		"leagues":  leagues,
	})
}

// GetLeagueDataset serves one league dataset for a season.
// @Summary Get league dataset
// @Description Scrapes and wrangles a league dataset. Extra query parameters filter the raw records by equality.
// @Tags datasets
// @Produce json,text/csv
// @Param league path string true "League name or slug" Enums(EPL, La_liga, Bundesliga, Serie_A, Ligue_1, RFPL)
// @Param season path int true "Season start year"
// @Param dataset path string true "Dataset" Enums(fixtures, players, results, teams)
// @Param format query string false "Response format" Enums(json, csv)
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /league/{league}/{season}/{dataset} [get]
func (h *Handler) GetLeagueDataset(w http.ResponseWriter, r *http.Request) {
	league, err := understat.LookupLeague(chi.URLParam(r, "league"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_LEAGUE", err.Error())
		return
	}
	season, ok := h.parseSeason(w, r)
	if !ok {
		return
	}
	opts := filterOptions(r)

	var load loader
	switch chi.URLParam(r, "dataset") {
	case "fixtures":
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.LeagueFixtures(ctx, league.Name, season, opts)
		})
	case "players":
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.LeaguePlayers(ctx, league.Name, season, opts)
		})
	case "results":
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.LeagueResults(ctx, league.Name, season, opts)
		})
	case "teams":
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.Teams(ctx, league.Name, season, opts)
		})
	default:
		writeUnknownDataset(w, "league")
		return
	}
	h.serveDataset(w, r, h.seasonTTL(season), load)
}

// GetTeamDataset serves one team dataset for a season.
// @Summary Get team dataset
// @Description Scrapes and wrangles a team dataset. stats returns one table per category; pick one with table for CSV.
// @Tags datasets
// @Produce json,text/csv
// @Param team path string true "Team name as understat spells it"
// @Param season path int true "Season start year"
// @Param dataset path string true "Dataset" Enums(fixtures, players, results, stats)
// @Param format query string false "Response format" Enums(json, csv)
// @Param table query string false "Table label of a multi-table dataset"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /team/{team}/{season}/{dataset} [get]
func (h *Handler) GetTeamDataset(w http.ResponseWriter, r *http.Request) {
	team := strings.ReplaceAll(chi.URLParam(r, "team"), "_", " ")
	if strings.TrimSpace(team) == "" {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_TEAM", "team is required")
		return
	}
	season, ok := h.parseSeason(w, r)
	if !ok {
		return
	}
	opts := filterOptions(r)

	var load loader
	switch chi.URLParam(r, "dataset") {
	case "fixtures":
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.TeamFixtures(ctx, team, season)
		})
	case "players":
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.TeamPlayers(ctx, team, season, opts)
		})
	case "results":
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.TeamResults(ctx, team, season, opts)
		})
	case "stats":
		load = func(ctx context.Context) (*normalize.Bundle, error) {
			return h.svc.TeamStats(ctx, team, season)
		}
	default:
		writeUnknownDataset(w, "team")
		return
	}
	h.serveDataset(w, r, h.seasonTTL(season), load)
}

// GetPlayerDataset serves one player dataset.
// @Summary Get player dataset
// @Description Scrapes and wrangles a player dataset. grouped_stats returns one table per group.
// @Tags datasets
// @Produce json,text/csv
// @Param playerID path int true "understat player id"
// @Param dataset path string true "Dataset" Enums(grouped_stats, matches, shots, stats)
// @Param positions query string false "Comma-separated positions kept by stats"
// @Param format query string false "Response format" Enums(json, csv)
// @Param table query string false "Table label of a multi-table dataset"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /player/{playerID}/{dataset} [get]
func (h *Handler) GetPlayerDataset(w http.ResponseWriter, r *http.Request) {
	playerID, ok := parseID(w, chi.URLParam(r, "playerID"))
	if !ok {
		return
	}
	opts := filterOptions(r)

	var load loader
	switch chi.URLParam(r, "dataset") {
	case "grouped_stats":
		load = func(ctx context.Context) (*normalize.Bundle, error) {
			return h.svc.PlayerGroupedStats(ctx, playerID)
		}
	case "matches":
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.PlayerMatches(ctx, playerID, opts)
		})
	case "shots":
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.PlayerShots(ctx, playerID, opts)
		})
	case "stats":
		positions := splitList(r.URL.Query().Get("positions"))
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.PlayerStats(ctx, playerID, positions)
		})
	default:
		writeUnknownDataset(w, "player")
		return
	}
	h.serveDataset(w, r, cache.TTLMatch, load)
}

// GetMatchDataset serves one match dataset.
// @Summary Get match dataset
// @Description Scrapes and wrangles the rosters or shots of a match.
// @Tags datasets
// @Produce json,text/csv
// @Param matchID path int true "understat match id"
// @Param dataset path string true "Dataset" Enums(players, shots)
// @Param format query string false "Response format" Enums(json, csv)
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /match/{matchID}/{dataset} [get]
func (h *Handler) GetMatchDataset(w http.ResponseWriter, r *http.Request) {
	matchID, ok := parseID(w, chi.URLParam(r, "matchID"))
	if !ok {
		return
	}
	opts := filterOptions(r)

	var load loader
	switch chi.URLParam(r, "dataset") {
	case "players":
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.MatchPlayers(ctx, matchID, opts)
		})
	case "shots":
		load = table(func(ctx context.Context) (*normalize.Table, error) {
			return h.svc.MatchShots(ctx, matchID, opts)
		})
	default:
		writeUnknownDataset(w, "match")
		return
	}
	h.serveDataset(w, r, cache.TTLMatch, load)
}

// GetStats serves the monthly per-league summary.
// @Summary Get league stats time series
// @Description Monthly per-league summary from the understat home page.
// @Tags datasets
// @Produce json,text/csv
// @Param sort_by_date query bool false "Order rows by date instead of league"
// @Param format query string false "Response format" Enums(json, csv)
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /stats [get]
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	sortByDate := false
	if v := r.URL.Query().Get("sort_by_date"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_PARAM", "sort_by_date must be a boolean")
			return
		}
		sortByDate = b
	}
	opts := filterOptions(r)
	h.serveDataset(w, r, h.liveTTL(), table(func(ctx context.Context) (*normalize.Table, error) {
		return h.svc.Stats(ctx, sortByDate, opts)
	}))
}

// --------------------------------------------------------------------------
// Serving
// --------------------------------------------------------------------------

// serveDataset answers from the cache when it can, otherwise loads, encodes
// and caches the dataset.
func (h *Handler) serveDataset(w http.ResponseWriter, r *http.Request, ttl time.Duration, load loader) {
	format, ok := parseFormat(w, r)
	if !ok {
		return
	}
	cacheKey := r.URL.Path + "?" + r.URL.Query().Encode()

	if e, ok := h.cache.Get(cacheKey); ok {
		respond.ServeBody(w, r, e.ContentType, e.Data, e.ETag, ttl, true)
		return
	}

	bundle, err := load(r.Context())
	if err != nil {
		h.writeUpstreamError(w, r, err)
		return
	}

	data, contentType, err := respond.EncodeBundle(bundle, format, r.URL.Query().Get("table"))
	var choiceErr *respond.ChoiceError
	if errors.As(err, &choiceErr) {
		respond.WriteError(w, choiceErr.Status, "INVALID_TABLE", choiceErr.Message)
		return
	}
	if err != nil {
		h.logger.Error("encode dataset failed", "path", r.URL.Path, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Dataset could not be encoded")
		return
	}

	etag := h.cache.Set(cacheKey, contentType, data, ttl)
	respond.ServeBody(w, r, contentType, data, etag, ttl, false)
}

// --------------------------------------------------------------------------
// Parameter parsing
// --------------------------------------------------------------------------

func (h *Handler) parseSeason(w http.ResponseWriter, r *http.Request) (int, bool) {
	season, err := strconv.Atoi(chi.URLParam(r, "season"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_SEASON", "season must be an integer")
		return 0, false
	}
	maxSeason := currentSeason(h.now()) + 1
	if season < minSeason || season > maxSeason {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_SEASON",
			fmt.Sprintf("Season must be between %d and %d", minSeason, maxSeason))
		return 0, false
	}
	return season, true
}

func parseID(w http.ResponseWriter, raw string) (string, bool) {
	if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "ID must be an integer")
		return "", false
	}
	return raw, true
}

func parseFormat(w http.ResponseWriter, r *http.Request) (string, bool) {
	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", respond.FormatJSON:
		return respond.FormatJSON, true
	case respond.FormatCSV:
		return respond.FormatCSV, true
	default:
		respond.WriteError(w, http.StatusBadRequest, "INVALID_FORMAT", "format must be json or csv")
		return "", false
	}
}

// filterOptions turns the non-reserved query parameters into record filters.
func filterOptions(r *http.Request) normalize.Options {
	var opts normalize.Options
	for k, v := range r.URL.Query() {
		if reservedParams[k] || len(v) == 0 {
			continue
		}
		if opts == nil {
			opts = normalize.Options{}
		}
		opts[k] = v[0]
	}
	return opts
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeUnknownDataset(w http.ResponseWriter, scope string) {
	respond.WriteError(w, http.StatusNotFound, "UNKNOWN_DATASET",
		fmt.Sprintf("%s datasets are %s", scope, strings.Join(Datasets[scope], ", ")))
}
