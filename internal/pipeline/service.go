// Package pipeline fetches understat datasets, reshapes them with the
// normalize package and hands the resulting tables to a sink.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albapepper/understat-wrangler/internal/normalize"
)

// Source returns the raw JSON of each understat dataset.
// *understat.Client satisfies it.
type Source interface {
	LeagueFixtures(ctx context.Context, league string, season int) ([]byte, error)
	LeagueResults(ctx context.Context, league string, season int) ([]byte, error)
	LeaguePlayers(ctx context.Context, league string, season int) ([]byte, error)
	Teams(ctx context.Context, league string, season int) ([]byte, error)
	Stats(ctx context.Context) ([]byte, error)
	PlayerMatches(ctx context.Context, playerID string) ([]byte, error)
	PlayerShots(ctx context.Context, playerID string) ([]byte, error)
	PlayerStats(ctx context.Context, playerID string) ([]byte, error)
	PlayerGroupedStats(ctx context.Context, playerID string) ([]byte, error)
	TeamFixtures(ctx context.Context, team string, season int, side string) ([]byte, error)
	TeamResults(ctx context.Context, team string, season int) ([]byte, error)
	TeamPlayers(ctx context.Context, team string, season int) ([]byte, error)
	TeamStats(ctx context.Context, team string, season int) ([]byte, error)
	MatchPlayers(ctx context.Context, matchID string) ([]byte, error)
	MatchShots(ctx context.Context, matchID string) ([]byte, error)
}

// Names resolves cached team and player names. *idcache.Store satisfies it.
type Names interface {
	TeamName(id string) (string, error)
	PlayerName(id string) (string, error)
}

// Service runs the per-dataset fetch-and-reshape stages.
type Service struct {
	src    Source
	names  Names
	logger *slog.Logger
}

// NewService creates a pipeline service.
func NewService(src Source, names Names, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, names: names, logger: logger}
}

// fetch decodes the bytes returned by a source call.
func fetch(dataset string, data []byte, err error) (normalize.Value, error) {
	if err != nil {
		return normalize.Value{}, fmt.Errorf("fetch %s: %w", dataset, err)
	}
	v, err := normalize.DecodeBytes(data)
	if err != nil {
		return normalize.Value{}, fmt.Errorf("decode %s: %w", dataset, err)
	}
	return v, nil
}

// fetchTable decodes a record list, applies opts and builds a table.
func fetchTable(dataset string, data []byte, err error, opts normalize.Options) (*normalize.Table, error) {
	v, err := fetch(dataset, data, err)
	if err != nil {
		return nil, err
	}
	t, err := normalize.ListToTable(normalize.Filter(v, opts))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dataset, err)
	}
	return t, nil
}

// filterSides applies opts to the h and a lists of a side-keyed object.
func filterSides(v normalize.Value, opts normalize.Options) normalize.Value {
	if len(opts) == 0 || !v.IsObject() {
		return v
	}
	out := v
	for _, side := range []string{"h", "a"} {
		if list, ok := v.Get(side); ok {
			out = out.With(side, normalize.Filter(normalize.ObjectValues(list), opts))
		}
	}
	return out
}

func (s *Service) playerName(playerID string) (string, error) {
	name, err := s.names.PlayerName(playerID)
	if err != nil {
		return "", fmt.Errorf("player name: %w", err)
	}
	return name, nil
}

// ------------------------------------------------------------------------
// League stages
// ------------------------------------------------------------------------

// LeagueFixtures returns the league's upcoming fixtures.
func (s *Service) LeagueFixtures(ctx context.Context, league string, season int, opts normalize.Options) (*normalize.Table, error) {
	data, err := s.src.LeagueFixtures(ctx, league, season)
	t, err := fetchTable("league fixtures", data, err, opts)
	if err != nil {
		return nil, err
	}
	return normalize.UpcomingFixtures(t)
}

// LeaguePlayers returns the league's players ranked by goals and assists.
func (s *Service) LeaguePlayers(ctx context.Context, league string, season int, opts normalize.Options) (*normalize.Table, error) {
	data, err := s.src.LeaguePlayers(ctx, league, season)
	t, err := fetchTable("league players", data, err, opts)
	if err != nil {
		return nil, err
	}
	return normalize.LeaguePlayers(t)
}

// LeagueResults returns the league's played matches.
func (s *Service) LeagueResults(ctx context.Context, league string, season int, opts normalize.Options) (*normalize.Table, error) {
	data, err := s.src.LeagueResults(ctx, league, season)
	t, err := fetchTable("league results", data, err, opts)
	if err != nil {
		return nil, err
	}
	return normalize.Results(t)
}

// Teams returns the id and title of the league's teams.
func (s *Service) Teams(ctx context.Context, league string, season int, opts normalize.Options) (*normalize.Table, error) {
	data, err := s.src.Teams(ctx, league, season)
	v, err := fetch("teams", data, err)
	if err != nil {
		return nil, err
	}
	return normalize.Teams(normalize.Filter(normalize.ObjectValues(v), opts))
}

// Stats returns the monthly per-league summary.
func (s *Service) Stats(ctx context.Context, sortByDate bool, opts normalize.Options) (*normalize.Table, error) {
	data, err := s.src.Stats(ctx)
	t, err := fetchTable("stats", data, err, opts)
	if err != nil {
		return nil, err
	}
	return normalize.LeagueStats(t, sortByDate)
}

// ------------------------------------------------------------------------
// Match stages
// ------------------------------------------------------------------------

// MatchPlayers returns both rosters of a match, stamped with match_id and the
// cached team_name of each player's team.
func (s *Service) MatchPlayers(ctx context.Context, matchID string, opts normalize.Options) (*normalize.Table, error) {
	data, err := s.src.MatchPlayers(ctx, matchID)
	v, err := fetch("match players", data, err)
	if err != nil {
		return nil, err
	}
	t, err := normalize.MatchPlayers(filterSides(v, opts))
	if err != nil {
		return nil, err
	}
	t.SetConstant("match_id", normalize.String(matchID))
	if t.IsEmpty() {
		return t, nil
	}
	teamIDs, err := t.Column("team_id")
	if err != nil {
		return nil, err
	}
	names := make([]normalize.Value, len(teamIDs))
	for r, id := range teamIDs {
		name, err := s.names.TeamName(id.Text())
		if err != nil {
			return nil, fmt.Errorf("team name: %w", err)
		}
		names[r] = normalize.String(name)
	}
	return t, t.SetColumn("team_name", names)
}

// MatchShots returns both sides' shots of a match ordered by minute.
func (s *Service) MatchShots(ctx context.Context, matchID string, opts normalize.Options) (*normalize.Table, error) {
	data, err := s.src.MatchShots(ctx, matchID)
	v, err := fetch("match shots", data, err)
	if err != nil {
		return nil, err
	}
	return normalize.MatchShots(filterSides(v, opts))
}

// ------------------------------------------------------------------------
// Player stages
// ------------------------------------------------------------------------

// PlayerGroupedStats returns the player's grouped statistics, one table per
// substat, each stamped with PlayerName.
func (s *Service) PlayerGroupedStats(ctx context.Context, playerID string) (*normalize.Bundle, error) {
	name, err := s.playerName(playerID)
	if err != nil {
		return nil, err
	}
	data, err := s.src.PlayerGroupedStats(ctx, playerID)
	v, err := fetch("player grouped stats", data, err)
	if err != nil {
		return nil, err
	}
	b, err := normalize.PlayerGroupedStats(v)
	if err != nil {
		return nil, err
	}
	b.SetConstant("PlayerName", normalize.String(name))
	return b, nil
}

// PlayerMatches returns the matches the player appeared in.
func (s *Service) PlayerMatches(ctx context.Context, playerID string, opts normalize.Options) (*normalize.Table, error) {
	name, err := s.playerName(playerID)
	if err != nil {
		return nil, err
	}
	data, err := s.src.PlayerMatches(ctx, playerID)
	t, err := fetchTable("player matches", data, err, opts)
	if err != nil {
		return nil, err
	}
	t.SetConstant("PlayerName", normalize.String(name))
	return t, nil
}

// PlayerShots returns every shot the player took.
func (s *Service) PlayerShots(ctx context.Context, playerID string, opts normalize.Options) (*normalize.Table, error) {
	data, err := s.src.PlayerShots(ctx, playerID)
	return fetchTable("player shots", data, err, opts)
}

// PlayerStats returns the player's per-position max/min/avg statistics.
func (s *Service) PlayerStats(ctx context.Context, playerID string, positions []string) (*normalize.Table, error) {
	name, err := s.playerName(playerID)
	if err != nil {
		return nil, err
	}
	data, err := s.src.PlayerStats(ctx, playerID)
	v, err := fetch("player stats", data, err)
	if err != nil {
		return nil, err
	}
	t, err := normalize.PlayerStats(v, positions)
	if err != nil {
		return nil, err
	}
	t.SetConstant("PlayerName", normalize.String(name))
	return t, nil
}

// ------------------------------------------------------------------------
// Team stages
// ------------------------------------------------------------------------

// TeamFixtures returns the team's upcoming home and away fixtures.
func (s *Service) TeamFixtures(ctx context.Context, team string, season int) (*normalize.Table, error) {
	homeData, err := s.src.TeamFixtures(ctx, team, season, "h")
	home, err := fetch("team fixtures (home)", homeData, err)
	if err != nil {
		return nil, err
	}
	awayData, err := s.src.TeamFixtures(ctx, team, season, "a")
	away, err := fetch("team fixtures (away)", awayData, err)
	if err != nil {
		return nil, err
	}
	return normalize.TeamFixtures(home, away, team)
}

// TeamPlayers returns the team's players stamped with the season.
func (s *Service) TeamPlayers(ctx context.Context, team string, season int, opts normalize.Options) (*normalize.Table, error) {
	data, err := s.src.TeamPlayers(ctx, team, season)
	t, err := fetchTable("team players", data, err, opts)
	if err != nil {
		return nil, err
	}
	return normalize.TeamPlayers(t, season), nil
}

// TeamResults returns the team's played matches from its point of view.
func (s *Service) TeamResults(ctx context.Context, team string, season int, opts normalize.Options) (*normalize.Table, error) {
	data, err := s.src.TeamResults(ctx, team, season)
	t, err := fetchTable("team results", data, err, opts)
	if err != nil {
		return nil, err
	}
	return normalize.TeamResults(t, team, season)
}

// TeamStats returns the team's statistics, one table per category.
func (s *Service) TeamStats(ctx context.Context, team string, season int) (*normalize.Bundle, error) {
	data, err := s.src.TeamStats(ctx, team, season)
	v, err := fetch("team stats", data, err)
	if err != nil {
		return nil, err
	}
	return normalize.WrangleTeamStats(v, team, season)
}
