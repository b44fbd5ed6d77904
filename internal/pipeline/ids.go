package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/albapepper/understat-wrangler/internal/idcache"
	"github.com/albapepper/understat-wrangler/internal/normalize"
)

// IDStore receives regenerated id caches. *idcache.Store satisfies it.
type IDStore interface {
	SetTeams(map[string]string)
	SetPlayers(map[string]string)
	Save(ctx context.Context) error
}

// IDsResult tracks counts and errors from an id regeneration.
type IDsResult struct {
	Teams    int
	Players  int
	Fetched  int
	Errors   []string
	Duration time.Duration
}

// AddErrorf records a formatted error message.
func (r *IDsResult) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the regeneration.
func (r *IDsResult) Summary() string {
	return fmt.Sprintf("teams=%d players=%d league_seasons=%d errors=%d duration=%s",
		r.Teams, r.Players, r.Fetched, len(r.Errors), r.Duration.Round(time.Millisecond))
}

type leagueSeason struct {
	league string
	season int
}

type idPage struct {
	teams   *normalize.Table
	players *normalize.Table
	err     error
}

// RegenerateIDs rebuilds the team and player id → name caches from every
// league and season in [fromSeason, toSeason]. The first name seen for an id
// wins, walking leagues and seasons in order. A league-season that fails is
// recorded and skipped. The store is saved only when at least one
// league-season was fetched.
func (s *Service) RegenerateIDs(ctx context.Context, store IDStore, leagues []string, fromSeason, toSeason, workers int) (*IDsResult, error) {
	start := time.Now()
	result := &IDsResult{}

	var pairs []leagueSeason
	for _, league := range leagues {
		for season := fromSeason; season <= toSeason; season++ {
			pairs = append(pairs, leagueSeason{league, season})
		}
	}

	pages := make([]idPage, len(pairs))
	forEach(len(pairs), workers, func(i int) {
		p := pairs[i]
		var page idPage
		page.teams, page.err = s.Teams(ctx, p.league, p.season, nil)
		if page.err == nil {
			page.players, page.err = s.leaguePlayerIDs(ctx, p.league, p.season)
		}
		pages[i] = page
	})

	teams, players := idcache.NewBuilder(), idcache.NewBuilder()
	for i, page := range pages {
		p := pairs[i]
		if page.err != nil {
			result.AddErrorf("%s %d: %v", p.league, p.season, page.err)
			s.logger.Warn("id fetch failed", "league", p.league, "season", p.season, "error", page.err)
			continue
		}
		result.Fetched++
		collectIDs(teams, page.teams, "title")
		collectIDs(players, page.players, "player_name")
	}

	result.Teams, result.Players = teams.Len(), players.Len()
	result.Duration = time.Since(start)
	if result.Fetched == 0 {
		return result, fmt.Errorf("regenerate ids: no league season could be fetched")
	}

	store.SetTeams(teams.Map())
	store.SetPlayers(players.Map())
	if err := store.Save(ctx); err != nil {
		return result, fmt.Errorf("save id cache: %w", err)
	}

	s.logger.Info("IDs regenerated", "summary", result.Summary())
	return result, nil
}

// leaguePlayerIDs returns the id and player_name columns of a league's
// players, in source order.
func (s *Service) leaguePlayerIDs(ctx context.Context, league string, season int) (*normalize.Table, error) {
	data, err := s.src.LeaguePlayers(ctx, league, season)
	t, err := fetchTable("league players", data, err, nil)
	if err != nil {
		return nil, err
	}
	if t.IsEmpty() {
		return t, nil
	}
	return t.Select("id", "player_name")
}

func collectIDs(b *idcache.Builder, t *normalize.Table, nameCol string) {
	if t == nil || t.IsEmpty() {
		return
	}
	ids, err := t.Column("id")
	if err != nil {
		return
	}
	names, err := t.Column(nameCol)
	if err != nil {
		return
	}
	for r := range ids {
		b.Add(ids[r].Text(), names[r].Text())
	}
}
