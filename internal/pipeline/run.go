package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/albapepper/understat-wrangler/internal/config"
	"github.com/albapepper/understat-wrangler/internal/normalize"
	"github.com/albapepper/understat-wrangler/internal/sink"
)

// Stage is one dataset of a pipeline run.
type Stage struct {
	Key      string // e.g. "league_results"
	FileName string // e.g. "League results - 2020-21 - EPL"
	run      func(ctx context.Context) (*normalize.Bundle, error)
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Key           string
	TablesWritten int
	TablesEmpty   int
	Err           error
	Duration      time.Duration
}

// RunResult tracks counts and errors from a pipeline run.
type RunResult struct {
	Stages        []StageResult
	TablesWritten int
	TablesEmpty   int
	Errors        []string
	Duration      time.Duration
}

// AddErrorf records a formatted error message.
func (r *RunResult) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Failed returns the number of stages that ended in an error.
func (r *RunResult) Failed() int {
	n := 0
	for _, s := range r.Stages {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Summary returns a human-readable summary of the run.
func (r *RunResult) Summary() string {
	return fmt.Sprintf(
		"stages=%d failed=%d tables_written=%d tables_empty=%d errors=%d duration=%s",
		len(r.Stages), r.Failed(), r.TablesWritten, r.TablesEmpty,
		len(r.Errors), r.Duration.Round(time.Millisecond),
	)
}

func single(fn func(ctx context.Context) (*normalize.Table, error)) func(ctx context.Context) (*normalize.Bundle, error) {
	return func(ctx context.Context) (*normalize.Bundle, error) {
		t, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return normalize.Single(t), nil
	}
}

// Stages builds the datasets of a run in their report order.
func (s *Service) Stages(in config.Inputs) []Stage {
	season := SeasonLabel(in.Season)
	opts := normalize.Options(in.Options)

	playerLabel := in.PlayerID
	if name, err := s.names.PlayerName(in.PlayerID); err == nil {
		playerLabel += compactName(name)
	} else {
		s.logger.Warn("player not in id cache, file names use the id only", "player_id", in.PlayerID)
	}

	return []Stage{
		{"upcoming_league_fixtures", fmt.Sprintf("Upcoming league fixtures - %s - %s", season, in.LeagueName),
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.LeagueFixtures(ctx, in.LeagueName, in.Season, opts)
			})},
		{"league_players", fmt.Sprintf("League players - %s - %s", season, in.LeagueName),
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.LeaguePlayers(ctx, in.LeagueName, in.Season, opts)
			})},
		{"league_results", fmt.Sprintf("League results - %s - %s", season, in.LeagueName),
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.LeagueResults(ctx, in.LeagueName, in.Season, opts)
			})},
		{"match_players", "Match players - MatchID" + in.MatchID,
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.MatchPlayers(ctx, in.MatchID, opts)
			})},
		{"match_shots", "Match shots - MatchID" + in.MatchID,
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.MatchShots(ctx, in.MatchID, opts)
			})},
		{"player_grouped_stats", "Player grouped stats - " + playerLabel,
			func(ctx context.Context) (*normalize.Bundle, error) {
				return s.PlayerGroupedStats(ctx, in.PlayerID)
			}},
		{"player_matches", "Player matches - " + playerLabel,
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.PlayerMatches(ctx, in.PlayerID, opts)
			})},
		{"player_shots", "Player shots - " + playerLabel,
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.PlayerShots(ctx, in.PlayerID, opts)
			})},
		{"player_stats", "Player stats - " + playerLabel,
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.PlayerStats(ctx, in.PlayerID, in.Positions)
			})},
		{"stats", "All league stats - TimeSeries",
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.Stats(ctx, in.SortByDate, opts)
			})},
		{"upcoming_team_fixtures", fmt.Sprintf("Upcoming team fixtures - %s - %s", season, in.TeamName),
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.TeamFixtures(ctx, in.TeamName, in.Season)
			})},
		{"team_players", fmt.Sprintf("Team players - %s - %s", season, in.TeamName),
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.TeamPlayers(ctx, in.TeamName, in.Season, opts)
			})},
		{"team_results", fmt.Sprintf("Team results - %s - %s", season, in.TeamName),
			single(func(ctx context.Context) (*normalize.Table, error) {
				return s.TeamResults(ctx, in.TeamName, in.Season, opts)
			})},
		{"team_stats", fmt.Sprintf("Team stats - %s - %s", season, in.TeamName),
			func(ctx context.Context) (*normalize.Bundle, error) {
				return s.TeamStats(ctx, in.TeamName, in.Season)
			}},
	}
}

// Run executes every stage on a pool of workers and writes each non-empty
// table to out. A failing stage is logged and recorded; it never stops the
// others. Labelled tables of a bundle are written as "<file> - <label>".
func (s *Service) Run(ctx context.Context, in config.Inputs, out sink.Sink, workers int) *RunResult {
	start := time.Now()
	stages := s.Stages(in)
	result := &RunResult{Stages: make([]StageResult, len(stages))}

	s.logger.Info("Starting pipeline run", "stages", len(stages), "workers", workers,
		"season", in.Season, "league", in.LeagueName, "team", in.TeamName)

	forEach(len(stages), workers, func(i int) {
		result.Stages[i] = s.runStage(ctx, stages[i], out)
	})

	for i, sr := range result.Stages {
		result.TablesWritten += sr.TablesWritten
		result.TablesEmpty += sr.TablesEmpty
		if sr.Err != nil {
			result.AddErrorf("Problem with stat: %s --> ErrorMsg: %v", stages[i].Key, sr.Err)
		}
	}
	result.Duration = time.Since(start)

	s.logger.Info("Pipeline run complete", "summary", result.Summary())
	return result
}

func (s *Service) runStage(ctx context.Context, st Stage, out sink.Sink) StageResult {
	start := time.Now()
	sr := StageResult{Key: st.Key}

	bundle, err := st.run(ctx)
	if err != nil {
		sr.Err = err
		s.logger.Error("stage failed", "stage", st.Key, "error", err)
		sr.Duration = time.Since(start)
		return sr
	}

	err = bundle.Each(func(label string, t *normalize.Table) error {
		if t.IsEmpty() {
			sr.TablesEmpty++
			return nil
		}
		name := st.FileName
		if label != "" {
			name += " - " + label
		}
		if err := out.Write(ctx, name, t); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		sr.TablesWritten++
		return nil
	})
	if err != nil {
		sr.Err = err
		s.logger.Error("stage failed", "stage", st.Key, "error", err)
	}
	sr.Duration = time.Since(start)
	return sr
}

// forEach calls fn for every index in [0, n) on up to workers goroutines.
func forEach(n, workers int, fn func(i int)) {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	ch := make(chan int, n)
	for i := 0; i < n; i++ {
		ch <- i
	}
	close(ch)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range ch {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
