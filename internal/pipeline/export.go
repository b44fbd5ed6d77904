package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/albapepper/understat-wrangler/internal/normalize"
	"github.com/albapepper/understat-wrangler/internal/sink"
	"github.com/albapepper/understat-wrangler/internal/understat"
)

// ExportColumns is the column layout of a league results export.
var ExportColumns = []string{"HomeTeam", "AwayTeam", "HomeGoals", "AwayGoals", "Country", "League", "Season", "Date"}

const (
	sourceDateLayout = "2006-01-02 15:04:05"
	exportDateLayout = "01/02/2006"
)

// ExportResult tracks counts and errors from a league results export.
type ExportResult struct {
	Leagues  int
	Rows     int
	Errors   []string
	Duration time.Duration
}

// AddErrorf records a formatted error message.
func (r *ExportResult) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the export.
func (r *ExportResult) Summary() string {
	return fmt.Sprintf("leagues=%d rows=%d errors=%d duration=%s",
		r.Leagues, r.Rows, len(r.Errors), r.Duration.Round(time.Millisecond))
}

// ExportLeagueResults writes one "<league> - <season>" table per league with
// the played matches of the season, tagged with country, league and season.
// A league that fails is recorded and the others still export.
func (s *Service) ExportLeagueResults(ctx context.Context, leagues []string, season int, out sink.Sink) *ExportResult {
	start := time.Now()
	result := &ExportResult{}

	for _, name := range leagues {
		if ctx.Err() != nil {
			result.AddErrorf("%s: %v", name, ctx.Err())
			break
		}
		league, err := understat.LookupLeague(name)
		if err != nil {
			result.AddErrorf("%s: %v", name, err)
			continue
		}
		t, err := s.leagueResultsExport(ctx, league, season)
		if err != nil {
			result.AddErrorf("%s: %v", league.Name, err)
			s.logger.Error("export failed", "league", league.Name, "season", season, "error", err)
			continue
		}
		fileName := fmt.Sprintf("%s - %s", league.Name, SeasonLabel(season))
		if err := out.Write(ctx, fileName, t); err != nil {
			result.AddErrorf("%s: %v", league.Name, err)
			continue
		}
		result.Leagues++
		result.Rows += t.Len()
		s.logger.Info("exported league results", "league", league.Name, "rows", t.Len())
	}

	result.Duration = time.Since(start)
	return result
}

func (s *Service) leagueResultsExport(ctx context.Context, league understat.League, season int) (*normalize.Table, error) {
	t, err := s.LeagueResults(ctx, league.Name, season, nil)
	if err != nil {
		return nil, err
	}
	if t.IsEmpty() {
		return normalize.NewTable(ExportColumns...), nil
	}

	t.SetConstant("Country", normalize.String(league.Country))
	t.SetConstant("League", normalize.String(league.Name))
	t.SetConstant("Season", normalize.String(SeasonLabel(season)))
	if err := t.Rename("datetime", "Date"); err != nil {
		return nil, err
	}
	err = t.MapColumn("Date", func(row int, v normalize.Value) (normalize.Value, error) {
		ts, err := time.Parse(sourceDateLayout, v.Text())
		if err != nil {
			return normalize.Value{}, fmt.Errorf("row %d: date %q: %w", row, v.Text(), err)
		}
		return normalize.String(ts.Format(exportDateLayout)), nil
	})
	if err != nil {
		return nil, err
	}
	return t.Select(ExportColumns...)
}
