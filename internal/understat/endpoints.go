package understat

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"
)

// ------------------------------------------------------------------------
// Page paths
// ------------------------------------------------------------------------

func leaguePath(league string, season int) (string, error) {
	l, err := LookupLeague(league)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/league/%s/%d", l.Slug, season), nil
}

func teamPath(team string, season int) string {
	return fmt.Sprintf("/team/%s/%d", url.PathEscape(TeamSlug(team)), season)
}

func playerPath(playerID string) string {
	return "/player/" + url.PathEscape(playerID)
}

func matchPath(matchID string) string {
	return "/match/" + url.PathEscape(matchID)
}

// ------------------------------------------------------------------------
// League page: datesData, teamsData, playersData
// ------------------------------------------------------------------------

// LeagueFixtures returns the league's matches that have not been played yet.
func (c *Client) LeagueFixtures(ctx context.Context, league string, season int) ([]byte, error) {
	dates, err := c.leagueVar(ctx, league, season, "datesData")
	if err != nil {
		return nil, err
	}
	return filterDates(dates, false, "")
}

// LeagueResults returns the league's played matches.
func (c *Client) LeagueResults(ctx context.Context, league string, season int) ([]byte, error) {
	dates, err := c.leagueVar(ctx, league, season, "datesData")
	if err != nil {
		return nil, err
	}
	return filterDates(dates, true, "")
}

// LeaguePlayers returns season statistics for every player in the league.
func (c *Client) LeaguePlayers(ctx context.Context, league string, season int) ([]byte, error) {
	return c.leagueVar(ctx, league, season, "playersData")
}

// Teams returns the league's teams keyed by team id.
func (c *Client) Teams(ctx context.Context, league string, season int) ([]byte, error) {
	return c.leagueVar(ctx, league, season, "teamsData")
}

func (c *Client) leagueVar(ctx context.Context, league string, season int, name string) ([]byte, error) {
	path, err := leaguePath(league, season)
	if err != nil {
		return nil, err
	}
	return c.variable(ctx, path, name)
}

// ------------------------------------------------------------------------
// Home page: statData
// ------------------------------------------------------------------------

// Stats returns the monthly per-league summary from the home page.
func (c *Client) Stats(ctx context.Context) ([]byte, error) {
	return c.variable(ctx, "/", "statData")
}

// ------------------------------------------------------------------------
// Player page: matchesData, shotsData, minMaxPlayerStats, groupsData
// ------------------------------------------------------------------------

// PlayerMatches returns every match the player appeared in.
func (c *Client) PlayerMatches(ctx context.Context, playerID string) ([]byte, error) {
	return c.variable(ctx, playerPath(playerID), "matchesData")
}

// PlayerShots returns every shot the player took.
func (c *Client) PlayerShots(ctx context.Context, playerID string) ([]byte, error) {
	return c.variable(ctx, playerPath(playerID), "shotsData")
}

// PlayerStats returns the player's per-position max/min/avg statistics.
func (c *Client) PlayerStats(ctx context.Context, playerID string) ([]byte, error) {
	return c.variable(ctx, playerPath(playerID), "minMaxPlayerStats")
}

// PlayerGroupedStats returns the grouped statistics shown at the top of a
// player's page.
func (c *Client) PlayerGroupedStats(ctx context.Context, playerID string) ([]byte, error) {
	return c.variable(ctx, playerPath(playerID), "groupsData")
}

// ------------------------------------------------------------------------
// Team page: datesData, statisticsData, playersData
// ------------------------------------------------------------------------

// TeamFixtures returns the team's upcoming matches. side is "h", "a" or ""
// for both.
func (c *Client) TeamFixtures(ctx context.Context, team string, season int, side string) ([]byte, error) {
	dates, err := c.variable(ctx, teamPath(team, season), "datesData")
	if err != nil {
		return nil, err
	}
	return filterDates(dates, false, side)
}

// TeamResults returns the team's played matches.
func (c *Client) TeamResults(ctx context.Context, team string, season int) ([]byte, error) {
	dates, err := c.variable(ctx, teamPath(team, season), "datesData")
	if err != nil {
		return nil, err
	}
	return filterDates(dates, true, "")
}

// TeamPlayers returns season statistics for the team's players.
func (c *Client) TeamPlayers(ctx context.Context, team string, season int) ([]byte, error) {
	return c.variable(ctx, teamPath(team, season), "playersData")
}

// TeamStats returns the team's statistics keyed by category.
func (c *Client) TeamStats(ctx context.Context, team string, season int) ([]byte, error) {
	return c.variable(ctx, teamPath(team, season), "statisticsData")
}

// ------------------------------------------------------------------------
// Match page: shotsData, rostersData
// ------------------------------------------------------------------------

// MatchPlayers returns the match rosters keyed by side.
func (c *Client) MatchPlayers(ctx context.Context, matchID string) ([]byte, error) {
	return c.variable(ctx, matchPath(matchID), "rostersData")
}

// MatchShots returns the match shots keyed by side.
func (c *Client) MatchShots(ctx context.Context, matchID string) ([]byte, error) {
	return c.variable(ctx, matchPath(matchID), "shotsData")
}

// filterDates keeps the entries of a datesData array whose isResult equals
// played and, when side is set, whose side matches.
func filterDates(dates []byte, played bool, side string) ([]byte, error) {
	root := gjson.ParseBytes(dates)
	if !root.IsArray() {
		return nil, fmt.Errorf("datesData: expected array, got %s", root.Type)
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	n := 0
	root.ForEach(func(_, match gjson.Result) bool {
		if match.Get("isResult").Bool() != played {
			return true
		}
		if side != "" && match.Get("side").String() != side {
			return true
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(match.Raw)
		n++
		return true
	})
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
