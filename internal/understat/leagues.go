package understat

import (
	"fmt"
	"strings"
)

// League describes one of the competitions understat covers.
type League struct {
	Name    string // display name, e.g. "La Liga"
	Slug    string // URL path segment, e.g. "La_liga"
	Country string
}

// Leagues is the registry of supported competitions, in the order the bulk
// commands walk them.
var Leagues = []League{
	{Name: "Bundesliga", Slug: "Bundesliga", Country: "Germany"},
	{Name: "EPL", Slug: "EPL", Country: "England"},
	{Name: "La Liga", Slug: "La_liga", Country: "Spain"},
	{Name: "Ligue 1", Slug: "Ligue_1", Country: "France"},
	{Name: "Serie A", Slug: "Serie_A", Country: "Italy"},
	{Name: "RFPL", Slug: "RFPL", Country: "Russia"},
}

// TopFive are the leagues the id caches and bulk exports cover.
var TopFive = []string{"Bundesliga", "EPL", "La Liga", "Ligue 1", "Serie A"}

// LookupLeague resolves a league by display name or slug, ignoring case and
// treating underscores as spaces.
func LookupLeague(name string) (League, error) {
	key := leagueKey(name)
	for _, l := range Leagues {
		if leagueKey(l.Name) == key || leagueKey(l.Slug) == key {
			return l, nil
		}
	}
	return League{}, fmt.Errorf("unknown league %q", name)
}

func leagueKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " "))
}

// TeamSlug turns a team name into its URL path segment.
func TeamSlug(team string) string {
	return strings.ReplaceAll(strings.TrimSpace(team), " ", "_")
}
