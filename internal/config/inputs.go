package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Inputs selects what a pipeline run fetches.
type Inputs struct {
	Season     int               `json:"season"`
	LeagueName string            `json:"league_name"`
	TeamName   string            `json:"team_name"`
	MatchID    string            `json:"match_id"`
	PlayerID   string            `json:"player_id"`
	Positions  []string          `json:"positions"`
	Options    map[string]string `json:"options"`
	SortByDate bool              `json:"sort_stats_by_date"`
}

// Validate reports the first missing required input.
func (in Inputs) Validate() error {
	switch {
	case in.Season < 2014:
		return fmt.Errorf("season must be 2014 or later, got %d", in.Season)
	case in.LeagueName == "":
		return fmt.Errorf("league_name is required")
	case in.TeamName == "":
		return fmt.Errorf("team_name is required")
	case in.MatchID == "":
		return fmt.Errorf("match_id is required")
	case in.PlayerID == "":
		return fmt.Errorf("player_id is required")
	}
	return nil
}

// ReadInputs reads name (e.g. wrangle.json5) and merges <base>.local.<ext>
// over it when that file exists. os.ErrNotExist is returned when neither
// file exists.
func ReadInputs(name string) (Inputs, error) {
	var out Inputs
	found := false

	base, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(base) > 0 {
		if err := json5.Unmarshal(base, &out); err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}
		found = true
	}

	local := localName(name)
	override, err := os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(override) > 0 {
		var in Inputs
		if err := json5.Unmarshal(override, &in); err != nil {
			return out, fmt.Errorf("parse %s: %w", local, err)
		}
		if err := mergo.Merge(&out, in, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge %s: %w", local, err)
		}
		slog.Info("merging inputs with local overrides", "local", local)
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

func localName(name string) string {
	dir, file := filepath.Split(name)
	ext := filepath.Ext(file)
	return filepath.Join(dir, strings.TrimSuffix(file, ext)+".local"+ext)
}
