package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SeasonLabel formats a season start year the way understat shows it,
// e.g. 2020 → "2020-21".
func SeasonLabel(season int) string {
	return fmt.Sprintf("%d-%02d", season, (season+1)%100)
}

// OutputFolder returns the results folder under root. Timestamped folders
// are named results_YYYY_MM_DD_HH_MM_SS after now.
func OutputFolder(root string, now time.Time, timestamped bool) string {
	name := "results"
	if timestamped {
		name = "results_" + now.Format("2006_01_02_15_04_05")
	}
	return filepath.Join(root, name)
}

// compactName drops the spaces from a player name for use in file names.
func compactName(name string) string {
	return strings.ReplaceAll(name, " ", "")
}
