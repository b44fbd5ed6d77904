// Package idcache keeps the team and player id → name lookups that the
// pipeline uses to label match rosters and player datasets.
//
// Both maps are stored as JSON files in one directory. Reads and writes take
// a file lock so a regenerate run and a pipeline run can share the directory.
package idcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	TeamsFile   = "ids_of_teams.json"
	PlayersFile = "ids_of_players.json"
	lockFile    = ".ids.lock"
)

// ErrUnknownID is returned for an id that is not in the cache.
var ErrUnknownID = errors.New("idcache: unknown id")

// Store is the in-memory view of both id maps.
type Store struct {
	dir     string
	lock    *flock.Flock
	mu      sync.RWMutex
	teams   map[string]string
	players map[string]string
}

// Open reads the caches in dir. Missing files give empty maps.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create id cache dir: %w", err)
	}
	s := &Store{
		dir:     dir,
		lock:    flock.New(filepath.Join(dir, lockFile)),
		teams:   map[string]string{},
		players: map[string]string{},
	}

	locked, err := s.lock.TryRLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock id cache: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock id cache: %s is busy", dir)
	}
	defer s.lock.Unlock()

	if err := readMap(filepath.Join(dir, TeamsFile), s.teams); err != nil {
		return nil, err
	}
	if err := readMap(filepath.Join(dir, PlayersFile), s.players); err != nil {
		return nil, err
	}
	return s, nil
}

func readMap(path string, into map[string]string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &into); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// TeamName returns the title for a team id.
func (s *Store) TeamName(id string) (string, error) {
	return s.lookup(s.teams, "team", id)
}

// PlayerName returns the name for a player id.
func (s *Store) PlayerName(id string) (string, error) {
	return s.lookup(s.players, "player", id)
}

func (s *Store) lookup(m map[string]string, kind, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := m[id]
	if !ok {
		return "", fmt.Errorf("%s %s: %w", kind, id, ErrUnknownID)
	}
	return name, nil
}

// SetTeams replaces the team map.
func (s *Store) SetTeams(m map[string]string) {
	s.mu.Lock()
	s.teams = copyMap(m)
	s.mu.Unlock()
}

// SetPlayers replaces the player map.
func (s *Store) SetPlayers(m map[string]string) {
	s.mu.Lock()
	s.players = copyMap(m)
	s.mu.Unlock()
}

// Counts returns the number of cached teams and players.
func (s *Store) Counts() (teams, players int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.teams), len(s.players)
}

// Save writes both maps under an exclusive lock. Each file is replaced
// atomically.
func (s *Store) Save(ctx context.Context) error {
	locked, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock id cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock id cache: %s is busy", s.dir)
	}
	defer s.lock.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := writeMap(filepath.Join(s.dir, TeamsFile), s.teams); err != nil {
		return err
	}
	return writeMap(filepath.Join(s.dir, PlayersFile), s.players)
}

func writeMap(path string, m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Builder collects id → name pairs where the first name seen for an id wins.
type Builder struct {
	names map[string]string
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{names: map[string]string{}}
}

// Add records name for id unless id was already added. Empty ids are ignored.
func (b *Builder) Add(id, name string) {
	if id == "" {
		return
	}
	if _, ok := b.names[id]; !ok {
		b.names[id] = name
	}
}

// Len returns the number of distinct ids.
func (b *Builder) Len() int { return len(b.names) }

// Map returns the collected pairs.
func (b *Builder) Map() map[string]string {
	return copyMap(b.names)
}

