package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"munchykit/core"
)

// Key prefixes of the three blobs stored per user.
const (
	ProfilePrefix = "munchy_profile_"
	WinsPrefix    = "munchy_wins_"
	WeightPrefix  = "munchy_weight_"
)

// Store is a local key-value cache persisted to a single JSON file.
// Each user owns three independently keyed blobs. Suitable for the CLI
// and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[string]json.RawMessage
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[string]json.RawMessage{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) Load(_ context.Context, user core.UserID) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := core.NewSnapshot()
	blobs := []struct {
		key    string
		target any
	}{
		{ProfilePrefix + string(user), &snap.Profile},
		{WinsPrefix + string(user), &snap.Wins},
		{WeightPrefix + string(user), &snap.Weights},
	}
	for _, b := range blobs {
		raw, ok := s.data[b.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, b.target); err != nil {
			return core.Snapshot{}, fmt.Errorf("failed to decode %s: %w", b.key, err)
		}
	}
	return snap.Clone(), nil
}

func (s *Store) put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data[key]
	s.data[key] = raw
	if err := s.persist(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

func (s *Store) SaveProfile(_ context.Context, user core.UserID, profile core.UserProfile) error {
	return s.put(ProfilePrefix+string(user), profile)
}

func (s *Store) SaveWins(_ context.Context, user core.UserID, wins []core.Win) error {
	if wins == nil {
		wins = []core.Win{}
	}
	return s.put(WinsPrefix+string(user), wins)
}

func (s *Store) SaveWeights(_ context.Context, user core.UserID, weights []core.WeightEntry) error {
	if weights == nil {
		weights = []core.WeightEntry{}
	}
	return s.put(WeightPrefix+string(user), weights)
}
