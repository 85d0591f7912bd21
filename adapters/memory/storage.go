package memory

import (
	"context"
	"sync"

	"munchykit/core"
)

// Store is a concurrent in-memory Storage implementation.
// Profile, wins and weights are kept as independent entries, like the
// keyed blobs of the durable adapters.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu      sync.Mutex
	profile *core.UserProfile
	wins    []core.Win
	weights []core.WeightEntry
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	actual, _ := s.users.LoadOrStore(user, &userRecord{})
	return actual.(*userRecord)
}

func (s *Store) Load(_ context.Context, user core.UserID) (core.Snapshot, error) {
	snap := core.NewSnapshot()
	v, ok := s.users.Load(user)
	if !ok {
		return snap, nil
	}
	rec := v.(*userRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.profile != nil {
		snap.Profile = *rec.profile
	}
	if rec.wins != nil {
		snap.Wins = rec.wins
	}
	if rec.weights != nil {
		snap.Weights = rec.weights
	}
	return snap.Clone(), nil
}

func (s *Store) SaveProfile(_ context.Context, user core.UserID, profile core.UserProfile) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	cp := profile.Clone()
	rec.profile = &cp
	return nil
}

func (s *Store) SaveWins(_ context.Context, user core.UserID, wins []core.Win) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.wins = append(make([]core.Win, 0, len(wins)), wins...)
	return nil
}

func (s *Store) SaveWeights(_ context.Context, user core.UserID, weights []core.WeightEntry) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.weights = append(make([]core.WeightEntry, 0, len(weights)), weights...)
	return nil
}

var _ interface {
	Load(context.Context, core.UserID) (core.Snapshot, error)
	SaveProfile(context.Context, core.UserID, core.UserProfile) error
	SaveWins(context.Context, core.UserID, []core.Win) error
	SaveWeights(context.Context, core.UserID, []core.WeightEntry) error
} = (*Store)(nil)
