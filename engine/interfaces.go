package engine

import (
	"context"

	"munchykit/core"
)

// Storage abstracts persistence for tracker state. Each save overwrites the
// stored field set for the user; Load returns defaults when nothing is stored.
type Storage interface {
	Load(ctx context.Context, user core.UserID) (core.Snapshot, error)
	SaveProfile(ctx context.Context, user core.UserID, profile core.UserProfile) error
	SaveWins(ctx context.Context, user core.UserID, wins []core.Win) error
	SaveWeights(ctx context.Context, user core.UserID, weights []core.WeightEntry) error
}

// RuleEngine evaluates rules and emits derived events.
type RuleEngine interface {
	Evaluate(ctx context.Context, before, after core.Snapshot, trigger core.Event) []core.Event
}
