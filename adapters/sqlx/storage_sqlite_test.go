package sqlx_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	storage "munchykit/adapters/sqlx"
	"munchykit/core"
)

func TestSQLite_RoundTrip(t *testing.T) {
	cfg := storage.DefaultConfig(storage.DriverSQLite)
	cfg.DSN = filepath.Join(t.TempDir(), "munchy.db")
	store, err := storage.New(cfg)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	snap := core.NewSnapshot()
	snap.Profile.Name = "Sam"
	snap.Profile.Streak = 2
	snap.Profile.OnboardingComplete = true
	snap.Profile.CustomChallenges = []core.CustomChallenge{{ID: "c1", Title: "No soda", Target: 5, Current: 1, Unit: core.UnitTimes}}
	snap.Wins = []core.Win{
		{ID: "w2", Item: "chips", Type: core.WinSwap, Timestamp: 2000, MoneySaved: 5},
		{ID: "w1", Item: "soda", Type: core.WinSkip, Timestamp: 1000, MoneySaved: 5},
	}
	snap.Weights = []core.WeightEntry{{ID: "e1", Weight: 180, Date: "2026-03-10", Timestamp: 1000}}

	require.NoError(t, store.SaveSnapshot(ctx, "sam", snap))

	got, err := store.Load(ctx, "sam")
	require.NoError(t, err)
	require.Equal(t, "Sam", got.Profile.Name)
	require.True(t, got.Profile.OnboardingComplete)
	require.Equal(t, 1.0, got.Profile.CustomChallenges[0].Current)
	require.Equal(t, []string{"w2", "w1"}, []string{got.Wins[0].ID, got.Wins[1].ID})
	require.Len(t, got.Weights, 1)

	snap.Profile.CustomChallenges[0].Current = 2
	snap.Wins = snap.Wins[:1]
	require.NoError(t, store.SaveProfile(ctx, "sam", snap.Profile))
	require.NoError(t, store.SaveWins(ctx, "sam", snap.Wins))

	got, err = store.Load(ctx, "sam")
	require.NoError(t, err)
	require.Equal(t, 2.0, got.Profile.CustomChallenges[0].Current)
	require.Len(t, got.Wins, 1)
}
