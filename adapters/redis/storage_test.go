package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"munchykit/core"
)

// newTestClient spins up a miniredis server and returns a client plus cleanup.
func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return client, mr, cleanup
}

func TestStore_LoadEmptyUser(t *testing.T) {
	client, _, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	snap, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Profile.Streak)
	assert.NotNil(t, snap.Wins)
	assert.Empty(t, snap.Wins)
	assert.NotNil(t, snap.Profile.OnboardingAnswers)
}

func TestStore_SaveAndLoad(t *testing.T) {
	client, mr, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	user := core.UserID("alice")

	profile := core.UserProfile{
		Name:              "Alice",
		Streak:            3,
		LastLogDate:       "2026-03-10",
		TotalMoneySaved:   15,
		OnboardingAnswers: core.OnboardingAnswers{core.QuestionVice: core.MultiSelectAnswer("Fast Food")},
		CustomChallenges:  []core.CustomChallenge{{ID: "c1", Title: "No soda", Target: 5, Current: 2, Unit: core.UnitTimes}},
	}
	wins := []core.Win{
		{ID: "w2", Item: "chips", Type: core.WinSwap, Replacement: "apple", MoneySaved: 5, CaloriesSaved: 300},
		{ID: "w1", Item: "soda", Type: core.WinSkip, MoneySaved: 5, CaloriesSaved: 300},
	}
	weights := []core.WeightEntry{{ID: "x", Weight: 180, Date: "2026-03-10"}}

	require.NoError(t, store.SaveProfile(ctx, user, profile))
	require.NoError(t, store.SaveWins(ctx, user, wins))
	require.NoError(t, store.SaveWeights(ctx, user, weights))

	assert.True(t, mr.Exists("munchy:alice:profile"))
	assert.True(t, mr.Exists("munchy:alice:wins"))
	assert.True(t, mr.Exists("munchy:alice:weight"))

	snap, err := store.Load(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Alice", snap.Profile.Name)
	assert.Equal(t, 3, snap.Profile.Streak)
	assert.Equal(t, []string{"Fast Food"}, snap.Profile.OnboardingAnswers[core.QuestionVice].Choices)
	assert.Equal(t, 2.0, snap.Profile.CustomChallenges[0].Current)
	require.Len(t, snap.Wins, 2)
	assert.Equal(t, "w2", snap.Wins[0].ID)
	assert.Equal(t, weights, snap.Weights)
}

func TestStore_FieldsAreIndependent(t *testing.T) {
	client, _, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	require.NoError(t, store.SaveWins(ctx, "bob", []core.Win{{ID: "w1", Item: "cake", Type: core.WinGaveIn, MoneySaved: -8}}))

	snap, err := store.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, snap.Wins, 1)
	assert.Equal(t, "", snap.Profile.Name)
	assert.Empty(t, snap.Weights)
}

func TestStore_LoadCorruptBlob(t *testing.T) {
	client, mr, cleanup := newTestClient(t)
	defer cleanup()

	require.NoError(t, mr.Set("munchy:eve:wins", "{not json"))
	_, err := NewWithClient(client).Load(context.Background(), "eve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wins")
}

func TestStore_SaveSnapshot(t *testing.T) {
	client, mr, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	snap := core.NewSnapshot()
	snap.Profile.Name = "Cy"
	snap.Wins = []core.Win{{ID: "w1", Item: "soda", Type: core.WinSkip}}

	require.NoError(t, store.SaveSnapshot(ctx, "cy", snap))

	raw, err := mr.Get("munchy:cy:weight")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)

	got, err := store.Load(ctx, "cy")
	require.NoError(t, err)
	assert.Equal(t, "Cy", got.Profile.Name)
	assert.Len(t, got.Wins, 1)
}

func TestStore_ConnectionError(t *testing.T) {
	client, mr, cleanup := newTestClient(t)
	defer cleanup()
	mr.Close()

	_, err := NewWithClient(client).Load(context.Background(), "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load user state")
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, "", config.Password)
	assert.Equal(t, 0, config.DB)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 2, config.MinIdleConns)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 3*time.Second, config.ReadTimeout)
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
	assert.Equal(t, "munchy", config.KeyPrefix)
}
