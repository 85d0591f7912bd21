package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"munchykit/core"
)

func sampleWins() []core.Win {
	return []core.Win{
		{ID: "5", Item: "cola", Category: "Sugary Drinks", Type: core.WinSkip, MoneySaved: 2.5},
		{ID: "4", Item: "cake", Category: "Sweets/Candy", Type: core.WinGaveIn, MoneySaved: -4},
		{ID: "3", Item: "water", Type: core.WinSwap, MoneySaved: 0},
		{ID: "2", Item: "soda", Category: "Sugary Drinks", Type: core.WinSkip, MoneySaved: 2.5},
		{ID: "1", Item: "fries", Category: "Fast Food", Type: core.WinSkip, MoneySaved: 3},
	}
}

func TestCategoryBreakdown(t *testing.T) {
	got := CategoryBreakdown(sampleWins())
	require.Len(t, got, 4)
	assert.Equal(t, "Sugary Drinks", got[0].Category)
	assert.Equal(t, 2, got[0].Count)
	assert.InDelta(t, 40.0, got[0].Percent, 1e-9)
	// ties break alphabetically
	assert.Equal(t, []string{"Fast Food", "Other", "Sweets/Candy"},
		[]string{got[1].Category, got[2].Category, got[3].Category})

	assert.Empty(t, CategoryBreakdown(nil))
}

func TestGroupByType(t *testing.T) {
	g := GroupByType(sampleWins())
	require.Len(t, g[core.WinSkip], 3)
	assert.Equal(t, "5", g[core.WinSkip][0].ID)
	assert.Len(t, g[core.WinSwap], 1)
	assert.Len(t, g[core.WinGaveIn], 1)

	empty := GroupByType(nil)
	assert.NotNil(t, empty[core.WinSwap])
}

func TestRecentSavings(t *testing.T) {
	got := RecentSavings(sampleWins(), 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"5", "4", "2"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Len(t, RecentSavings(sampleWins(), RecentSavingsLimit), 4)
}

func TestProgressOf(t *testing.T) {
	p := core.UserProfile{StartWeight: 200, GoalWeight: 180}

	wp := ProgressOf(p, nil)
	assert.Equal(t, 200.0, wp.Current)
	assert.Equal(t, 0.0, wp.Lost)
	assert.Equal(t, 20.0, wp.Remaining)

	wp = ProgressOf(p, []core.WeightEntry{{Weight: 195}, {Weight: 178}})
	assert.Equal(t, 178.0, wp.Current)
	assert.Equal(t, 22.0, wp.Lost)
	assert.Equal(t, 0.0, wp.Remaining)
	assert.Equal(t, 2, wp.Entries)
}

func TestSummarize(t *testing.T) {
	snap := core.NewSnapshot()
	snap.Profile.Streak = 7
	snap.Profile.TotalMoneySaved = 4
	snap.Wins = sampleWins()

	s := Summarize(snap)
	assert.Equal(t, 7, s.Streak)
	assert.Equal(t, 3, s.WinCounts[core.WinSkip])
	assert.Equal(t, []core.BadgeID{core.BadgeFirstStep, core.BadgeStreakMaster}, s.Badges)
	assert.Equal(t, "Beat your temptation: Snacks!", s.DailyFocus)
	assert.Len(t, s.RecentSavings, 4)
}
