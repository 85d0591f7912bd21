package analytics

import (
	"sort"

	"munchykit/core"
)

// RecentSavingsLimit is how many entries the savings feed shows.
const RecentSavingsLimit = 7

// CategoryShare is one slice of the category breakdown.
type CategoryShare struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Percent  float64 `json:"percent"`
}

// CategoryBreakdown counts wins per category, largest first.
// Wins without a category are grouped under "Other".
func CategoryBreakdown(wins []core.Win) []CategoryShare {
	if len(wins) == 0 {
		return []CategoryShare{}
	}
	counts := map[string]int{}
	for _, w := range wins {
		c := w.Category
		if c == "" {
			c = "Other"
		}
		counts[c]++
	}
	out := make([]CategoryShare, 0, len(counts))
	for c, n := range counts {
		out = append(out, CategoryShare{Category: c, Count: n, Percent: float64(n) * 100 / float64(len(wins))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// GroupByType splits wins by type, keeping their order.
func GroupByType(wins []core.Win) map[core.WinType][]core.Win {
	out := map[core.WinType][]core.Win{
		core.WinSkip:   {},
		core.WinSwap:   {},
		core.WinGaveIn: {},
	}
	for _, w := range wins {
		out[w.Type] = append(out[w.Type], w)
	}
	return out
}

// RecentSavings returns the first n wins with a non-zero money delta.
// Wins are expected newest first.
func RecentSavings(wins []core.Win, n int) []core.Win {
	out := []core.Win{}
	for _, w := range wins {
		if len(out) >= n {
			break
		}
		if w.MoneySaved != 0 {
			out = append(out, w)
		}
	}
	return out
}

// WeightProgress summarizes the journey from start to goal weight.
type WeightProgress struct {
	Start     float64 `json:"start"`
	Current   float64 `json:"current"`
	Goal      float64 `json:"goal"`
	Lost      float64 `json:"lost"`
	Remaining float64 `json:"remaining"`
	Entries   int     `json:"entries"`
}

func ProgressOf(p core.UserProfile, weights []core.WeightEntry) WeightProgress {
	current := core.CurrentWeight(p, weights)
	wp := WeightProgress{Start: p.StartWeight, Current: current, Goal: p.GoalWeight, Entries: len(weights)}
	if p.StartWeight > 0 {
		wp.Lost = p.StartWeight - current
	}
	if p.GoalWeight > 0 {
		wp.Remaining = max(current-p.GoalWeight, 0)
	}
	return wp
}

// Stats is the per-user dashboard summary.
type Stats struct {
	Streak             int                  `json:"streak"`
	TotalMoneySaved    float64              `json:"totalMoneySaved"`
	TotalCaloriesSaved float64              `json:"totalCaloriesSaved"`
	WinCounts          map[core.WinType]int `json:"winCounts"`
	Categories         []CategoryShare      `json:"categories"`
	RecentSavings      []core.Win           `json:"recentSavings"`
	Weight             WeightProgress       `json:"weight"`
	Badges             []core.BadgeID       `json:"badges"`
	DailyFocus         string               `json:"dailyFocus"`
}

// Summarize builds the dashboard summary for one user.
func Summarize(snap core.Snapshot) Stats {
	counts := map[core.WinType]int{}
	for t, ws := range GroupByType(snap.Wins) {
		counts[t] = len(ws)
	}
	return Stats{
		Streak:             snap.Profile.Streak,
		TotalMoneySaved:    snap.Profile.TotalMoneySaved,
		TotalCaloriesSaved: snap.Profile.TotalCaloriesSaved,
		WinCounts:          counts,
		Categories:         CategoryBreakdown(snap.Wins),
		RecentSavings:      RecentSavings(snap.Wins, RecentSavingsLimit),
		Weight:             ProgressOf(snap.Profile, snap.Weights),
		Badges:             core.EvaluateBadges(snap.Profile, snap.Wins).Sorted(),
		DailyFocus:         core.DailyFocus(snap.Profile),
	}
}
