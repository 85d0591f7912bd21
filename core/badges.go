package core

import (
	"regexp"
	"sort"
)

// BadgeID names an achievement in the fixed catalog.
type BadgeID string

const (
	BadgeFirstStep    BadgeID = "first_step"
	BadgeSodaSlayer   BadgeID = "soda_slayer"
	BadgeMoneyBags    BadgeID = "money_bags"
	BadgeStreakMaster BadgeID = "streak_master"
)

const (
	sodaSlayerSkips    = 3
	moneyBagsThreshold = 50
	streakMasterDays   = 7
)

var sodaPattern = regexp.MustCompile(`(?i)soda|coke|pepsi|drink`)

// Badge describes one catalog entry.
type Badge struct {
	ID     BadgeID `json:"id"`
	Title  string  `json:"title"`
	Reward string  `json:"reward"`
	Icon   string  `json:"icon"`
}

type badgeRule struct {
	Badge
	unlocked func(UserProfile, []Win) bool
}

var catalog = []badgeRule{
	{Badge{BadgeFirstStep, "First Step", "Rookie Badge", "🎯"}, func(_ UserProfile, wins []Win) bool {
		return len(wins) > 0
	}},
	{Badge{BadgeSodaSlayer, "Soda Slayer", "No-Fizz Badge", "🥤"}, func(_ UserProfile, wins []Win) bool {
		n := 0
		for _, w := range wins {
			if w.Type == WinSkip && sodaPattern.MatchString(w.Item) {
				n++
			}
		}
		return n >= sodaSlayerSkips
	}},
	{Badge{BadgeMoneyBags, "Money Bags", "Golden Piggy", "💰"}, func(p UserProfile, _ []Win) bool {
		return p.TotalMoneySaved >= moneyBagsThreshold
	}},
	{Badge{BadgeStreakMaster, "Streak Master", "Phoenix Flame", "🔥"}, func(p UserProfile, _ []Win) bool {
		return p.Streak >= streakMasterDays
	}},
}

// Catalog lists every badge in display order.
func Catalog() []Badge {
	out := make([]Badge, len(catalog))
	for i, r := range catalog {
		out[i] = r.Badge
	}
	return out
}

// BadgeSet is a set of unlocked badge ids.
type BadgeSet map[BadgeID]struct{}

// Has reports membership.
func (s BadgeSet) Has(id BadgeID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order.
func (s BadgeSet) Sorted() []BadgeID {
	out := make([]BadgeID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EvaluateBadges recomputes the unlocked set from scratch.
func EvaluateBadges(p UserProfile, wins []Win) BadgeSet {
	set := BadgeSet{}
	for _, r := range catalog {
		if r.unlocked(p, wins) {
			set[r.ID] = struct{}{}
		}
	}
	return set
}

// NewlyUnlocked returns the catalog entries present in after but not before,
// in catalog order.
func NewlyUnlocked(before, after BadgeSet) []BadgeID {
	var out []BadgeID
	for _, r := range catalog {
		if after.Has(r.ID) && !before.Has(r.ID) {
			out = append(out, r.ID)
		}
	}
	return out
}
