package core

import (
	"time"
)

// DayLayout is the calendar-day format stored in LastLogDate and WeightEntry.Date.
const DayLayout = "2006-01-02"

// dayOffset is the fixed span used to find "yesterday". It is not
// calendar-aware, so across a DST change it can land on the wrong day.
const dayOffset = 86_400_000 * time.Millisecond

// DayKey formats t as a calendar day in t's own location.
func DayKey(t time.Time) string { return t.Format(DayLayout) }

// NextStreak computes the streak after logging on now's day.
func NextStreak(streak int, lastLogDate string, now time.Time) int {
	today := DayKey(now)
	if today == lastLogDate {
		return streak
	}
	if lastLogDate == DayKey(now.Add(-dayOffset)) {
		return streak + 1
	}
	return 1
}

// ApplyWin prepends win to wins and folds it into the profile aggregates.
// It never fails and never mutates its inputs.
func ApplyWin(p UserProfile, wins []Win, win Win, now time.Time) (UserProfile, []Win) {
	nextWins := make([]Win, 0, len(wins)+1)
	nextWins = append(nextWins, win)
	nextWins = append(nextWins, wins...)

	next := p.Clone()
	next.Streak = NextStreak(p.Streak, p.LastLogDate, now)
	next.LastLogDate = DayKey(now)
	next.TotalMoneySaved += win.MoneySaved
	next.TotalCaloriesSaved += win.CaloriesSaved

	// Every win advances every matching challenge, whichever goal it was logged for.
	for i, c := range next.CustomChallenges {
		switch c.Unit {
		case UnitTimes:
			next.CustomChallenges[i].Current = c.Current + 1
		case UnitDollars:
			next.CustomChallenges[i].Current = c.Current + max(win.MoneySaved, 0)
		}
	}
	return next, nextWins
}

// ApplyWeightEntry appends entry to the chronological weight list.
func ApplyWeightEntry(weights []WeightEntry, entry WeightEntry) []WeightEntry {
	next := make([]WeightEntry, 0, len(weights)+1)
	next = append(next, weights...)
	return append(next, entry)
}

// NewWeightEntry builds a sample for weight taken at date.
func NewWeightEntry(user UserID, weight float64, date time.Time, note string) WeightEntry {
	return WeightEntry{
		ID:        NewID(),
		Weight:    weight,
		Date:      DayKey(date),
		Timestamp: date.UnixMilli(),
		Note:      note,
		UserID:    user,
	}
}

// CurrentWeight is the most recent sample, falling back to the profile's start weight.
func CurrentWeight(p UserProfile, weights []WeightEntry) float64 {
	if len(weights) == 0 {
		return p.StartWeight
	}
	return weights[len(weights)-1].Weight
}

// ApplyCustomChallengeProgress adds one to the named challenge only.
// An unknown id leaves the profile unchanged.
func ApplyCustomChallengeProgress(p UserProfile, challengeID string) UserProfile {
	next := p.Clone()
	for i, c := range next.CustomChallenges {
		if c.ID == challengeID {
			next.CustomChallenges[i].Current = c.Current + 1
		}
	}
	return next
}

// AddCustomChallenge appends c to the profile's challenges.
func AddCustomChallenge(p UserProfile, c CustomChallenge) UserProfile {
	next := p.Clone()
	next.CustomChallenges = append(next.CustomChallenges, c)
	return next
}
