package analytics

import (
	"fmt"
	"time"

	"munchykit/core"
)

// AggregationPeriod represents different time periods for aggregation
type AggregationPeriod string

const (
	PeriodDaily   AggregationPeriod = "daily"
	PeriodWeekly  AggregationPeriod = "weekly"
	PeriodMonthly AggregationPeriod = "monthly"
)

// AggregatedData represents tracker activity rolled up over one period
type AggregatedData struct {
	Period AggregationPeriod `json:"period"`
	Key    string            `json:"key"` // e.g., "2024-01-01" for daily, "2024-W01" for weekly

	ActiveUsers int `json:"active_users"`

	Wins          int64                  `json:"wins"`
	WinsByType    map[core.WinType]int64 `json:"wins_by_type"`
	MoneySaved    float64                `json:"money_saved"`
	MoneyLost     float64                `json:"money_lost"`
	CaloriesSaved float64                `json:"calories_saved"`
	WeighIns      int64                  `json:"weigh_ins"`

	BadgesUnlocked      int64                  `json:"badges_unlocked"`
	BadgesByID          map[core.BadgeID]int64 `json:"badges_by_id"`
	ChallengesCompleted int64                  `json:"challenges_completed"`

	CreatedAt time.Time `json:"created_at"`
}

// PeriodKey formats t as the key of the period containing it.
func PeriodKey(period AggregationPeriod, t time.Time) (string, error) {
	switch period {
	case PeriodDaily:
		return dayKey(t), nil
	case PeriodWeekly:
		return getWeekKey(t), nil
	case PeriodMonthly:
		return getMonthKey(t), nil
	}
	return "", fmt.Errorf("unknown aggregation period %q", period)
}

// Rollup sums every recorded day that falls into the period identified by key.
func (tm *TrackerMetrics) Rollup(period AggregationPeriod, key string) (*AggregatedData, error) {
	if _, err := PeriodKey(period, time.Time{}); err != nil {
		return nil, err
	}
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	out := &AggregatedData{
		Period:     period,
		Key:        key,
		WinsByType: map[core.WinType]int64{},
		BadgesByID: map[core.BadgeID]int64{},
		CreatedAt:  time.Now().UTC(),
	}
	users := map[core.UserID]struct{}{}
	for day, ds := range tm.days {
		t, err := time.Parse(core.DayLayout, day)
		if err != nil {
			continue
		}
		if k, _ := PeriodKey(period, t); k != key {
			continue
		}
		for u := range ds.users {
			users[u] = struct{}{}
		}
		for wt, n := range ds.winsByType {
			out.WinsByType[wt] += n
			out.Wins += n
		}
		for b, n := range ds.badgesByID {
			out.BadgesByID[b] += n
			out.BadgesUnlocked += n
		}
		out.MoneySaved += ds.moneySaved
		out.MoneyLost += ds.moneyLost
		out.CaloriesSaved += ds.caloriesSaved
		out.WeighIns += ds.weighIns
		out.ChallengesCompleted += ds.challengesCompleted
	}
	out.ActiveUsers = len(users)
	return out, nil
}
