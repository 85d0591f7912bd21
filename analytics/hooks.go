package analytics

import (
	"fmt"
	"sync"
	"time"

	"munchykit/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks daily active users.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	day := dayKey(e.Time)
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// dayStats holds one UTC day of tracker activity.
type dayStats struct {
	users               map[core.UserID]struct{}
	winsByType          map[core.WinType]int64
	moneySaved          float64
	moneyLost           float64
	caloriesSaved       float64
	weighIns            int64
	badgesByID          map[core.BadgeID]int64
	challengesCompleted int64
}

func newDayStats() *dayStats {
	return &dayStats{
		users:      map[core.UserID]struct{}{},
		winsByType: map[core.WinType]int64{},
		badgesByID: map[core.BadgeID]int64{},
	}
}

// TrackerMetrics aggregates tracker events per day across all users.
type TrackerMetrics struct {
	mu sync.RWMutex

	days               map[string]*dayStats
	uniqueBadgeHolders map[core.BadgeID]map[core.UserID]struct{}
	persistFailures    map[string]int64
}

func NewTrackerMetrics() *TrackerMetrics {
	return &TrackerMetrics{
		days:               make(map[string]*dayStats),
		uniqueBadgeHolders: make(map[core.BadgeID]map[core.UserID]struct{}),
		persistFailures:    make(map[string]int64),
	}
}

func (tm *TrackerMetrics) OnEvent(e core.Event) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	day := dayKey(e.Time)
	ds := tm.days[day]
	if ds == nil {
		ds = newDayStats()
		tm.days[day] = ds
	}

	switch e.Type {
	case core.EventWinLogged:
		ds.users[e.UserID] = struct{}{}
		if e.Win == nil {
			return
		}
		ds.winsByType[e.Win.Type]++
		if e.Win.MoneySaved >= 0 {
			ds.moneySaved += e.Win.MoneySaved
		} else {
			ds.moneyLost -= e.Win.MoneySaved
		}
		ds.caloriesSaved += e.Win.CaloriesSaved
	case core.EventWeightLogged:
		ds.users[e.UserID] = struct{}{}
		ds.weighIns++
	case core.EventBadgeUnlocked:
		ds.badgesByID[e.Badge]++
		if tm.uniqueBadgeHolders[e.Badge] == nil {
			tm.uniqueBadgeHolders[e.Badge] = make(map[core.UserID]struct{})
		}
		tm.uniqueBadgeHolders[e.Badge][e.UserID] = struct{}{}
	case core.EventChallengeCompleted:
		ds.challengesCompleted++
	case core.EventPersistFailed:
		kind, _ := e.Metadata["kind"].(string)
		tm.persistFailures[kind]++
	case core.EventChallengeAdded, core.EventChallengeProgressed, core.EventOnboardingCompleted, core.EventProfileUpdated:
		ds.users[e.UserID] = struct{}{}
	}
}

// GetDailyActiveUsers returns the count of users who logged anything on day.
func (tm *TrackerMetrics) GetDailyActiveUsers(day string) int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	if ds, ok := tm.days[day]; ok {
		return len(ds.users)
	}
	return 0
}

// GetWinsByType returns the number of wins of type t logged on day.
func (tm *TrackerMetrics) GetWinsByType(day string, t core.WinType) int64 {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	if ds, ok := tm.days[day]; ok {
		return ds.winsByType[t]
	}
	return 0
}

// GetUniqueBadgeHolders returns how many users have unlocked badge.
func (tm *TrackerMetrics) GetUniqueBadgeHolders(badge core.BadgeID) int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.uniqueBadgeHolders[badge])
}

// GetPersistFailures returns dropped background writes per field set.
func (tm *TrackerMetrics) GetPersistFailures() map[string]int64 {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	out := make(map[string]int64, len(tm.persistFailures))
	for k, v := range tm.persistFailures {
		out[k] = v
	}
	return out
}

// Helper functions
func dayKey(t time.Time) string {
	return t.UTC().Format(core.DayLayout)
}

func getWeekKey(t time.Time) string {
	tt := t.UTC()
	year, week := tt.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func getMonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
