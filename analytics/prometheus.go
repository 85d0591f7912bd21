package analytics

import (
	"github.com/prometheus/client_golang/prometheus"

	"munchykit/core"
)

// Collector exports tracker events as Prometheus metrics.
type Collector struct {
	wins            *prometheus.CounterVec
	moneySaved      prometheus.Counter
	moneyLost       prometheus.Counter
	caloriesSaved   prometheus.Counter
	weighIns        prometheus.Counter
	badges          *prometheus.CounterVec
	challenges      *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	streak          prometheus.Histogram
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		wins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "munchy", Name: "wins_total", Help: "Logged wins by type.",
		}, []string{"type"}),
		moneySaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "munchy", Name: "money_saved_dollars_total", Help: "Money saved by skips and swaps.",
		}),
		moneyLost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "munchy", Name: "money_lost_dollars_total", Help: "Money spent on lapses.",
		}),
		caloriesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "munchy", Name: "calories_saved_total", Help: "Calories avoided.",
		}),
		weighIns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "munchy", Name: "weigh_ins_total", Help: "Weight entries logged.",
		}),
		badges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "munchy", Name: "badges_unlocked_total", Help: "Badge unlock transitions.",
		}, []string{"badge"}),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "munchy", Name: "challenge_events_total", Help: "Custom challenge lifecycle events.",
		}, []string{"event"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "munchy", Name: "persist_failures_total", Help: "Background writes that failed.",
		}, []string{"kind"}),
		streak: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "munchy", Name: "streak_days", Help: "Streak length after each win.",
			Buckets: []float64{1, 2, 3, 5, 7, 14, 30, 60, 100},
		}),
	}
	for _, m := range []prometheus.Collector{
		c.wins, c.moneySaved, c.moneyLost, c.caloriesSaved, c.weighIns,
		c.badges, c.challenges, c.persistFailures, c.streak,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) OnEvent(e core.Event) {
	switch e.Type {
	case core.EventWinLogged:
		if e.Win == nil {
			return
		}
		c.wins.WithLabelValues(string(e.Win.Type)).Inc()
		if e.Win.MoneySaved >= 0 {
			c.moneySaved.Add(e.Win.MoneySaved)
		} else {
			c.moneyLost.Add(-e.Win.MoneySaved)
		}
		if e.Win.CaloriesSaved > 0 {
			c.caloriesSaved.Add(e.Win.CaloriesSaved)
		}
		c.streak.Observe(float64(e.Streak))
	case core.EventWeightLogged:
		c.weighIns.Inc()
	case core.EventBadgeUnlocked:
		c.badges.WithLabelValues(string(e.Badge)).Inc()
	case core.EventChallengeAdded, core.EventChallengeProgressed, core.EventChallengeCompleted:
		c.challenges.WithLabelValues(string(e.Type)).Inc()
	case core.EventPersistFailed:
		kind, _ := e.Metadata["kind"].(string)
		c.persistFailures.WithLabelValues(kind).Inc()
	}
}
