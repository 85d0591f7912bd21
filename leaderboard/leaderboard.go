package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"munchykit/core"
)

// Entry is one user's position on a board. Rank is 1-based and only set by
// TopN and Standing.
type Entry struct {
	User  core.UserID `json:"user"`
	Score int64       `json:"score"`
	Rank  int         `json:"rank,omitempty"`
}

// Board keeps users ordered by score, highest first, ties broken by user id.
type Board interface {
	Update(user core.UserID, score int64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int, bool)
	Len() int
}

// Metric names a ranking.
type Metric string

const (
	// MetricSavings ranks by total money saved, scored in cents.
	MetricSavings Metric = "savings"
	// MetricStreak ranks by current streak in days.
	MetricStreak Metric = "streak"
)

// Metrics lists every supported ranking.
var Metrics = []Metric{MetricSavings, MetricStreak}

// Value converts a stored score back to the metric's natural unit.
func (m Metric) Value(score int64) float64 {
	if m == MetricSavings {
		return float64(score) / 100
	}
	return float64(score)
}

func (m Metric) score(p core.UserProfile) int64 {
	switch m {
	case MetricSavings:
		return int64(math.Round(p.TotalMoneySaved * 100))
	case MetricStreak:
		return int64(p.Streak)
	}
	return 0
}

// SnapshotSource yields the current state of a user.
type SnapshotSource interface {
	Snapshot(ctx context.Context, user core.UserID) (core.Snapshot, error)
}

// Standings keeps one board per metric in step with tracker events. Boards
// live in memory and fill as users log activity.
type Standings struct {
	source SnapshotSource
	boards map[Metric]Board
	logger *slog.Logger
}

// NewStandings builds empty skip-list boards for every metric.
func NewStandings(source SnapshotSource, logger *slog.Logger) *Standings {
	if logger == nil {
		logger = slog.Default()
	}
	boards := make(map[Metric]Board, len(Metrics))
	for _, m := range Metrics {
		boards[m] = NewSkipList()
	}
	return &Standings{source: source, boards: boards, logger: logger}
}

// OnEvent refreshes the user's scores after anything that moves the
// profile aggregates.
func (s *Standings) OnEvent(e core.Event) {
	switch e.Type {
	case core.EventWinLogged, core.EventOnboardingCompleted:
	default:
		return
	}
	snap, err := s.source.Snapshot(context.Background(), e.UserID)
	if err != nil {
		s.logger.Warn("leaderboard refresh failed", "user", e.UserID, "error", err)
		return
	}
	s.Record(e.UserID, snap.Profile)
}

// Record sets every board from the profile totals.
func (s *Standings) Record(user core.UserID, p core.UserProfile) {
	for m, b := range s.boards {
		b.Update(user, m.score(p))
	}
}

// Top returns the first n entries of a metric's board.
func (s *Standings) Top(m Metric, n int) ([]Entry, error) {
	b, ok := s.boards[m]
	if !ok {
		return nil, fmt.Errorf("unknown leaderboard metric %q", m)
	}
	return b.TopN(n), nil
}

// Standing returns the user's ranked entry on a metric's board.
func (s *Standings) Standing(m Metric, user core.UserID) (Entry, bool) {
	b, ok := s.boards[m]
	if !ok {
		return Entry{}, false
	}
	e, ok := b.Get(user)
	if !ok {
		return Entry{}, false
	}
	e.Rank, _ = b.Rank(user)
	return e, true
}
