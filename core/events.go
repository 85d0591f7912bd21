package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventWinLogged           EventType = "win_logged"
	EventWeightLogged        EventType = "weight_logged"
	EventChallengeAdded      EventType = "challenge_added"
	EventChallengeProgressed EventType = "challenge_progressed"
	EventChallengeCompleted  EventType = "challenge_completed"
	EventBadgeUnlocked       EventType = "badge_unlocked"
	EventOnboardingCompleted EventType = "onboarding_completed"
	EventProfileUpdated      EventType = "profile_updated"
	EventPersistFailed       EventType = "persist_failed"
)

// Event represents an immutable domain event.
type Event struct {
	Type      EventType        `json:"type"`
	Time      time.Time        `json:"time"`
	UserID    UserID           `json:"user_id"`
	Win       *Win             `json:"win,omitempty"`
	Weight    *WeightEntry     `json:"weight,omitempty"`
	Challenge *CustomChallenge `json:"challenge,omitempty"`
	Badge     BadgeID          `json:"badge,omitempty"`
	Streak    int              `json:"streak,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

func NewWinLogged(user UserID, win Win, streak int, at time.Time) Event {
	return Event{Type: EventWinLogged, Time: at.UTC(), UserID: user, Win: &win, Streak: streak}
}

func NewWeightLogged(user UserID, entry WeightEntry, at time.Time) Event {
	return Event{Type: EventWeightLogged, Time: at.UTC(), UserID: user, Weight: &entry}
}

func NewChallengeEvent(typ EventType, user UserID, c CustomChallenge, at time.Time) Event {
	return Event{Type: typ, Time: at.UTC(), UserID: user, Challenge: &c}
}

func NewBadgeUnlocked(user UserID, badge BadgeID, at time.Time) Event {
	return Event{Type: EventBadgeUnlocked, Time: at.UTC(), UserID: user, Badge: badge}
}

func NewProfileEvent(typ EventType, user UserID, at time.Time) Event {
	return Event{Type: typ, Time: at.UTC(), UserID: user}
}

// NewPersistFailed reports a dropped background write of the named field set.
func NewPersistFailed(user UserID, kind string, err error, at time.Time) Event {
	return Event{Type: EventPersistFailed, Time: at.UTC(), UserID: user,
		Metadata: map[string]any{"kind": kind, "error": err.Error()}}
}
