package core

import "context"

// Rule inspects a state transition and emits derived events.
type Rule interface {
	Evaluate(ctx context.Context, before, after Snapshot, trigger Event) []Event
}

// BadgeUnlockRule emits badge_unlocked for each badge the transition unlocked.
type BadgeUnlockRule struct{}

func (BadgeUnlockRule) Evaluate(_ context.Context, before, after Snapshot, trigger Event) []Event {
	prev := EvaluateBadges(before.Profile, before.Wins)
	next := EvaluateBadges(after.Profile, after.Wins)
	var out []Event
	for _, id := range NewlyUnlocked(prev, next) {
		out = append(out, NewBadgeUnlocked(trigger.UserID, id, trigger.Time))
	}
	return out
}

// ChallengeCompletedRule emits challenge_completed when a challenge crosses its target.
type ChallengeCompletedRule struct{}

func (ChallengeCompletedRule) Evaluate(_ context.Context, before, after Snapshot, trigger Event) []Event {
	var out []Event
	for _, c := range after.Profile.CustomChallenges {
		if !c.Completed() {
			continue
		}
		if prev, ok := before.Profile.FindChallenge(c.ID); ok && prev.Completed() {
			continue
		}
		out = append(out, NewChallengeEvent(EventChallengeCompleted, trigger.UserID, c, trigger.Time))
	}
	return out
}
