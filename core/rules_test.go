package core

import (
	"context"
	"testing"
)

func TestBadgeUnlockRule(t *testing.T) {
	before := NewSnapshot()
	after := before.Clone()
	after.Profile, after.Wins = ApplyWin(after.Profile, after.Wins, skipWin("soda", 60, 300), testNow)
	trigger := NewWinLogged("alice", after.Wins[0], after.Profile.Streak, testNow)

	got := BadgeUnlockRule{}.Evaluate(context.Background(), before, after, trigger)
	if len(got) != 2 {
		t.Fatalf("want first_step and money_bags, got %+v", got)
	}
	if got[0].Badge != BadgeFirstStep || got[1].Badge != BadgeMoneyBags {
		t.Fatalf("unexpected order %v %v", got[0].Badge, got[1].Badge)
	}
	if got[0].Type != EventBadgeUnlocked || got[0].UserID != "alice" {
		t.Fatalf("unexpected event %+v", got[0])
	}

	again := BadgeUnlockRule{}.Evaluate(context.Background(), after, after, trigger)
	if len(again) != 0 {
		t.Fatalf("no transition should emit nothing, got %+v", again)
	}
}

func TestChallengeCompletedRule(t *testing.T) {
	before := NewSnapshot()
	before.Profile.CustomChallenges = []CustomChallenge{
		{ID: "a", Target: 2, Current: 1, Unit: UnitTimes},
		{ID: "b", Target: 1, Current: 1, Unit: UnitTimes},
	}
	after := before.Clone()
	after.Profile, after.Wins = ApplyWin(after.Profile, after.Wins, skipWin("x", 1, 1), testNow)
	trigger := NewWinLogged("alice", after.Wins[0], 1, testNow)

	got := ChallengeCompletedRule{}.Evaluate(context.Background(), before, after, trigger)
	if len(got) != 1 || got[0].Challenge.ID != "a" || got[0].Type != EventChallengeCompleted {
		t.Fatalf("want only a to complete, got %+v", got)
	}
}
