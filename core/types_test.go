package core

import (
	"encoding/json"
	"testing"
)

func TestNormalizeUserID(t *testing.T) {
	id, err := NormalizeUserID(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeUserID("   "); err == nil {
		t.Fatalf("expected empty error")
	}
}

func TestWinTypeValid(t *testing.T) {
	for _, wt := range []WinType{WinSkip, WinSwap, WinGaveIn} {
		if !wt.Valid() {
			t.Fatalf("%s should be valid", wt)
		}
	}
	if WinType("skip").Valid() || WinType("").Valid() {
		t.Fatal("unexpected valid type")
	}
}

func TestIsCategory(t *testing.T) {
	if !IsCategory("Sugary Drinks") || !IsCategory("Other") {
		t.Fatal("expected known categories")
	}
	if IsCategory("sugary drinks") || IsCategory("Vegetables") {
		t.Fatal("unexpected category match")
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	s := NewSnapshot()
	s.Wins = append(s.Wins, Win{ID: "w1"})
	s.Profile.CustomChallenges = []CustomChallenge{{ID: "c1", Current: 1}}
	s.Profile.OnboardingAnswers["vice"] = MultiSelectAnswer("Fast Food")

	cp := s.Clone()
	cp.Wins[0].ID = "changed"
	cp.Profile.CustomChallenges[0].Current = 9
	cp.Profile.OnboardingAnswers["vice"].Choices[0] = "Alcohol"

	if s.Wins[0].ID != "w1" {
		t.Fatal("wins shared")
	}
	if s.Profile.CustomChallenges[0].Current != 1 {
		t.Fatal("challenges shared")
	}
	if s.Profile.OnboardingAnswers["vice"].Choices[0] != "Fast Food" {
		t.Fatal("answers shared")
	}
}

func TestProfileJSONFieldNames(t *testing.T) {
	p := UserProfile{Name: "Sam", Streak: 2, LastLogDate: "2026-03-10", TotalMoneySaved: 5, OnboardingComplete: true}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"name", "streak", "lastLogDate", "totalMoneySaved", "onboardingComplete"} {
		if _, ok := raw[k]; !ok {
			t.Fatalf("missing field %q in %s", k, b)
		}
	}
}

func TestChallengeCompleted(t *testing.T) {
	if (CustomChallenge{Target: 5, Current: 4}).Completed() {
		t.Fatal("4/5 is not complete")
	}
	if !(CustomChallenge{Target: 5, Current: 5}).Completed() {
		t.Fatal("5/5 is complete")
	}
}
