package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestAnswerJSONRoundTrip(t *testing.T) {
	in := OnboardingAnswers{
		QuestionName:          TextAnswer("Sam"),
		QuestionCurrentWeight: NumberAnswer(182.5),
		QuestionActivity:      SelectAnswer("Very Active"),
		QuestionVice:          MultiSelectAnswer("Fast Food", "Alcohol"),
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"activity":{"kind":"select","value":"Very Active"}`) {
		t.Fatalf("unexpected wire form %s", b)
	}
	var out OnboardingAnswers
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out[QuestionName].Text != "Sam" || out[QuestionCurrentWeight].Number != 182.5 {
		t.Fatalf("scalar answers lost: %+v", out)
	}
	if out[QuestionActivity].Choice() != "Very Active" {
		t.Fatalf("select lost: %+v", out[QuestionActivity])
	}
	if got := out[QuestionVice].Choices; len(got) != 2 || got[1] != "Alcohol" {
		t.Fatalf("multiselect lost: %v", got)
	}
}

func TestAnswerUnmarshalRejectsUnknownKind(t *testing.T) {
	var a Answer
	if err := json.Unmarshal([]byte(`{"kind":"slider","value":3}`), &a); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("want ErrInvalidAnswer, got %v", err)
	}
	if err := json.Unmarshal([]byte(`{"kind":"number","value":"three"}`), &a); !errors.Is(err, ErrInvalidAnswer) {
		t.Fatalf("want ErrInvalidAnswer, got %v", err)
	}
}

func TestValidateAnswers(t *testing.T) {
	good := OnboardingAnswers{
		QuestionName:       TextAnswer("Sam"),
		QuestionMotivation: MultiSelectAnswer("Saving Money"),
		QuestionCooking:    SelectAnswer("Often"),
	}
	if err := ValidateAnswers(good); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	bad := []OnboardingAnswers{
		{"favoriteColor": TextAnswer("blue")},
		{QuestionName: NumberAnswer(3)},
		{QuestionName: TextAnswer("Bartholomew the Third")},
		{QuestionVice: MultiSelectAnswer("Broccoli")},
		{QuestionCooking: {Kind: AnswerSelect}},
	}
	for i, a := range bad {
		if err := ValidateAnswers(a); !errors.Is(err, ErrInvalidAnswer) {
			t.Fatalf("case %d: want ErrInvalidAnswer, got %v", i, err)
		}
	}
}

func TestCompleteOnboarding(t *testing.T) {
	p := UserProfile{Streak: 2, LastLogDate: "2026-03-09", TotalMoneySaved: 10}
	next := CompleteOnboarding(p, OnboardingAnswers{
		QuestionName:          TextAnswer(" Sam "),
		QuestionCurrentWeight: NumberAnswer(190),
		QuestionGoalWeight:    NumberAnswer(170),
	})
	if !next.OnboardingComplete || next.Name != "Sam" || next.StartWeight != 190 || next.GoalWeight != 170 {
		t.Fatalf("unexpected profile %+v", next)
	}
	if next.LastLogDate != "2026-03-09" || next.Streak != 2 || next.TotalMoneySaved != 10 {
		t.Fatalf("onboarding touched tracking state: %+v", next)
	}
	if p.OnboardingComplete {
		t.Fatal("input modified")
	}
}

func TestCompleteOnboardingThenFirstWin(t *testing.T) {
	p := CompleteOnboarding(UserProfile{}, nil)
	if p.Name != "Friend" || p.OnboardingAnswers == nil {
		t.Fatalf("unexpected defaults %+v", p)
	}
	p, _ = ApplyWin(p, nil, skipWin("soda", 5, 300), testNow)
	if p.Streak != 1 {
		t.Fatalf("first win after onboarding: want streak 1, got %d", p.Streak)
	}
}

func TestDailyFocus(t *testing.T) {
	cases := []struct {
		answers OnboardingAnswers
		want    string
	}{
		{OnboardingAnswers{QuestionMotivation: MultiSelectAnswer("Better Sleep", "Saving Money")}, "Save $5 today by skipping that extra treat."},
		{OnboardingAnswers{QuestionMotivation: MultiSelectAnswer("Better Sleep")}, "No caffeine after 2 PM today!"},
		{OnboardingAnswers{QuestionMotivation: MultiSelectAnswer("Feeling Healthier")}, "Swap one processed snack for fruit."},
		{OnboardingAnswers{QuestionVice: MultiSelectAnswer("Alcohol")}, "Beat your temptation: Alcohol!"},
		{nil, "Beat your temptation: Snacks!"},
	}
	for i, c := range cases {
		if got := DailyFocus(UserProfile{OnboardingAnswers: c.answers}); got != c.want {
			t.Fatalf("case %d: got %q want %q", i, got, c.want)
		}
	}
}

func TestProfilePatch(t *testing.T) {
	name, avatar := "  Alex ", "🐻"
	patch := ProfilePatch{Name: &name, Avatar: &avatar}
	if err := patch.Validate(); err != nil {
		t.Fatal(err)
	}
	p := UpdateProfile(UserProfile{Name: "Sam", Streak: 3}, patch)
	if p.Name != "Alex" || p.Avatar != avatar || p.Streak != 3 {
		t.Fatalf("unexpected %+v", p)
	}

	long := "abcdefghijklm"
	if err := (ProfilePatch{Name: &long}).Validate(); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("want ErrInvalidProfile, got %v", err)
	}
	empty := " "
	if err := (ProfilePatch{Name: &empty}).Validate(); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("want ErrInvalidProfile, got %v", err)
	}
}
