package core

import (
	"errors"
	"strings"
)

// UserID uniquely identifies a tracked user.
type UserID string

// WinType classifies a logged win.
type WinType string

const (
	WinSkip   WinType = "SKIP"
	WinSwap   WinType = "SWAP"
	WinGaveIn WinType = "GAVE_IN"
)

// Valid reports whether t is one of the three known variants.
func (t WinType) Valid() bool {
	switch t {
	case WinSkip, WinSwap, WinGaveIn:
		return true
	}
	return false
}

// Categories is the fixed vocabulary offered when tracking a win, in display order.
var Categories = []string{
	"Sugary Drinks",
	"Fast Food",
	"Sweets/Candy",
	"Alcohol",
	"Salty Snacks",
	"Carbs",
	"Other",
}

// IsCategory reports whether c belongs to Categories.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Win is an immutable logged event.
type Win struct {
	ID            string  `json:"id"`
	Item          string  `json:"item"`
	Category      string  `json:"category,omitempty"`
	Replacement   string  `json:"replacement,omitempty"`
	CaloriesSaved float64 `json:"caloriesSaved"`
	MoneySaved    float64 `json:"moneySaved"`
	Timestamp     int64   `json:"timestamp"`
	Type          WinType `json:"type"`
	MascotMessage string  `json:"mascotMessage,omitempty"`
}

// WeightEntry is an immutable weight sample.
type WeightEntry struct {
	ID        string  `json:"id"`
	Weight    float64 `json:"weight"`
	Date      string  `json:"date"`
	Timestamp int64   `json:"timestamp"`
	Note      string  `json:"note,omitempty"`
	UserID    UserID  `json:"userId,omitempty"`
}

// ChallengeUnit denominates a custom challenge's progress.
type ChallengeUnit string

const (
	UnitTimes   ChallengeUnit = "times"
	UnitDollars ChallengeUnit = "dollars"
	UnitDays    ChallengeUnit = "days"
)

// CustomChallenge is a user-defined goal tracked as current/target progress.
type CustomChallenge struct {
	ID      string        `json:"id"`
	Title   string        `json:"title"`
	Target  float64       `json:"target"`
	Current float64       `json:"current"`
	Unit    ChallengeUnit `json:"unit"`
}

// Completed reports whether the challenge reached its target.
func (c CustomChallenge) Completed() bool { return c.Current >= c.Target }

// UserProfile is the per-user singleton carrying every aggregate field.
type UserProfile struct {
	Name               string            `json:"name"`
	StartWeight        float64           `json:"startWeight"`
	GoalWeight         float64           `json:"goalWeight"`
	Streak             int               `json:"streak"`
	LastLogDate        string            `json:"lastLogDate"`
	TotalMoneySaved    float64           `json:"totalMoneySaved"`
	TotalCaloriesSaved float64           `json:"totalCaloriesSaved"`
	OnboardingComplete bool              `json:"onboardingComplete"`
	OnboardingAnswers  OnboardingAnswers `json:"onboardingAnswers"`
	Avatar             string            `json:"avatar,omitempty"`
	CustomChallenges   []CustomChallenge `json:"customChallenges,omitempty"`
	CreatedAt          string            `json:"createdAt,omitempty"`
	UpdatedAt          string            `json:"updatedAt,omitempty"`
}

// Clone returns a copy sharing no slices or maps with p.
func (p UserProfile) Clone() UserProfile {
	cp := p
	cp.OnboardingAnswers = p.OnboardingAnswers.Clone()
	if p.CustomChallenges != nil {
		cp.CustomChallenges = append([]CustomChallenge(nil), p.CustomChallenges...)
	}
	return cp
}

// FindChallenge returns the challenge with the given id.
func (p UserProfile) FindChallenge(id string) (CustomChallenge, bool) {
	for _, c := range p.CustomChallenges {
		if c.ID == id {
			return c, true
		}
	}
	return CustomChallenge{}, false
}

// Snapshot groups everything stored for one user.
// Wins are newest-first, Weights are chronological.
type Snapshot struct {
	Profile UserProfile   `json:"profile"`
	Wins    []Win         `json:"wins"`
	Weights []WeightEntry `json:"weights"`
}

// NewSnapshot returns the empty defaults used for a user with nothing stored.
func NewSnapshot() Snapshot {
	return Snapshot{
		Profile: UserProfile{OnboardingAnswers: OnboardingAnswers{}},
		Wins:    []Win{},
		Weights: []WeightEntry{},
	}
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	cp := Snapshot{
		Profile: s.Profile.Clone(),
		Wins:    make([]Win, len(s.Wins)),
		Weights: make([]WeightEntry, len(s.Weights)),
	}
	copy(cp.Wins, s.Wins)
	copy(cp.Weights, s.Weights)
	if cp.Profile.OnboardingAnswers == nil {
		cp.Profile.OnboardingAnswers = OnboardingAnswers{}
	}
	return cp
}

// ErrInvalidUserID is returned for blank user identifiers.
var ErrInvalidUserID = errors.New("empty user id")

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", ErrInvalidUserID
	}
	return UserID(strings.ToLower(s)), nil
}
