package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidDraft reports a win submission missing required fields.
var ErrInvalidDraft = errors.New("invalid win")

// ErrInvalidChallenge reports a rejected custom challenge.
var ErrInvalidChallenge = errors.New("invalid challenge")

// ErrInvalidWeight reports a weigh-in that is not a positive finite number.
var ErrInvalidWeight = errors.New("invalid weight")

// DefaultMascotMessage is attached to wins submitted without one.
const DefaultMascotMessage = "Great job!"

// NewID returns a time-ordered unique identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Estimate returns the default cost and calories for a win type.
func Estimate(t WinType) (cost, calories float64) {
	if t == WinGaveIn {
		return 8, 0
	}
	return 5, 300
}

// ParseAmount coerces user input to a finite number, mapping anything
// malformed to zero.
func ParseAmount(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ValidateWeight accepts positive finite weigh-ins.
func ValidateWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidWeight, w)
	}
	return nil
}

// WinDraft is a win as submitted by a client, before sign rules and ids.
// A nil Cost or Calories falls back to Estimate.
type WinDraft struct {
	Item          string   `json:"item"`
	Category      string   `json:"category"`
	Replacement   string   `json:"replacement,omitempty"`
	Type          WinType  `json:"type"`
	Cost          *float64 `json:"cost,omitempty"`
	Calories      *float64 `json:"calories,omitempty"`
	MascotMessage string   `json:"mascotMessage,omitempty"`
}

// Validate rejects drafts the tracking form would not submit.
func (d WinDraft) Validate() error {
	var errs []string
	if strings.TrimSpace(d.Item) == "" {
		errs = append(errs, "item is required")
	}
	if strings.TrimSpace(d.Category) == "" {
		errs = append(errs, "category is required")
	} else if !IsCategory(d.Category) {
		errs = append(errs, fmt.Sprintf("unknown category %q", d.Category))
	}
	if !d.Type.Valid() {
		errs = append(errs, fmt.Sprintf("unknown type %q", d.Type))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDraft, strings.Join(errs, "; "))
	}
	return nil
}

// BuildWin turns a validated draft into an immutable Win stamped at now.
// GAVE_IN wins carry a negative money delta and no calories.
func BuildWin(d WinDraft, now time.Time) Win {
	cost, calories := Estimate(d.Type)
	if d.Cost != nil {
		cost = finite(*d.Cost)
	}
	if d.Calories != nil {
		calories = finite(*d.Calories)
	}
	cost = math.Abs(cost)

	w := Win{
		ID:            NewID(),
		Item:          strings.TrimSpace(d.Item),
		Category:      d.Category,
		Timestamp:     now.UnixMilli(),
		Type:          d.Type,
		MascotMessage: d.MascotMessage,
	}
	if w.MascotMessage == "" {
		w.MascotMessage = DefaultMascotMessage
	}
	switch d.Type {
	case WinGaveIn:
		w.MoneySaved = -cost
		w.CaloriesSaved = 0
	default:
		w.MoneySaved = cost
		w.CaloriesSaved = max(calories, 0)
	}
	if d.Type == WinSwap {
		w.Replacement = strings.TrimSpace(d.Replacement)
	}
	return w
}

// ChallengeDraft is a custom challenge as submitted by a client.
type ChallengeDraft struct {
	Title  string        `json:"title"`
	Target float64       `json:"target"`
	Unit   ChallengeUnit `json:"unit"`
}

// DefaultChallengeTarget replaces a missing or non-positive target.
const DefaultChallengeTarget = 5

// NewChallenge validates the draft and returns a fresh challenge at zero progress.
func NewChallenge(d ChallengeDraft) (CustomChallenge, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return CustomChallenge{}, fmt.Errorf("%w: title is required", ErrInvalidChallenge)
	}
	target := finite(d.Target)
	if target <= 0 {
		target = DefaultChallengeTarget
	}
	unit := d.Unit
	if strings.TrimSpace(string(unit)) == "" {
		unit = UnitTimes
	}
	return CustomChallenge{
		ID:     NewID(),
		Title:  title,
		Target: target,
		Unit:   unit,
	}, nil
}
