package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// ErrInvalidAnswer reports an onboarding answer that does not fit its question.
var ErrInvalidAnswer = errors.New("invalid onboarding answer")

// MaxNameLength is the display-name limit used by the profile editors.
const MaxNameLength = 12

// AnswerKind tags the variant held by an Answer.
type AnswerKind string

const (
	AnswerText        AnswerKind = "text"
	AnswerNumber      AnswerKind = "number"
	AnswerSelect      AnswerKind = "select"
	AnswerMultiSelect AnswerKind = "multiselect"
)

// Answer is a closed tagged variant: exactly one of Text, Number or Choices
// is meaningful, selected by Kind. Select answers keep their single choice
// in Choices[0].
type Answer struct {
	Kind    AnswerKind
	Text    string
	Number  float64
	Choices []string
}

func TextAnswer(s string) Answer { return Answer{Kind: AnswerText, Text: s} }
func NumberAnswer(n float64) Answer { return Answer{Kind: AnswerNumber, Number: n} }
func SelectAnswer(s string) Answer { return Answer{Kind: AnswerSelect, Choices: []string{s}} }
func MultiSelectAnswer(s ...string) Answer {
	return Answer{Kind: AnswerMultiSelect, Choices: append([]string{}, s...)}
}

// Choice returns the selected option of a select answer.
func (a Answer) Choice() string {
	if a.Kind != AnswerSelect || len(a.Choices) == 0 {
		return ""
	}
	return a.Choices[0]
}

type answerJSON struct {
	Kind  AnswerKind      `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	var v any
	switch a.Kind {
	case AnswerText:
		v = a.Text
	case AnswerNumber:
		v = a.Number
	case AnswerSelect:
		v = a.Choice()
	case AnswerMultiSelect:
		choices := a.Choices
		if choices == nil {
			choices = []string{}
		}
		v = choices
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidAnswer, a.Kind)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(answerJSON{Kind: a.Kind, Value: raw})
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	var in answerJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	out := Answer{Kind: in.Kind}
	var err error
	switch in.Kind {
	case AnswerText:
		err = json.Unmarshal(in.Value, &out.Text)
	case AnswerNumber:
		err = json.Unmarshal(in.Value, &out.Number)
	case AnswerSelect:
		var s string
		err = json.Unmarshal(in.Value, &s)
		out.Choices = []string{s}
	case AnswerMultiSelect:
		err = json.Unmarshal(in.Value, &out.Choices)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAnswer, in.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}
	*a = out
	return nil
}

// OnboardingAnswers maps question ids to answers.
type OnboardingAnswers map[string]Answer

// Clone copies the map and every choice slice.
func (o OnboardingAnswers) Clone() OnboardingAnswers {
	if o == nil {
		return nil
	}
	cp := make(OnboardingAnswers, len(o))
	for k, v := range o {
		if v.Choices != nil {
			v.Choices = append([]string(nil), v.Choices...)
		}
		cp[k] = v
	}
	return cp
}

// Question is one step of the onboarding survey.
type Question struct {
	ID        string     `json:"id"`
	Kind      AnswerKind `json:"kind"`
	Prompt    string     `json:"prompt"`
	Options   []string   `json:"options,omitempty"`
	MaxLength int        `json:"maxLength,omitempty"`
}

const (
	QuestionName          = "name"
	QuestionCurrentWeight = "currentWeight"
	QuestionGoalWeight    = "goalWeight"
	QuestionMotivation    = "motivation"
	QuestionVice          = "vice"
	QuestionWater         = "water"
	QuestionActivity      = "activity"
	QuestionCravings      = "cravings"
	QuestionCooking       = "cooking"
)

var questions = []Question{
	{ID: QuestionName, Kind: AnswerText, Prompt: "Let's get started! What should Munchy call you?", MaxLength: MaxNameLength},
	{ID: QuestionCurrentWeight, Kind: AnswerNumber, Prompt: "To track progress, what is your current weight (lbs)?"},
	{ID: QuestionGoalWeight, Kind: AnswerNumber, Prompt: "And what is your goal weight?"},
	{ID: QuestionMotivation, Kind: AnswerMultiSelect, Prompt: "What motivates you?",
		Options: []string{"Weight Loss", "Saving Money", "Feeling Healthier", "Better Sleep", "More Energy"}},
	{ID: QuestionVice, Kind: AnswerMultiSelect, Prompt: "What are your biggest temptations?",
		Options: []string{"Sugary Drinks", "Fast Food", "Sweets/Candy", "Late Night Snacking", "Alcohol", "Salty Snacks"}},
	{ID: QuestionWater, Kind: AnswerNumber, Prompt: "How many glasses of water do you drink daily?"},
	{ID: QuestionActivity, Kind: AnswerSelect, Prompt: "How active are you?",
		Options: []string{"Sedentary (Desk Job)", "Lightly Active", "Moderately Active", "Very Active"}},
	{ID: QuestionCravings, Kind: AnswerMultiSelect, Prompt: "When do cravings usually hit you?",
		Options: []string{"Mid-Morning", "Afternoon Slump", "Evening/TV Time", "Late Night", "Stressful Moments"}},
	{ID: QuestionCooking, Kind: AnswerSelect, Prompt: "Do you cook at home?",
		Options: []string{"Rarely", "Sometimes", "Often", "Always"}},
}

// Questions returns the onboarding survey in display order.
func Questions() []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	return out
}

func findQuestion(id string) (Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// ValidateAnswers checks every answer against the survey catalog.
func ValidateAnswers(answers OnboardingAnswers) error {
	var errs []error
	for id, a := range answers {
		q, ok := findQuestion(id)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: unknown question %q", ErrInvalidAnswer, id))
			continue
		}
		if a.Kind != q.Kind {
			errs = append(errs, fmt.Errorf("%w: %s expects %s, got %s", ErrInvalidAnswer, id, q.Kind, a.Kind))
			continue
		}
		if q.MaxLength > 0 && utf8.RuneCountInString(a.Text) > q.MaxLength {
			errs = append(errs, fmt.Errorf("%w: %s longer than %d characters", ErrInvalidAnswer, id, q.MaxLength))
		}
		for _, c := range a.Choices {
			if !slices.Contains(q.Options, c) {
				errs = append(errs, fmt.Errorf("%w: %s has no option %q", ErrInvalidAnswer, id, c))
			}
		}
		if a.Kind == AnswerSelect && len(a.Choices) != 1 {
			errs = append(errs, fmt.Errorf("%w: %s needs exactly one choice", ErrInvalidAnswer, id))
		}
	}
	return errors.Join(errs...)
}

// CompleteOnboarding folds survey answers into the profile. LastLogDate is
// left alone: only logged wins move the streak window.
func CompleteOnboarding(p UserProfile, answers OnboardingAnswers) UserProfile {
	next := p.Clone()
	name := strings.TrimSpace(answers[QuestionName].Text)
	if name == "" {
		name = "Friend"
	}
	next.Name = name
	next.StartWeight = answers[QuestionCurrentWeight].Number
	next.GoalWeight = answers[QuestionGoalWeight].Number
	next.OnboardingAnswers = answers.Clone()
	if next.OnboardingAnswers == nil {
		next.OnboardingAnswers = OnboardingAnswers{}
	}
	next.OnboardingComplete = true
	return next
}

// Vices returns the selected temptations, defaulting to "Snacks".
func (p UserProfile) Vices() []string {
	if v := p.OnboardingAnswers[QuestionVice].Choices; len(v) > 0 {
		return v
	}
	return []string{"Snacks"}
}

// DailyFocus is the dashboard tip derived from the survey motivations.
func DailyFocus(p UserProfile) string {
	motivation := p.OnboardingAnswers[QuestionMotivation].Choices
	switch {
	case slices.Contains(motivation, "Saving Money"):
		return "Save $5 today by skipping that extra treat."
	case slices.Contains(motivation, "Better Sleep"):
		return "No caffeine after 2 PM today!"
	case slices.Contains(motivation, "Feeling Healthier"):
		return "Swap one processed snack for fruit."
	}
	return fmt.Sprintf("Beat your temptation: %s!", p.Vices()[0])
}

// ErrInvalidProfile reports a rejected profile patch.
var ErrInvalidProfile = errors.New("invalid profile")

// ProfilePatch carries the user-editable profile fields; nil means unchanged.
type ProfilePatch struct {
	Name   *string `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// Validate enforces the display-name convention.
func (pp ProfilePatch) Validate() error {
	if pp.Name == nil {
		return nil
	}
	name := strings.TrimSpace(*pp.Name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidProfile)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidProfile, MaxNameLength)
	}
	return nil
}

// UpdateProfile applies a patch.
func UpdateProfile(p UserProfile, patch ProfilePatch) UserProfile {
	next := p.Clone()
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Avatar != nil {
		next.Avatar = *patch.Avatar
	}
	return next
}
