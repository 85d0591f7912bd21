package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"munchykit/core"
)

// Outcome mirrors the mutation response: the user's state after the change
// plus every event the change produced.
type Outcome struct {
	Snapshot core.Snapshot `json:"snapshot"`
	Events   []core.Event  `json:"events"`
}

// BadgeStatus is one catalog entry with the user's unlock state.
type BadgeStatus struct {
	core.Badge
	Unlocked bool `json:"unlocked"`
}

// WeightInput is the body of POST /users/{id}/weights.
type WeightInput struct {
	Weight float64 `json:"weight"`
	Note   string  `json:"note,omitempty"`
}

// Standing is one leaderboard row. Value is dollars for savings and days
// for streak.
type Standing struct {
	Rank  int         `json:"rank"`
	User  core.UserID `json:"user"`
	Value float64     `json:"value"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is the error body returned by the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
