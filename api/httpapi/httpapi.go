package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	wsadapter "munchykit/adapters/websocket"
	"munchykit/analytics"
	"munchykit/core"
	"munchykit/engine"
	"munchykit/leaderboard"
	"munchykit/realtime"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Metrics, if set, exposes GET {prefix}/analytics/{period}.
	Metrics *analytics.TrackerMetrics
	// Leaderboard, if set, exposes GET {prefix}/leaderboard/{metric}?limit=.
	Leaderboard *leaderboard.Standings
}

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// NewMux builds an http.Handler exposing the tracker REST API and WebSocket stream.
// Routes:
//   - GET   {prefix}/healthz
//   - GET   {prefix}/questions | /categories | /badges
//   - GET   {prefix}/users/{id}
//   - GET   {prefix}/users/{id}/badges
//   - GET   {prefix}/users/{id}/stats
//   - POST  {prefix}/users/{id}/wins
//   - POST  {prefix}/users/{id}/weights
//   - POST  {prefix}/users/{id}/challenges
//   - POST  {prefix}/users/{id}/challenges/{cid}/progress
//   - POST  {prefix}/users/{id}/onboarding
//   - PATCH {prefix}/users/{id}/profile
//   - GET   {prefix}/analytics/{period}?key=
//   - GET   {prefix}/leaderboard/{metric}?limit=
//   - WS    {prefix}/ws?user=
func NewMux(svc *engine.TrackerService, hub *realtime.Hub, opts Options) http.Handler {
	mux := http.NewServeMux()
	route := func(method, path string, h http.HandlerFunc) {
		mux.HandleFunc(method+" "+withPrefix(opts.PathPrefix, path), h)
	}

	route(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, svc)
	})

	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub))
	}

	route(http.MethodGet, "/questions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, core.Questions())
	})
	route(http.MethodGet, "/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, core.Categories)
	})
	route(http.MethodGet, "/badges", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, core.Catalog())
	})

	route(http.MethodGet, "/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Snapshot(r.Context(), userID(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	route(http.MethodGet, "/users/{id}/badges", func(w http.ResponseWriter, r *http.Request) {
		set, err := svc.Badges(r.Context(), userID(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		type badgeStatus struct {
			core.Badge
			Unlocked bool `json:"unlocked"`
		}
		out := make([]badgeStatus, 0, len(core.Catalog()))
		for _, b := range core.Catalog() {
			out = append(out, badgeStatus{Badge: b, Unlocked: set.Has(b.ID)})
		}
		writeJSON(w, http.StatusOK, out)
	})

	route(http.MethodGet, "/users/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Snapshot(r.Context(), userID(r))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, analytics.Summarize(snap))
	})

	route(http.MethodPost, "/users/{id}/wins", func(w http.ResponseWriter, r *http.Request) {
		var draft core.WinDraft
		if !decodeBody(w, r, &draft) {
			return
		}
		out, err := svc.LogWin(r.Context(), userID(r), draft)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	})

	route(http.MethodPost, "/users/{id}/weights", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Weight float64 `json:"weight"`
			Note   string  `json:"note"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		out, err := svc.LogWeight(r.Context(), userID(r), body.Weight, body.Note)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	})

	route(http.MethodPost, "/users/{id}/challenges", func(w http.ResponseWriter, r *http.Request) {
		var draft core.ChallengeDraft
		if !decodeBody(w, r, &draft) {
			return
		}
		out, err := svc.AddChallenge(r.Context(), userID(r), draft)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	})

	route(http.MethodPost, "/users/{id}/challenges/{cid}/progress", func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.ProgressChallenge(r.Context(), userID(r), r.PathValue("cid"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	route(http.MethodPost, "/users/{id}/onboarding", func(w http.ResponseWriter, r *http.Request) {
		var answers core.OnboardingAnswers
		if !decodeBody(w, r, &answers) {
			return
		}
		out, err := svc.CompleteOnboarding(r.Context(), userID(r), answers)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	route(http.MethodPatch, "/users/{id}/profile", func(w http.ResponseWriter, r *http.Request) {
		var patch core.ProfilePatch
		if !decodeBody(w, r, &patch) {
			return
		}
		out, err := svc.UpdateProfile(r.Context(), userID(r), patch)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})

	if opts.Metrics != nil {
		route(http.MethodGet, "/analytics/{period}", func(w http.ResponseWriter, r *http.Request) {
			period := analytics.AggregationPeriod(r.PathValue("period"))
			key := r.URL.Query().Get("key")
			if key == "" {
				k, err := analytics.PeriodKey(period, time.Now())
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid_period", err.Error(), nil)
					return
				}
				key = k
			}
			data, err := opts.Metrics.Rollup(period, key)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_period", err.Error(), nil)
				return
			}
			writeJSON(w, http.StatusOK, data)
		})
	}

	if opts.Leaderboard != nil {
		route(http.MethodGet, "/leaderboard/{metric}", func(w http.ResponseWriter, r *http.Request) {
			metric := leaderboard.Metric(r.PathValue("metric"))
			limit := defaultLeaderboardLimit
			if raw := r.URL.Query().Get("limit"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n <= 0 {
					writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", nil)
					return
				}
				limit = min(n, maxLeaderboardLimit)
			}
			entries, err := opts.Leaderboard.Top(metric, limit)
			if err != nil {
				writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
				return
			}
			out := make([]standing, 0, len(entries))
			for _, e := range entries {
				out = append(out, standing{Rank: e.Rank, User: e.User, Value: metric.Value(e.Score)})
			}
			writeJSON(w, http.StatusOK, out)
		})
	}

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys, withPrefix(opts.PathPrefix, "/healthz"))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

// Helpers

// healthCheck verifies storage answers reads.
func healthCheck(w http.ResponseWriter, r *http.Request, svc *engine.TrackerService) {
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{"storage": "ok"},
	}
	code := http.StatusOK
	if err := svc.Ping(r.Context()); err != nil {
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"] = map[string]any{"storage": "failed"}
	}
	writeJSON(w, code, status)
}

func userID(r *http.Request) core.UserID { return core.UserID(r.PathValue("id")) }

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

// decodeBody reads one JSON value. It writes the error response itself.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", err.Error(), nil)
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "invalid_body", "request body is empty", nil)
		default:
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		}
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type standing struct {
	Rank  int         `json:"rank"`
	User  core.UserID `json:"user"`
	Value float64     `json:"value"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSON(w, status, apiError{Code: code, Message: msg, Details: details})
}

// writeServiceError maps engine and core errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidUserID):
		writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
	case errors.Is(err, engine.ErrChallengeNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, core.ErrInvalidDraft),
		errors.Is(err, core.ErrInvalidWeight),
		errors.Is(err, core.ErrInvalidChallenge),
		errors.Is(err, core.ErrInvalidAnswer),
		errors.Is(err, core.ErrInvalidProfile):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal", fmt.Sprintf("request failed: %v", err), nil)
	}
}
