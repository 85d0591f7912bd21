package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"munchykit/analytics"
	"munchykit/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the tracker HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// LogWin records a skip, swap or lapse for a user.
func (c *Client) LogWin(ctx context.Context, userID string, draft core.WinDraft) (Outcome, error) {
	var out Outcome
	err := c.userCall(ctx, http.MethodPost, userID, "/wins", draft, &out)
	return out, err
}

// LogWeight records a weigh-in.
func (c *Client) LogWeight(ctx context.Context, userID string, weight float64, note string) (Outcome, error) {
	var out Outcome
	err := c.userCall(ctx, http.MethodPost, userID, "/weights", WeightInput{Weight: weight, Note: note}, &out)
	return out, err
}

// AddChallenge creates a custom challenge.
func (c *Client) AddChallenge(ctx context.Context, userID string, draft core.ChallengeDraft) (Outcome, error) {
	var out Outcome
	err := c.userCall(ctx, http.MethodPost, userID, "/challenges", draft, &out)
	return out, err
}

// ProgressChallenge advances one challenge. Unknown ids fail with a 404 APIError.
func (c *Client) ProgressChallenge(ctx context.Context, userID, challengeID string) (Outcome, error) {
	var out Outcome
	err := c.userCall(ctx, http.MethodPost, userID, "/challenges/"+url.PathEscape(challengeID)+"/progress", nil, &out)
	return out, err
}

// CompleteOnboarding submits the survey answers.
func (c *Client) CompleteOnboarding(ctx context.Context, userID string, answers core.OnboardingAnswers) (Outcome, error) {
	var out Outcome
	err := c.userCall(ctx, http.MethodPost, userID, "/onboarding", answers, &out)
	return out, err
}

// UpdateProfile changes the display name or avatar.
func (c *Client) UpdateProfile(ctx context.Context, userID string, patch core.ProfilePatch) (Outcome, error) {
	var out Outcome
	err := c.userCall(ctx, http.MethodPatch, userID, "/profile", patch, &out)
	return out, err
}

// GetUser fetches the user's profile, wins and weigh-ins.
func (c *Client) GetUser(ctx context.Context, userID string) (core.Snapshot, error) {
	var snap core.Snapshot
	err := c.userCall(ctx, http.MethodGet, userID, "", nil, &snap)
	return snap, err
}

// Badges lists the catalog with the user's unlock state.
func (c *Client) Badges(ctx context.Context, userID string) ([]BadgeStatus, error) {
	var out []BadgeStatus
	err := c.userCall(ctx, http.MethodGet, userID, "/badges", nil, &out)
	return out, err
}

// Stats fetches the dashboard summary.
func (c *Client) Stats(ctx context.Context, userID string) (analytics.Stats, error) {
	var out analytics.Stats
	err := c.userCall(ctx, http.MethodGet, userID, "/stats", nil, &out)
	return out, err
}

// Questions fetches the onboarding survey.
func (c *Client) Questions(ctx context.Context) ([]core.Question, error) {
	var out []core.Question
	err := c.call(ctx, http.MethodGet, c.baseURL+"/questions", nil, &out)
	return out, err
}

// Leaderboard returns the top entries for metric ("savings" or "streak").
// A limit of zero uses the server default.
func (c *Client) Leaderboard(ctx context.Context, metric string, limit int) ([]Standing, error) {
	target := c.baseURL + "/leaderboard/" + url.PathEscape(metric)
	if limit > 0 {
		target += "?limit=" + strconv.Itoa(limit)
	}
	var out []Standing
	err := c.call(ctx, http.MethodGet, target, nil, &out)
	return out, err
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.call(ctx, http.MethodGet, c.baseURL+"/healthz", nil, &hs)
	return hs, err
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// A non-empty userID limits the stream to that user.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, userID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if userID != "" {
		target += "?user=" + url.QueryEscape(userID)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) userCall(ctx context.Context, method, userID, suffix string, body, out any) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	return c.call(ctx, method, fmt.Sprintf("%s/users/%s%s", c.baseURL, url.PathEscape(userID), suffix), body, out)
}

func (c *Client) call(ctx context.Context, method, target string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
