package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"munchykit/core"
)

// Sink posts tracker events to configured HTTP endpoints.
// Delivery is synchronous; subscribe it to an async bus to keep requests off the hot path.
type Sink struct {
	client    *http.Client
	endpoints []string
	events    map[core.EventType]struct{}
	logger    *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.client = &http.Client{Timeout: d}
		}
	}
}

// WithEvents restricts delivery to the given event types. No types means all.
func WithEvents(types ...core.EventType) Option {
	return func(s *Sink) {
		if len(types) == 0 {
			s.events = nil
			return
		}
		s.events = make(map[core.EventType]struct{}, len(types))
		for _, t := range types {
			s.events[t] = struct{}{}
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// Accepts reports whether events of type t are delivered.
func (s *Sink) Accepts(t core.EventType) bool {
	if s.events == nil {
		return true
	}
	_, ok := s.events[t]
	return ok
}

// OnEvent posts the event JSON to all endpoints. Failures are logged and not retried.
func (s *Sink) OnEvent(e core.Event) {
	s.Deliver(context.Background(), e)
}

// Deliver posts e to every endpoint and returns how many accepted it with a 2xx.
func (s *Sink) Deliver(ctx context.Context, e core.Event) int {
	if len(s.endpoints) == 0 || !s.Accepts(e.Type) {
		return 0
	}
	body, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("webhook encode failed", "type", e.Type, "error", err)
		return 0
	}
	ok := 0
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, e.Type, body); err != nil {
			s.logger.Warn("webhook delivery failed", "endpoint", ep, "type", e.Type, "user", e.UserID, "error", err)
			continue
		}
		ok++
	}
	return ok
}

func (s *Sink) post(ctx context.Context, endpoint string, typ core.EventType, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Munchy-Event", string(typ))
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
