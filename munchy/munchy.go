// Package munchy assembles a ready-to-use tracker service.
package munchy

import (
	"log/slog"
	"time"

	mem "munchykit/adapters/memory"
	"munchykit/core"
	"munchykit/engine"
	"munchykit/realtime"
)

// Option configures the tracker service builder.
type Option func(*config)

type config struct {
	storage      engine.Storage
	mode         engine.DispatchMode
	rules        engine.RuleEngine
	hub          *realtime.Hub
	logger       *slog.Logger
	clock        func() time.Time
	loc          *time.Location
	writeTimeout time.Duration
	hooks        []func(*engine.TrackerService)
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithRuleEngine sets the rule engine.
func WithRuleEngine(r engine.RuleEngine) Option { return func(c *config) { c.rules = r } }

// WithRules replaces the derived rules with the given ones.
func WithRules(rules ...core.Rule) Option {
	return func(c *config) { c.rules = engine.NewRuleEngine(rules...) }
}

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all tracker events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

func WithClock(now func() time.Time) Option { return func(c *config) { c.clock = now } }

// WithLocation sets the zone that defines a tracking day.
func WithLocation(loc *time.Location) Option { return func(c *config) { c.loc = loc } }

func WithWriteTimeout(d time.Duration) Option { return func(c *config) { c.writeTimeout = d } }

// WithSubscriber runs fn against the built service, typically to attach event sinks.
func WithSubscriber(fn func(*engine.TrackerService)) Option {
	return func(c *config) { c.hooks = append(c.hooks, fn) }
}

// New builds a configured TrackerService. If not provided, defaults are used:
//   - storage: in-memory
//   - rules: DefaultRuleEngine
//   - dispatch: async
//   - location: time.Local
func New(opts ...Option) *engine.TrackerService {
	cfg := &config{mode: engine.DispatchAsync, rules: engine.DefaultRuleEngine()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}

	var svcOpts []engine.Option
	if cfg.logger != nil {
		svcOpts = append(svcOpts, engine.WithLogger(cfg.logger))
	}
	if cfg.clock != nil {
		svcOpts = append(svcOpts, engine.WithClock(cfg.clock))
	}
	if cfg.loc != nil {
		svcOpts = append(svcOpts, engine.WithLocation(cfg.loc))
	}
	if cfg.writeTimeout > 0 {
		svcOpts = append(svcOpts, engine.WithWriteTimeout(cfg.writeTimeout))
	}

	svc := engine.NewTrackerService(cfg.storage, engine.NewEventBus(cfg.mode), cfg.rules, svcOpts...)
	if cfg.hub != nil {
		svc.SubscribeAll(cfg.hub.Broadcast)
	}
	for _, fn := range cfg.hooks {
		fn(svc)
	}
	return svc
}
