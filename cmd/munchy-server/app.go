package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"munchykit/adapters/jsonfile"
	mem "munchykit/adapters/memory"
	redisAdapter "munchykit/adapters/redis"
	sqlxAdapter "munchykit/adapters/sqlx"
	"munchykit/analytics"
	"munchykit/api/httpapi"
	"munchykit/config"
	"munchykit/core"
	"munchykit/engine"
	"munchykit/integrations/webhook"
	"munchykit/leaderboard"
	"munchykit/munchy"
	"munchykit/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Hub           *realtime.Hub
	Metrics       *analytics.TrackerMetrics
	Service       *engine.TrackerService
	Standings     *leaderboard.Standings
	Handler       http.Handler
	Server        *http.Server
	MetricsServer *MetricsServer
}

// MetricsServer serves the Prometheus endpoint on its own address.
type MetricsServer struct {
	*http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := os.Getenv("MUNCHY_CONFIG_FILE"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if cfg.Environment == config.EnvProduction {
		if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.Storage, func(), error) {
	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn("closing storage", "error", err)
			}
		}
	}
	return store, cleanup, nil
}

func provideRegistry(cfg *config.Config) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	if cfg.Metrics.CollectSystem {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return reg
}

func provideCollector(reg *prometheus.Registry) (*analytics.Collector, error) {
	return analytics.NewCollector(reg)
}

func provideTrackerMetrics() *analytics.TrackerMetrics {
	return analytics.NewTrackerMetrics()
}

func provideWebhookSink(cfg *config.Config, logger *slog.Logger) *webhook.Sink {
	wh := cfg.Integrations.Webhooks
	if len(wh.Endpoints) == 0 {
		return nil
	}
	events := make([]core.EventType, 0, len(wh.Events))
	for _, e := range wh.Events {
		events = append(events, core.EventType(e))
	}
	return webhook.New(wh.Endpoints,
		webhook.WithTimeout(wh.Timeout),
		webhook.WithEvents(events...),
		webhook.WithLogger(logger.With("component", "webhook")),
	)
}

func provideService(
	cfg *config.Config,
	logger *slog.Logger,
	hub *realtime.Hub,
	storage engine.Storage,
	metrics *analytics.TrackerMetrics,
	collector *analytics.Collector,
	sink *webhook.Sink,
) (*engine.TrackerService, func(), error) {
	loc, err := cfg.Tracker.Location()
	if err != nil {
		return nil, nil, fmt.Errorf("tracker timezone: %w", err)
	}
	hooks := []analytics.Hook{metrics, collector}
	if sink != nil {
		hooks = append(hooks, sink)
	}
	svc := munchy.New(
		munchy.WithStorage(storage),
		munchy.WithRealtime(hub),
		munchy.WithDispatchMode(engine.DispatchAsync),
		munchy.WithLogger(logger.With("component", "tracker")),
		munchy.WithLocation(loc),
		munchy.WithWriteTimeout(cfg.Tracker.WriteTimeout),
		munchy.WithSubscriber(func(s *engine.TrackerService) {
			analytics.Attach(s, analytics.NewBridge(hooks...))
		}),
	)
	return svc, svc.Close, nil
}

func provideStandings(svc *engine.TrackerService, logger *slog.Logger) *leaderboard.Standings {
	standings := leaderboard.NewStandings(svc, logger.With("component", "leaderboard"))
	analytics.Attach(svc, standings)
	return standings
}

func provideHandler(
	svc *engine.TrackerService,
	hub *realtime.Hub,
	metrics *analytics.TrackerMetrics,
	standings *leaderboard.Standings,
	cfg *config.Config,
) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Metrics:          metrics,
		Leaderboard:      standings,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// provideMetricsServer returns nil when metrics are disabled.
func provideMetricsServer(cfg *config.Config, reg *prometheus.Registry) *MetricsServer {
	if !cfg.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &MetricsServer{Server: &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}}
}

// setupLogging configures the logger based on configuration. The returned
// func closes the log file when output is "file".
func setupLogging(cfg *config.Config) (*slog.Logger, func(), error) {
	var (
		out     io.Writer = os.Stdout
		cleanup           = func() {}
	)
	switch cfg.Logging.Output {
	case "stderr":
		out = os.Stderr
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.Logging.File.Path,
			MaxSize:    cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAge:     cfg.Logging.File.MaxAgeDays,
			Compress:   cfg.Logging.File.Compress,
		}
		out = rotator
		cleanup = func() { _ = rotator.Close() }
	}

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(_ context.Context, cfg *config.Config) (engine.Storage, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis.Adapter())
	case "sql":
		return sqlxAdapter.New(cfg.Storage.SQL.Adapter())
	case "file":
		return jsonfile.New(cfg.Storage.File.Path)
	default:
		return nil, errors.New("unknown storage adapter: " + cfg.Storage.Adapter)
	}
}
