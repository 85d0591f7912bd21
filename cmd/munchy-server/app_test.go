package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"munchykit/adapters/jsonfile"
	mem "munchykit/adapters/memory"
	"munchykit/config"
	"munchykit/core"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestConvertAttributes(t *testing.T) {
	attrs := convertAttributes(map[string]string{"service": "munchy"})
	require.Len(t, attrs, 1)
	assert.Equal(t, "service", attrs[0].Key)
	assert.Equal(t, "munchy", attrs[0].Value.String())
	assert.Empty(t, convertAttributes(nil))
}

func TestSetupLogging_File(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Output = "file"
	cfg.Logging.File.Path = filepath.Join(t.TempDir(), "logs", "munchy.log")

	logger, cleanup, err := setupLogging(cfg)
	require.NoError(t, err)
	defer slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	logger.Info("hello from test")
	cleanup()

	data, err := os.ReadFile(cfg.Logging.File.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestSetupStorage(t *testing.T) {
	cfg := config.DefaultConfig()

	store, err := setupStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &mem.Store{}, store)

	cfg.Storage.Adapter = "file"
	cfg.Storage.File.Path = filepath.Join(t.TempDir(), "munchy.json")
	store, err = setupStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &jsonfile.Store{}, store)

	cfg.Storage.Adapter = "etcd"
	_, err = setupStorage(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown storage adapter")
}

func TestProvideWebhookSink(t *testing.T) {
	cfg := config.DefaultConfig()
	logger := slog.New(slog.DiscardHandler)
	assert.Nil(t, provideWebhookSink(cfg, logger))

	cfg.Integrations.Webhooks.Endpoints = []string{"http://example.invalid/hook"}
	cfg.Integrations.Webhooks.Events = []string{string(core.EventBadgeUnlocked)}
	sink := provideWebhookSink(cfg, logger)
	require.NotNil(t, sink)
	assert.True(t, sink.Accepts(core.EventBadgeUnlocked))
	assert.False(t, sink.Accepts(core.EventWinLogged))
}

func TestProvideMetricsServer(t *testing.T) {
	cfg := config.DefaultConfig()
	reg := provideRegistry(cfg)
	assert.Nil(t, provideMetricsServer(cfg, reg))

	cfg.Metrics.Enabled = true
	ms := provideMetricsServer(cfg, reg)
	require.NotNil(t, ms)
	assert.Equal(t, cfg.Metrics.Address, ms.Addr)

	collector, err := provideCollector(reg)
	require.NoError(t, err)
	collector.OnEvent(core.Event{Type: core.EventBadgeUnlocked, Badge: core.BadgeFirstStep})

	rec := httptest.NewRecorder()
	ms.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, cfg.Metrics.Path, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "munchy_badges_unlocked_total")
}

func TestBuildApp_ServesAPI(t *testing.T) {
	t.Setenv("MUNCHY_ENV", "testing")
	t.Setenv("MUNCHY_PROFILE", "")
	t.Setenv("MUNCHY_LOG_LEVEL", "error")
	t.Setenv("MUNCHY_STORAGE_ADAPTER", "memory")
	t.Setenv("MUNCHY_TRACKER_TIMEZONE", "UTC")

	app, cleanup, err := BuildApp(context.Background())
	require.NoError(t, err)
	defer cleanup()
	defer slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	assert.Equal(t, time.UTC, app.Service.Location())

	srv := httptest.NewServer(app.Handler)
	defer srv.Close()

	prefix := app.Config.Server.PathPrefix
	resp, err := http.Post(srv.URL+prefix+"/users/sam/wins", "application/json",
		strings.NewReader(`{"item":"Coke","category":"Sugary Drinks","type":"SKIP"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Eventually(t, func() bool {
		day := time.Now().UTC().Format(core.DayLayout)
		return app.Metrics.GetWinsByType(day, core.WinSkip) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = http.Get(srv.URL + prefix + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildApp_InvalidConfig(t *testing.T) {
	t.Setenv("MUNCHY_ENV", "testing")
	t.Setenv("MUNCHY_STORAGE_ADAPTER", "carrier-pigeon")

	_, _, err := BuildApp(context.Background())
	assert.Error(t, err)
}
