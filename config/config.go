package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"munchykit/adapters/redis"
	"munchykit/adapters/sqlx"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" env:"MUNCHY_ENV"`
	Profile     string      `json:"profile" env:"MUNCHY_PROFILE"`

	Server  ServerConfig  `json:"server"`
	Storage StorageConfig `json:"storage"`
	Tracker TrackerConfig `json:"tracker"`
	Logging LoggingConfig `json:"logging"`

	// Metrics and monitoring
	Metrics MetricsConfig `json:"metrics"`

	Security     SecurityConfig     `json:"security"`
	Integrations IntegrationsConfig `json:"integrations"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" env:"MUNCHY_SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" env:"MUNCHY_SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" env:"MUNCHY_SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"MUNCHY_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"MUNCHY_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"MUNCHY_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"MUNCHY_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"MUNCHY_SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string      `json:"adapter" env:"MUNCHY_STORAGE_ADAPTER"`
	Redis   RedisConfig `json:"redis,omitempty"`
	SQL     SQLConfig   `json:"sql,omitempty"`
	File    FileConfig  `json:"file,omitempty"`
}

// RedisConfig mirrors redis.Config with file and env bindings.
type RedisConfig struct {
	Addr         string        `json:"addr" env:"MUNCHY_STORAGE_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" env:"MUNCHY_STORAGE_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"MUNCHY_STORAGE_REDIS_DB"`
	PoolSize     int           `json:"pool_size" env:"MUNCHY_STORAGE_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"MUNCHY_STORAGE_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"MUNCHY_STORAGE_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"MUNCHY_STORAGE_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"MUNCHY_STORAGE_REDIS_WRITE_TIMEOUT"`
	KeyPrefix    string        `json:"key_prefix" env:"MUNCHY_STORAGE_REDIS_KEY_PREFIX"`
}

func redisFromAdapter(c redis.Config) RedisConfig {
	return RedisConfig(c)
}

// Adapter converts to the redis adapter config.
func (r RedisConfig) Adapter() redis.Config {
	return redis.Config(r)
}

// SQLConfig mirrors sqlx.Config with file and env bindings.
type SQLConfig struct {
	Driver          string        `json:"driver" env:"MUNCHY_STORAGE_SQL_DRIVER"`
	DSN             string        `json:"dsn,omitempty" env:"MUNCHY_STORAGE_SQL_DSN"`
	MaxOpenConns    int           `json:"max_open_conns" env:"MUNCHY_STORAGE_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"MUNCHY_STORAGE_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"MUNCHY_STORAGE_SQL_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `json:"auto_migrate" env:"MUNCHY_STORAGE_SQL_AUTO_MIGRATE"`
}

func sqlFromAdapter(c sqlx.Config) SQLConfig {
	return SQLConfig{
		Driver:          string(c.Driver),
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		AutoMigrate:     c.AutoMigrate,
	}
}

// Adapter converts to the sqlx adapter config.
func (s SQLConfig) Adapter() sqlx.Config {
	return sqlx.Config{
		Driver:          sqlx.Driver(s.Driver),
		DSN:             s.DSN,
		MaxOpenConns:    s.MaxOpenConns,
		MaxIdleConns:    s.MaxIdleConns,
		ConnMaxLifetime: s.ConnMaxLifetime,
		AutoMigrate:     s.AutoMigrate,
	}
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" env:"MUNCHY_STORAGE_FILE_PATH"`
}

// TrackerConfig controls how the tracker service interprets time and writes.
type TrackerConfig struct {
	// Timezone is an IANA zone name ("Local" uses the host zone). It decides
	// where one tracking day ends and the next begins.
	Timezone     string        `json:"timezone" env:"MUNCHY_TRACKER_TIMEZONE"`
	WriteTimeout time.Duration `json:"write_timeout" env:"MUNCHY_TRACKER_WRITE_TIMEOUT"`
}

// Location resolves Timezone.
func (t TrackerConfig) Location() (*time.Location, error) {
	if t.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(t.Timezone)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" env:"MUNCHY_LOG_LEVEL"`
	Format     string            `json:"format" env:"MUNCHY_LOG_FORMAT"`
	Output     string            `json:"output" env:"MUNCHY_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" env:"MUNCHY_LOG_ATTRIBUTES" envKeyValSeparator:"="`
	File       LogFileConfig     `json:"file,omitempty"`
}

// LogFileConfig drives log rotation when Output is "file".
type LogFileConfig struct {
	Path       string `json:"path" env:"MUNCHY_LOG_FILE_PATH"`
	MaxSizeMB  int    `json:"max_size_mb" env:"MUNCHY_LOG_FILE_MAX_SIZE_MB"`
	MaxBackups int    `json:"max_backups" env:"MUNCHY_LOG_FILE_MAX_BACKUPS"`
	MaxAgeDays int    `json:"max_age_days" env:"MUNCHY_LOG_FILE_MAX_AGE_DAYS"`
	Compress   bool   `json:"compress" env:"MUNCHY_LOG_FILE_COMPRESS"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled       bool   `json:"enabled" env:"MUNCHY_METRICS_ENABLED"`
	Address       string `json:"address" env:"MUNCHY_METRICS_ADDR"`
	Path          string `json:"path" env:"MUNCHY_METRICS_PATH"`
	CollectSystem bool   `json:"collect_system" env:"MUNCHY_METRICS_COLLECT_SYSTEM"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" env:"MUNCHY_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty"`
	APIKeys         []string        `json:"api_keys,omitempty" env:"MUNCHY_SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" env:"MUNCHY_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" env:"MUNCHY_SECURITY_RATE_LIMIT_BURST"`
}

// IntegrationsConfig holds outbound integrations.
type IntegrationsConfig struct {
	Webhooks WebhookConfig `json:"webhooks"`
}

// WebhookConfig lists endpoints that receive tracker events as JSON POSTs.
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" env:"MUNCHY_WEBHOOK_ENDPOINTS"`
	Events    []string      `json:"events,omitempty" env:"MUNCHY_WEBHOOK_EVENTS"`
	Timeout   time.Duration `json:"timeout" env:"MUNCHY_WEBHOOK_TIMEOUT"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if p := os.Getenv("MUNCHY_PROFILE"); p != "" {
		profile, err := profileConfig(p)
		if err != nil {
			return nil, err
		}
		cfg = profile
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if !strings.HasSuffix(strings.ToLower(cleanPath), ".json") {
		return errors.New("config file must have .json extension")
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Environment variables override file values
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redisFromAdapter(redis.DefaultConfig()),
			SQL:     sqlFromAdapter(sqlx.DefaultConfig(sqlx.DriverPostgres)),
			File: FileConfig{
				Path: "./data/munchy.json",
			},
		},
		Tracker: TrackerConfig{
			Timezone:     "Local",
			WriteTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: LogFileConfig{
				Path:       "./logs/munchy.log",
				MaxSizeMB:  100,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			Address:       ":9090",
			Path:          "/metrics",
			CollectSystem: true,
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
			APIKeys: []string{},
		},
		Integrations: IntegrationsConfig{
			Webhooks: WebhookConfig{
				Timeout: 2 * time.Second,
			},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	sections := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Validate},
		{"storage", c.Storage.Validate},
		{"tracker", c.Tracker.Validate},
		{"logging", c.Logging.Validate},
		{"metrics", c.Metrics.Validate},
		{"security", c.Security.Validate},
		{"integrations", c.Integrations.Validate},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", s.name, err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		redacted := make([]string, len(cfg.Security.APIKeys))
		for i := range redacted {
			redacted[i] = "[REDACTED]"
		}
		cfg.Security.APIKeys = redacted
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
