// Package daemon manages the Stride daemon lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/stridefit/stride/internal/logger"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api" json:"api" yaml:"api"`
	Storage   StorageConfig   `toml:"storage" json:"storage" yaml:"storage"`
	Streak    StreakConfig    `toml:"streak" json:"streak" yaml:"streak"`
	Retry     RetryConfig     `toml:"retry" json:"retry" yaml:"retry"`
	Logging   logger.Config   `toml:"logging" json:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry" yaml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string   `toml:"host" json:"host" yaml:"host" validate:"required"`
	Port           int      `toml:"port" json:"port" yaml:"port" validate:"min=1,max=65535"`
	CORSOrigins    []string `toml:"cors_origins" json:"cors_origins" yaml:"cors_origins"`
	RequestTimeout Duration `toml:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst" yaml:"rate_burst" validate:"gte=0"`
}

// StorageConfig selects and tunes the persistence backend.
type StorageConfig struct {
	Driver      string   `toml:"driver" json:"driver" yaml:"driver" validate:"oneof=sqlite postgres memory"`
	Dir         string   `toml:"dir" json:"dir" yaml:"dir"`
	PostgresDSN string   `toml:"postgres_dsn" json:"postgres_dsn" yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
	MaxConns    int32    `toml:"max_conns" json:"max_conns" yaml:"max_conns" validate:"gte=0"`
	CacheSize   int      `toml:"cache_size" json:"cache_size" yaml:"cache_size" validate:"gte=0"`
	CacheTTL    Duration `toml:"cache_ttl" json:"cache_ttl" yaml:"cache_ttl"`
}

// StreakConfig tunes the streak engine and services.
type StreakConfig struct {
	DefaultTimeZone string `toml:"default_time_zone" json:"default_time_zone" yaml:"default_time_zone" validate:"required"`
	FreezeCap       int    `toml:"freeze_cap" json:"freeze_cap" yaml:"freeze_cap" validate:"gte=0"`
	MaxMerges       int    `toml:"max_merges" json:"max_merges" yaml:"max_merges" validate:"gte=0"`
}

// RetryConfig controls retries of transient storage failures.
type RetryConfig struct {
	MaxRetries int      `toml:"max_retries" json:"max_retries" yaml:"max_retries" validate:"gte=0"`
	BaseDelay  Duration `toml:"base_delay" json:"base_delay" yaml:"base_delay"`
	MaxDelay   Duration `toml:"max_delay" json:"max_delay" yaml:"max_delay"`
}

// TelemetryConfig controls metrics and health checks.
type TelemetryConfig struct {
	Prometheus     bool     `toml:"prometheus" json:"prometheus" yaml:"prometheus"`
	HealthInterval Duration `toml:"health_interval" json:"health_interval" yaml:"health_interval"`
}

// Duration is a time.Duration that reads and writes as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			CORSOrigins:    []string{"*"},
			RequestTimeout: Duration{15 * time.Second},
			RateLimit:      20,
			RateBurst:      40,
		},
		Storage: StorageConfig{
			Driver:    DriverSQLite,
			Dir:       strideHome(),
			MaxConns:  10,
			CacheSize: 1024,
			CacheTTL:  Duration{time.Minute},
		},
		Streak: StreakConfig{
			DefaultTimeZone: "UTC",
			FreezeCap:       3,
			MaxMerges:       5,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  Duration{50 * time.Millisecond},
			MaxDelay:   Duration{time.Second},
		},
		Logging: logger.DefaultConfig(),
		Telemetry: TelemetryConfig{
			Prometheus:     true,
			HealthInterval: Duration{30 * time.Second},
		},
	}
}

// LoadConfig reads $STRIDE_HOME/config.toml, falling back to defaults,
// then applies .env and STRIDE_* overrides and validates the result.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom is LoadConfig with an explicit file path.
func LoadConfigFrom(path string) (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to $STRIDE_HOME/config.toml.
func SaveConfig(cfg Config) error {
	return SaveConfigTo(ConfigPath(), cfg)
}

// SaveConfigTo writes the config to path.
func SaveConfigTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

var validate = validator.New()

// Validate checks struct constraints and the configured time zone.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Streak.DefaultTimeZone); err != nil {
		return fmt.Errorf("invalid config: streak.default_time_zone: %w", err)
	}
	return nil
}

// ─── Environment Overrides ──────────────────────────────────────────────────

type lookupFunc func(key string) (string, bool)

// applyEnv overrides file values with STRIDE_* variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *Duration) {
		if v, ok := lookup(key); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("STRIDE_API_HOST", &cfg.API.Host)
	num("STRIDE_API_PORT", &cfg.API.Port)
	if v, ok := lookup("STRIDE_API_CORS_ORIGINS"); ok {
		cfg.API.CORSOrigins = splitList(v)
	}
	dur("STRIDE_API_REQUEST_TIMEOUT", &cfg.API.RequestTimeout)

	str("STRIDE_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("STRIDE_STORAGE_DIR", &cfg.Storage.Dir)
	str("STRIDE_POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	num("STRIDE_CACHE_SIZE", &cfg.Storage.CacheSize)
	dur("STRIDE_CACHE_TTL", &cfg.Storage.CacheTTL)

	str("STRIDE_DEFAULT_TIME_ZONE", &cfg.Streak.DefaultTimeZone)
	num("STRIDE_FREEZE_CAP", &cfg.Streak.FreezeCap)

	num("STRIDE_RETRY_MAX", &cfg.Retry.MaxRetries)

	str("STRIDE_LOG_LEVEL", &cfg.Logging.Level)
	str("STRIDE_LOG_FORMAT", &cfg.Logging.Format)
	str("STRIDE_LOG_OUTPUT", &cfg.Logging.Output)

	flag("STRIDE_PROMETHEUS", &cfg.Telemetry.Prometheus)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ─── Paths ──────────────────────────────────────────────────────────────────

// strideHome returns the Stride data directory.
func strideHome() string {
	if env := os.Getenv("STRIDE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stride")
}

// StrideHome is exported for use by other packages.
func StrideHome() string {
	return strideHome()
}

// ConfigPath is the default config file location.
func ConfigPath() string {
	return filepath.Join(strideHome(), "config.toml")
}
