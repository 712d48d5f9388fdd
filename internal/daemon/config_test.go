package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8420 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8420)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Errorf("Storage.Driver = %q, want %q", cfg.Storage.Driver, DriverSQLite)
	}
	if cfg.Retry.BaseDelay.Duration != 50*time.Millisecond {
		t.Errorf("Retry.BaseDelay = %v", cfg.Retry.BaseDelay)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.API.Port = 9000
	cfg.Streak.DefaultTimeZone = "Europe/Berlin"
	cfg.Storage.CacheTTL = Duration{2 * time.Minute}
	require.NoError(t, SaveConfigTo(path, cfg))

	got, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, got.API.Port)
	assert.Equal(t, "Europe/Berlin", got.Streak.DefaultTimeZone)
	assert.Equal(t, 2*time.Minute, got.Storage.CacheTTL.Duration)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	got, err := LoadConfigFrom(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().API.Port, got.API.Port)
}

func TestLoadConfig_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api\nport = "), 0o600))
	_, err := LoadConfigFrom(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STRIDE_API_PORT":         "7000",
		"STRIDE_API_CORS_ORIGINS": "https://a.example, https://b.example",
		"STRIDE_STORAGE_DRIVER":   "memory",
		"STRIDE_CACHE_TTL":        "5s",
		"STRIDE_LOG_LEVEL":        "debug",
		"STRIDE_PROMETHEUS":       "false",
	}
	cfg := DefaultConfig()
	err := applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.API.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORSOrigins)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Storage.CacheTTL.Duration)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Telemetry.Prometheus)
}

func TestApplyEnv_BadValues(t *testing.T) {
	env := map[string]string{"STRIDE_API_PORT": "abc", "STRIDE_CACHE_TTL": "soon"}
	cfg := DefaultConfig()
	err := applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "STRIDE_API_PORT")
	assert.ErrorContains(t, err, "STRIDE_CACHE_TTL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.API.Port = 0 }},
		{"bad driver", func(c *Config) { c.Storage.Driver = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }},
		{"bad zone", func(c *Config) { c.Streak.DefaultTimeZone = "Mars/Olympus" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Storage.Driver = DriverPostgres
	cfg.Storage.PostgresDSN = "postgres://localhost/stride"
	assert.NoError(t, cfg.Validate())
}

func TestStrideHome(t *testing.T) {
	t.Setenv("STRIDE_HOME", "/tmp/stride-test")
	assert.Equal(t, "/tmp/stride-test", StrideHome())
	assert.Equal(t, filepath.Join("/tmp/stride-test", "config.toml"), ConfigPath())
}
