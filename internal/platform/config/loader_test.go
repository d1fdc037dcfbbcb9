package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformerrors "carscan-server/internal/platform/errors"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoader_Load(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "carscan.yaml")
	configContent := `
server:
  ip: "127.0.0.1"
  port: 8080
  session_ttl: 2h
log:
  log_level: "debug"
  log_dir: "/tmp/logs"
  log_file: "test.log"
detection:
  url: "http://localhost:9000/predict"
  fallback_enabled: false
session_store:
  driver: redis
  redis:
    addr: "redis:6379"
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0o644))

	res, err := NewLoader().WithDotEnv(false).WithEnv(noEnv).WithPath(configFile).Load()
	require.NoError(t, err)
	cfg := res.Config

	assert.Equal(t, configFile, res.Path)
	assert.Equal(t, "127.0.0.1", cfg.Server.IP)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Server.SessionTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "http://localhost:9000/predict", cfg.Detection.URL)
	assert.False(t, cfg.Detection.FallbackEnabled)
	assert.Equal(t, "redis", cfg.SessionStore.Driver)
	assert.Equal(t, "redis:6379", cfg.SessionStore.Redis.Addr)
	// untouched sections keep defaults
	assert.Equal(t, "carscan:session", cfg.SessionStore.Redis.Prefix)
	assert.Equal(t, int64(DefaultMaxFileSize), cfg.Upload.MaxFileSize)
	assert.Equal(t, "ru", cfg.Scan.Locale)
}

func TestLoader_DefaultsWhenFileMissing(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(wd)

	res, err := NewLoader().WithDotEnv(false).WithEnv(noEnv).Load()
	require.NoError(t, err)
	assert.Empty(t, res.Path)
	assert.Equal(t, DefaultDetectionURL, res.Config.Detection.URL)
	assert.True(t, res.Config.Detection.FallbackEnabled)
}

func TestLoader_ExplicitPathMissing(t *testing.T) {
	_, err := NewLoader().WithDotEnv(false).WithEnv(noEnv).WithPath(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
}

func TestLoader_EnvOverrides(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("server:\n  port: 8080\n"), 0o644))

	res, err := NewLoader().WithDotEnv(false).WithPath(configFile).WithEnv(envMap(map[string]string{
		"CARSCAN_PORT":             "9090",
		"CARSCAN_DETECTION_URL":    "http://stub/predict",
		"CARSCAN_STORE_DRIVER":     "sqlite",
		"CARSCAN_FALLBACK_ENABLED": "false",
		"CARSCAN_LOCALE":           "en",
	})).Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, res.Config.Server.Port)
	assert.Equal(t, "http://stub/predict", res.Config.Detection.URL)
	assert.Equal(t, "sqlite", res.Config.SessionStore.Driver)
	assert.False(t, res.Config.Detection.FallbackEnabled)
	assert.Equal(t, "en", res.Config.Scan.Locale)
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"invalid server port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"zero port", func(c *Config) { c.Server.Port = 0 }, true},
		{"empty detection url", func(c *Config) { c.Detection.URL = " " }, true},
		{"unknown driver", func(c *Config) { c.SessionStore.Driver = "etcd" }, true},
		{"unknown locale", func(c *Config) { c.Scan.Locale = "de" }, true},
		{"non-positive upload cap", func(c *Config) { c.Upload.MaxFileSize = 0 }, true},
		{"zero detection workers", func(c *Config) { c.Detection.MaxConcurrent = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := loader.validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoader_BadEnvPort(t *testing.T) {
	_, err := NewLoader().WithDotEnv(false).WithPath("").WithEnv(envMap(map[string]string{
		"CARSCAN_CONFIG": filepath.Join(t.TempDir(), "missing.yaml"),
		"CARSCAN_PORT":   "abc",
	})).Load()
	require.Error(t, err)
}
