package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "carscan-server/internal/platform/errors"
)

const (
	DefaultPath = ".config.yaml"
	envPrefix   = "CARSCAN_"
)

// Loader reads a YAML file over DefaultConfig and applies CARSCAN_* overrides.
type Loader struct {
	path      string
	useDotEnv bool
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader for the file named by CARSCAN_CONFIG or .config.yaml.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithPath pins the config file path.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithEnv overrides environment lookups (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	// Path is empty when no file was found and defaults were used.
	Path string
}

func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// a missing .env is normal
		_ = godotenv.Load()
	}

	path := l.path
	if path == "" {
		if p, ok := l.lookupEnv(envPrefix + "CONFIG"); ok && p != "" {
			path = p
		} else {
			path = DefaultPath
		}
	}

	cfg := DefaultConfig()
	used := ""
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.parse", "invalid yaml in "+path, err)
		}
		used = path
	case os.IsNotExist(err) && l.path == "":
	default:
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.read", "read "+path, err)
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: used}, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v, ok := l.lookupEnv(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("HOST", &cfg.Server.IP)
	str("TOKEN_SECRET", &cfg.Server.Token)
	str("DETECTION_URL", &cfg.Detection.URL)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOCALE", &cfg.Scan.Locale)
	str("STORE_DRIVER", &cfg.SessionStore.Driver)
	str("REDIS_ADDR", &cfg.SessionStore.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.SessionStore.Redis.Password)

	if v, ok := l.lookupEnv(envPrefix + "PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindConfig, "config.env", envPrefix+"PORT must be a number", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := l.lookupEnv(envPrefix + "FALLBACK_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindConfig, "config.env", envPrefix+"FALLBACK_ENABLED must be a bool", err)
		}
		cfg.Detection.FallbackEnabled = enabled
	}
	return nil
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", fmt.Sprintf("invalid server port: %d", cfg.Server.Port))
	}
	if strings.TrimSpace(cfg.Detection.URL) == "" {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", "detection url is required")
	}
	if cfg.Detection.MaxConcurrent <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", "detection.max_concurrent must be positive")
	}
	if cfg.Upload.MaxFileSize <= 0 {
		return platformerrors.New(platformerrors.KindConfig, "config.validate", "upload.max_file_size must be positive")
	}
	switch strings.ToLower(cfg.SessionStore.Driver) {
	case "memory", "sqlite", "redis":
	default:
		return platformerrors.New(platformerrors.KindConfig, "config.validate", "unsupported session store driver: "+cfg.SessionStore.Driver)
	}
	switch cfg.Scan.Locale {
	case "ru", "en":
	default:
		return platformerrors.New(platformerrors.KindConfig, "config.validate", "unsupported locale: "+cfg.Scan.Locale)
	}
	return nil
}
