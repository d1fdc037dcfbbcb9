package config

import "time"

const (
	DefaultDetectionURL = "https://dentapi.nixlavr.ru/predict"
	DefaultMaxFileSize  = 20 << 20
	// DefaultTokenSecret is only accepted on a loopback listener.
	DefaultTokenSecret = "change_me"
)

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:         "127.0.0.1",
			Port:       8000,
			Token:      DefaultTokenSecret,
			SessionTTL: 24 * time.Hour,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			StaticDir: "web",
			Origins:   []string{"*"},
		},
		Upload: UploadConfig{
			MaxFileSize: DefaultMaxFileSize,
		},
		Detection: DetectionConfig{
			URL:             DefaultDetectionURL,
			FallbackEnabled: true,
			MaxConcurrent:   4,
		},
		Scan: ScanConfig{
			Locale: "ru",
		},
		SessionStore: SessionStoreConfig{
			Driver:  "memory",
			TTL:     24 * time.Hour,
			Cleanup: 10 * time.Minute,
			Redis: RedisStoreConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "carscan:session",
			},
			SQLite: SQLiteStoreConfig{
				DSN: "data/carscan.db",
			},
		},
	}
}
