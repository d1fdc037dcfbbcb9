package config

import "time"

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	Web          WebConfig          `yaml:"web"`
	Upload       UploadConfig       `yaml:"upload"`
	Detection    DetectionConfig    `yaml:"detection"`
	Scan         ScanConfig         `yaml:"scan"`
	SessionStore SessionStoreConfig `yaml:"session_store"`
}

type ServerConfig struct {
	IP    string `yaml:"ip"`
	Port  int    `yaml:"port"`
	Token string `yaml:"token"`
	// SessionTTL bounds how long an issued session token stays valid.
	SessionTTL time.Duration `yaml:"session_ttl"`
	// TrustedProxies lists the proxy CIDRs allowed to set client IP headers.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	Enabled   bool     `yaml:"enabled"`
	StaticDir string   `yaml:"static_dir"`
	Origins   []string `yaml:"allowed_origins"`
}

type UploadConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"`
}

type DetectionConfig struct {
	URL             string `yaml:"url"`
	FallbackEnabled bool   `yaml:"fallback_enabled"`
	// MaxConcurrent caps in-flight detection requests across sessions.
	MaxConcurrent int `yaml:"max_concurrent"`
}

type ScanConfig struct {
	Locale string `yaml:"locale"`
}

type SessionStoreConfig struct {
	Driver  string            `yaml:"driver"`
	TTL     time.Duration     `yaml:"ttl"`
	Cleanup time.Duration     `yaml:"cleanup"`
	Redis   RedisStoreConfig  `yaml:"redis,omitempty"`
	SQLite  SQLiteStoreConfig `yaml:"sqlite,omitempty"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type SQLiteStoreConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}
