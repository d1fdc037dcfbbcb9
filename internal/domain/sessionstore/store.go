package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing or expired.
var ErrNotFound = errors.New("session record not found")

// Record is the persisted form of a scan session. Snapshot is opaque JSON
// owned by the scan package; uploaded bytes are never stored.
type Record struct {
	ID        string          `json:"id"`
	State     string          `json:"state"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

func (r Record) expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Store persists session records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	CleanupExpired(ctx context.Context) error
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	TTL    time.Duration
	Redis  *RedisConfig
	Memory *MemoryConfig
}

type MemoryConfig struct {
	GCInterval time.Duration
}

type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// stamp fills timestamps and the expiry derived from ttl.
func stamp(rec Record, ttl time.Duration) Record {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.ExpiresAt == nil && ttl > 0 {
		exp := now.Add(ttl)
		rec.ExpiresAt = &exp
	}
	return rec
}
