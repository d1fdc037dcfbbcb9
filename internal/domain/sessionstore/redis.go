package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis constructs a redis-backed store. Expiry is delegated to key TTLs.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "carscan:session"
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisStore{client: client, ttl: ttl, prefix: prefix}, nil
}

func (s *redisStore) key(id string) string {
	return s.prefix + id
}

func (s *redisStore) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("session id required")
	}
	if rec.CreatedAt.IsZero() {
		if prev, err := s.Get(ctx, rec.ID); err == nil {
			rec.CreatedAt = prev.CreatedAt
			rec.ExpiresAt = prev.ExpiresAt
		}
	}
	rec = stamp(rec, s.ttl)

	data, err := sonic.Marshal(rec)
	if err != nil {
		return err
	}
	expiry := s.ttl
	if rec.ExpiresAt != nil {
		expiry = time.Until(*rec.ExpiresAt)
		if expiry <= 0 {
			return s.Remove(ctx, rec.ID)
		}
	}
	return s.client.Set(ctx, s.key(rec.ID), data, expiry).Err()
}

func (s *redisStore) Get(ctx context.Context, id string) (Record, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Record{}, err
	}
	var rec Record
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return Record{}, err
	}
	if rec.expired(time.Now()) {
		_ = s.Remove(ctx, id)
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

func (s *redisStore) Remove(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *redisStore) List(ctx context.Context) ([]string, error) {
	var cursor uint64
	ids := make([]string, 0)
	pattern := s.prefix + "*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			ids = append(ids, strings.TrimPrefix(key, s.prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return ids, nil
}

func (s *redisStore) CleanupExpired(context.Context) error {
	// Redis handles expiration via TTL.
	return nil
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":        DriverRedis,
		"total":       len(ids),
		"ttl_seconds": int(s.ttl.Seconds()),
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}
