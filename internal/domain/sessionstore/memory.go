package sessionstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryStore struct {
	items       map[string]Record
	mutex       sync.RWMutex
	ttl         time.Duration
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-memory store with a background expiry sweep.
func NewMemory(cfg Config) Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cleanup := 5 * time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	s := &memoryStore{
		items:       make(map[string]Record),
		ttl:         ttl,
		cleanupFreq: cleanup,
		stop:        make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

func (s *memoryStore) gcLoop() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.CleanupExpired(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) Save(_ context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("session id required")
	}
	s.mutex.Lock()
	if prev, ok := s.items[rec.ID]; ok && rec.CreatedAt.IsZero() {
		rec.CreatedAt = prev.CreatedAt
		rec.ExpiresAt = prev.ExpiresAt
	}
	s.items[rec.ID] = stamp(rec, s.ttl)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Record, error) {
	s.mutex.RLock()
	rec, ok := s.items[id]
	s.mutex.RUnlock()
	if !ok || rec.expired(time.Now()) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

func (s *memoryStore) Remove(_ context.Context, id string) error {
	s.mutex.Lock()
	delete(s.items, id)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) List(_ context.Context) ([]string, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]string, 0, len(s.items))
	for id, rec := range s.items {
		if !rec.expired(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memoryStore) CleanupExpired(_ context.Context) error {
	now := time.Now()
	s.mutex.Lock()
	for id, rec := range s.items {
		if rec.expired(now) {
			delete(s.items, id)
		}
	}
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	active := 0
	for _, rec := range s.items {
		if !rec.expired(now) {
			active++
		}
	}
	return map[string]any{
		"type":        DriverMemory,
		"total":       len(s.items),
		"active":      active,
		"ttl_seconds": int(s.ttl.Seconds()),
	}, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
