package sessionstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(Config{TTL: time.Hour, Memory: &MemoryConfig{GCInterval: time.Hour}})
	t.Cleanup(func() { _ = store.Close(ctx) })

	rec := Record{ID: "s1", State: "idle", Snapshot: []byte(`{"state":"idle"}`)}
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.State != "idle" || got.ExpiresAt == nil || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected record: %+v", got)
	}

	created := got.CreatedAt
	if err := store.Save(ctx, Record{ID: "s1", State: "scanning"}); err != nil {
		t.Fatalf("Save update error: %v", err)
	}
	got, _ = store.Get(ctx, "s1")
	if got.State != "scanning" || !got.CreatedAt.Equal(created) {
		t.Fatalf("update lost fields: %+v", got)
	}

	ids, err := store.List(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "s1" {
		t.Fatalf("List = %v, %v", ids, err)
	}

	if err := store.Remove(ctx, "s1"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(Config{TTL: time.Hour})
	t.Cleanup(func() { _ = store.Close(ctx) })

	past := time.Now().Add(-time.Minute)
	if err := store.Save(ctx, Record{ID: "old", State: "result", ExpiresAt: &past, CreatedAt: past}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if _, err := store.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record should be hidden, got %v", err)
	}
	if err := store.CleanupExpired(ctx); err != nil {
		t.Fatalf("CleanupExpired error: %v", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats["total"] != 0 {
		t.Fatalf("expected empty store, got %v", stats)
	}
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	store := NewMemory(Config{})
	defer store.Close(context.Background())

	if err := store.Save(context.Background(), Record{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
