package testing

import (
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"carscan-server/internal/platform/config"
	"carscan-server/internal/platform/logging"
	"carscan-server/internal/platform/storage"
)

var dbSeq atomic.Int64

// SetupTestConfig returns defaults with logs pointed at a temp dir.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Server.Token = "test-secret"
	cfg.Log.Level = "debug"
	cfg.Log.Dir = t.TempDir()
	cfg.Log.File = "test.log"
	return cfg
}

// SetupTestLogger builds a logger that writes to a temp file and discards console output.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
		Console:  io.Discard,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

// OpenTestDB opens a migrated, private in-memory SQLite database.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:carscan-test-%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := storage.Open(dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close(db) })
	return db
}
