package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(fmt.Sprintf("file:storage-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestOpen_RunsMigrations(t *testing.T) {
	db := openMemory(t)

	assert.True(t, db.Migrator().HasTable("session_records"))
	assert.True(t, db.Migrator().HasTable("scan_events"))

	history, err := NewMigrationManager(db).History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "001_scan_sessions", history[0].Version)

	// second run is a no-op
	require.NoError(t, Migrate(db))
	history, err = NewMigrationManager(db).History()
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestOpen_FileDSN(t *testing.T) {
	dsn := t.TempDir() + "/nested/carscan.db"
	db, err := Open(dsn)
	require.NoError(t, err)
	assert.NoError(t, Close(db))
	assert.FileExists(t, dsn)
}

func TestRollbackMigration(t *testing.T) {
	db := openMemory(t)
	manager := NewMigrationManager(db)
	manager.AddMigration(&testMigration{})
	require.NoError(t, manager.RunMigrations())

	assert.Error(t, manager.RollbackMigration("999_missing"))
	require.NoError(t, manager.RollbackMigration("900_test"))
	assert.False(t, db.Migrator().HasTable("test_table"))
}

type testMigration struct{}

func (testMigration) Version() string     { return "900_test" }
func (testMigration) Description() string { return "test table" }
func (testMigration) Up(db *gorm.DB) error {
	return db.Exec(`CREATE TABLE test_table (id INTEGER)`).Error
}
func (testMigration) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE test_table`).Error
}

func TestEventJournal(t *testing.T) {
	ctx := context.Background()
	journal := NewEventJournal(openMemory(t))

	require.NoError(t, journal.Append(ctx, "s1", "scan:started", []byte(`{"file":"car.jpg"}`)))
	require.NoError(t, journal.Append(ctx, "s2", "scan:started", nil))
	require.NoError(t, journal.Append(ctx, "s1", "scan:completed", []byte(`{"count":1}`)))

	events, err := journal.List(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "scan:started", events[0].Event)
	assert.Equal(t, "scan:completed", events[1].Event)
	assert.JSONEq(t, `{"count":1}`, string(events[1].Data))

	limited, err := journal.List(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := journal.Purge(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
