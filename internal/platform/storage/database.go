package storage

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	platformerrors "carscan-server/internal/platform/errors"
	"carscan-server/internal/platform/storage/migrations"
)

// Open opens the SQLite database at dsn and applies pending migrations.
// File DSNs get their parent directory created.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "data/carscan.db"
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindStorage, "storage.open", "failed to create data directory", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "storage.open", "failed to open database", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate registers and runs the schema migrations.
func Migrate(db *gorm.DB) error {
	manager := NewMigrationManager(db)
	manager.AddMigration(&migrations.Migration001ScanSessions{})
	return manager.RunMigrations()
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
