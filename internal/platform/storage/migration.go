package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	platformerrors "carscan-server/internal/platform/errors"
)

// Migration is one versioned schema change.
type Migration interface {
	Version() string
	Description() string
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// MigrationRecord marks a migration as applied.
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

type MigrationManager struct {
	db         *gorm.DB
	migrations []Migration
}

func NewMigrationManager(db *gorm.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

func (m *MigrationManager) AddMigration(migration Migration) {
	m.migrations = append(m.migrations, migration)
}

// RunMigrations applies every registered migration not yet recorded, each in its own transaction.
func (m *MigrationManager) RunMigrations() error {
	if err := m.db.AutoMigrate(&MigrationRecord{}); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "migration.create_table", "failed to create migration table", err)
	}

	var applied []string
	if err := m.db.Model(&MigrationRecord{}).Pluck("version", &applied).Error; err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "migration.get_applied", "failed to get applied migrations", err)
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, migration := range m.migrations {
		if done[migration.Version()] {
			continue
		}

		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return platformerrors.Wrap(platformerrors.KindStorage, "migration.up",
					fmt.Sprintf("failed to run migration %s", migration.Version()), err)
			}
			return tx.Create(&MigrationRecord{
				Version:   migration.Version(),
				Name:      migration.Description(),
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return platformerrors.Wrap(platformerrors.KindStorage, "migration.apply", "failed to apply migration", err)
		}
	}
	return nil
}

// RollbackMigration reverts a single applied migration.
func (m *MigrationManager) RollbackMigration(version string) error {
	var record MigrationRecord
	if err := m.db.Where("version = ?", version).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return platformerrors.New(platformerrors.KindStorage, "migration.not_found", fmt.Sprintf("migration %s not found", version))
		}
		return platformerrors.Wrap(platformerrors.KindStorage, "migration.find_record", "failed to find migration record", err)
	}

	var target Migration
	for _, migration := range m.migrations {
		if migration.Version() == version {
			target = migration
			break
		}
	}
	if target == nil {
		return platformerrors.New(platformerrors.KindStorage, "migration.not_registered", fmt.Sprintf("migration %s not registered", version))
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		if err := target.Down(tx); err != nil {
			return platformerrors.Wrap(platformerrors.KindStorage, "migration.down", fmt.Sprintf("failed to rollback migration %s", version), err)
		}
		return tx.Delete(&record).Error
	})
}

// History lists applied migrations, newest first.
func (m *MigrationManager) History() ([]MigrationRecord, error) {
	var records []MigrationRecord
	if err := m.db.Order("applied_at DESC").Find(&records).Error; err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "migration.history", "failed to get migration history", err)
	}
	return records, nil
}
