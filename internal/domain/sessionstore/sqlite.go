package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"carscan-server/internal/platform/storage"
)

type sqliteStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewSQLite builds a store on the session_records table.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{db: db, ttl: cfg.TTL}, nil
}

func (s *sqliteStore) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("session id required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if rec.CreatedAt.IsZero() {
			var prev storage.SessionRecord
			err := tx.Select("created_at", "expires_at").Where("id = ?", rec.ID).First(&prev).Error
			switch {
			case err == nil:
				rec.CreatedAt = prev.CreatedAt
				rec.ExpiresAt = prev.ExpiresAt
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}
		rec = stamp(rec, s.ttl)

		row := &storage.SessionRecord{
			ID:        rec.ID,
			State:     rec.State,
			Snapshot:  []byte(rec.Snapshot),
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
			ExpiresAt: rec.ExpiresAt,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "snapshot", "updated_at", "expires_at"}),
		}).Create(row).Error
	})
}

func (s *sqliteStore) Get(ctx context.Context, id string) (Record, error) {
	var row storage.SessionRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:        row.ID,
		State:     row.State,
		Snapshot:  []byte(row.Snapshot),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		ExpiresAt: row.ExpiresAt,
	}
	if rec.expired(time.Now()) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

func (s *sqliteStore) Remove(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&storage.SessionRecord{}).Error
}

func (s *sqliteStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&storage.SessionRecord{}).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *sqliteStore) CleanupExpired(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&storage.SessionRecord{}).
		Error
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&storage.SessionRecord{}).Count(&total).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":        DriverSQLite,
		"total":       total,
		"ttl_seconds": int(s.ttl.Seconds()),
	}, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}
