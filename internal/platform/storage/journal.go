package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	platformerrors "carscan-server/internal/platform/errors"
)

// EventJournal appends scan lifecycle events to scan_events.
type EventJournal struct {
	db *gorm.DB
}

func NewEventJournal(db *gorm.DB) *EventJournal {
	return &EventJournal{db: db}
}

func (j *EventJournal) Append(ctx context.Context, sessionID, event string, data []byte) error {
	record := &ScanEvent{
		SessionID: sessionID,
		Event:     event,
		Data:      data,
		CreatedAt: time.Now(),
	}
	if err := j.db.WithContext(ctx).Create(record).Error; err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "journal.append", "failed to append scan event", err)
	}
	return nil
}

// List returns the session's events in insertion order. limit <= 0 means all.
func (j *EventJournal) List(ctx context.Context, sessionID string, limit int) ([]ScanEvent, error) {
	var events []ScanEvent
	q := j.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "journal.list", "failed to list scan events", err)
	}
	return events, nil
}

// Purge drops events older than before.
func (j *EventJournal) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := j.db.WithContext(ctx).Where("created_at < ?", before).Delete(&ScanEvent{})
	if res.Error != nil {
		return 0, platformerrors.Wrap(platformerrors.KindStorage, "journal.purge", "failed to purge scan events", res.Error)
	}
	return res.RowsAffected, nil
}

// DB exposes the handle for callers sharing the connection.
func (j *EventJournal) DB() *gorm.DB {
	return j.db
}
