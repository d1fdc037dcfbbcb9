package storage

import (
	"time"

	"gorm.io/datatypes"
)

// SessionRecord is the persisted snapshot of one scan session.
type SessionRecord struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	State     string         `gorm:"not null" json:"state"`
	Snapshot  datatypes.JSON `json:"snapshot"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt *time.Time     `gorm:"index" json:"expires_at,omitempty"`
}

// ScanEvent is one journaled lifecycle event.
type ScanEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SessionID string         `gorm:"index;not null" json:"session_id"`
	Event     string         `gorm:"not null" json:"event"`
	Data      datatypes.JSON `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
