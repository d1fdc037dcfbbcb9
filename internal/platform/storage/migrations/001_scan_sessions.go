package migrations

import "gorm.io/gorm"

// Migration001ScanSessions creates the session snapshot and scan event tables.
type Migration001ScanSessions struct{}

func (m *Migration001ScanSessions) Version() string {
	return "001_scan_sessions"
}

func (m *Migration001ScanSessions) Description() string {
	return "Create session_records and scan_events"
}

func (m *Migration001ScanSessions) Up(db *gorm.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS session_records (
			id VARCHAR(64) PRIMARY KEY,
			state VARCHAR(32) NOT NULL,
			snapshot JSON,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			expires_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_records_expires_at ON session_records(expires_at)`,
		`CREATE TABLE IF NOT EXISTS scan_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id VARCHAR(64) NOT NULL,
			event VARCHAR(64) NOT NULL,
			data JSON,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_events_session_id ON scan_events(session_id)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration001ScanSessions) Down(db *gorm.DB) error {
	if err := db.Exec(`DROP TABLE IF EXISTS scan_events`).Error; err != nil {
		return err
	}
	return db.Exec(`DROP TABLE IF EXISTS session_records`).Error
}
