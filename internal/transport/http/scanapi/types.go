package scanapi

import "carscan-server/internal/domain/scan"

// CreateSessionData is returned by POST /api/sessions.
type CreateSessionData struct {
	Session   scan.Snapshot `json:"session"`
	Token     string        `json:"token"`
	ExpiresIn int64         `json:"expiresIn"`
}

// UploadData reports whether the upload started a scan. A non-image file
// is ignored and yields accepted=false.
type UploadData struct {
	Accepted bool          `json:"accepted"`
	Session  scan.Snapshot `json:"session"`
}

type CancelData struct {
	Canceled bool          `json:"canceled"`
	Session  scan.Snapshot `json:"session"`
}
