// Package scan owns the per-session scan state machine: upload, simulated
// progress, detection and the overlay of the last result.
package scan

import (
	"time"

	"carscan-server/internal/domain/detection"
	platformerrors "carscan-server/internal/platform/errors"
)

// State is the top-level session state. Exactly one is active at a time.
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StateResult   State = "result"
	StateError    State = "error"
)

// FileNotFoundMessage is reported when the animation ends without an upload.
const FileNotFoundMessage = "file not found"

var (
	ErrScanInProgress  = platformerrors.New(platformerrors.KindScan, "scan.upload", "scan already in progress")
	ErrSessionNotFound = platformerrors.New(platformerrors.KindScan, "scan.lookup", "session not found")
	ErrNoResult        = platformerrors.New(platformerrors.KindScan, "scan.overlay", "no scan result")
	ErrNoUpload        = platformerrors.New(platformerrors.KindScan, "scan.image", "no uploaded image")
)

// Snapshot is the serialisable view of a session. It never carries the
// uploaded bytes.
type Snapshot struct {
	ID             string                `json:"id"`
	State          State                 `json:"state"`
	Attempt        string                `json:"attempt,omitempty"`
	Progress       float64               `json:"progress"`
	Percent        int                   `json:"percent"`
	Phase          int                   `json:"phase"`
	PhaseKey       string                `json:"phaseKey,omitempty"`
	PhaseLabel     string                `json:"phaseLabel,omitempty"`
	ImageURL       string                `json:"imageUrl,omitempty"`
	FileName       string                `json:"fileName,omitempty"`
	ContentType    string                `json:"contentType,omitempty"`
	Size           int                   `json:"size,omitempty"`
	Result         *detection.ScanResult `json:"result,omitempty"`
	Summary        *detection.Summary    `json:"summary,omitempty"`
	Error          string                `json:"error,omitempty"`
	IntakeDisabled bool                  `json:"intakeDisabled"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// Scanning mirrors the isScanning flag of the results view.
func (s Snapshot) Scanning() bool {
	return s.State == StateScanning
}
