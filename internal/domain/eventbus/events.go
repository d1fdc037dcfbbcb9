package eventbus

import "time"

// Scan lifecycle topics.
const (
	EventScanStarted   = "scan:started"
	EventScanProgress  = "scan:progress"
	EventScanCompleted = "scan:completed"
	EventScanFailed    = "scan:failed"
	EventScanCanceled  = "scan:canceled"
	EventScanReset     = "scan:reset"
	EventSessionClosed = "session:closed"
)

// Topics lists every topic a session can emit, in lifecycle order.
var Topics = []string{
	EventScanStarted,
	EventScanProgress,
	EventScanCompleted,
	EventScanFailed,
	EventScanCanceled,
	EventScanReset,
	EventSessionClosed,
}

// ScanEvent is the payload published on every topic.
type ScanEvent struct {
	Topic     string    `json:"event"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Data      any       `json:"data,omitempty"`
}

type ProgressData struct {
	Phase      int     `json:"phase"`
	PhaseKey   string  `json:"phase_key"`
	PhaseLabel string  `json:"phase_label"`
	Progress   float64 `json:"progress"`
	Percent    int     `json:"percent"`
}

type StartedData struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type CompletedData struct {
	Count          int   `json:"count"`
	ProcessingTime int64 `json:"processing_time"`
}

type FailedData struct {
	Message  string `json:"message"`
	Fallback bool   `json:"fallback"`
}
