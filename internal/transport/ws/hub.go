package ws

import (
	"sync"

	"carscan-server/internal/platform/logging"
)

// Hub tracks the active websocket streams for a transport instance.
type Hub struct {
	logger   *logging.Logger
	sessions sync.Map // map[string]*Session
}

// NewHub builds a fresh session hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger: logger,
	}
}

// Register adds a new session to the hub.
func (h *Hub) Register(session *Session) {
	if session == nil {
		return
	}
	h.sessions.Store(session.ID(), session)
}

// Unregister removes the session from the hub.
func (h *Hub) Unregister(id string) {
	if id == "" {
		return
	}
	h.sessions.Delete(id)
}

// CloseAll terminates all active sessions.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	h.sessions.Range(func(key, value any) bool {
		if session, ok := value.(*Session); ok {
			session.Close(reason)
		}
		h.sessions.Delete(key)
		return true
	})
}

// Counts returns open connections and the number of distinct scan
// sessions they watch.
func (h *Hub) Counts() (clients int, sessions int) {
	watched := make(map[string]struct{})
	h.sessions.Range(func(key, value any) bool {
		clients++
		if session, ok := value.(*Session); ok {
			watched[session.ScanID()] = struct{}{}
		}
		return true
	})
	return clients, len(watched)
}
