package ws

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"carscan-server/internal/domain/eventbus"
	"carscan-server/internal/domain/scan"
	"carscan-server/internal/platform/logging"
	"carscan-server/internal/platform/observability"
)

// SessionSource resolves the snapshot a stream starts with.
type SessionSource interface {
	Lookup(ctx context.Context, id string) (scan.Snapshot, error)
}

// Authorizer checks a token against a session id.
type Authorizer interface {
	Authorize(token, sessionID string) error
}

// EventSource lets a stream subscribe to one session's events.
type EventSource interface {
	Watch(sessionID string, fn func(eventbus.ScanEvent)) func()
}

// RouterOptions configures the websocket router.
type RouterOptions struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	Buffer           int
	CheckOrigin      func(r *http.Request) bool
}

// Router upgrades HTTP connections to per-session event streams.
type Router struct {
	hub      *Hub
	logger   *logging.Logger
	sessions SessionSource
	auth     Authorizer
	events   EventSource

	upgrader *websocket.Upgrader
	opts     RouterOptions
}

// NewRouter constructs a websocket router.
func NewRouter(hub *Hub, logger *logging.Logger, sessions SessionSource, auth Authorizer, events EventSource, opts RouterOptions) *Router {
	upgrader := &websocket.Upgrader{
		CheckOrigin: opts.CheckOrigin,
	}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = 30 * time.Second
	}
	upgrader.HandshakeTimeout = opts.HandshakeTimeout

	return &Router{
		hub:      hub,
		logger:   logger,
		sessions: sessions,
		auth:     auth,
		events:   events,
		upgrader: upgrader,
		opts:     opts,
	}
}

// Handle authorises the request, upgrades it and streams the events of
// scan session scanID until either side leaves.
func (r *Router) Handle(w http.ResponseWriter, req *http.Request, scanID string) {
	ctx := req.Context()
	handshakeCtx, cancel := context.WithTimeoutCause(ctx, r.opts.HandshakeTimeout, ErrHandshakeTimeout)
	defer cancel()

	spanCtx, spanEnd := observability.StartSpan(handshakeCtx, "transport.websocket", "handle")
	var spanErr error
	defer func() {
		spanEnd(spanErr)
	}()

	if err := r.auth.Authorize(tokenFrom(req), scanID); err != nil {
		spanErr = err
		r.logger.WarnTag("WS", "rejected stream for %s: %v", scanID, err)
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}
	snap, err := r.sessions.Lookup(handshakeCtx, scanID)
	if err != nil {
		spanErr = err
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	socket, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		spanErr = err
		observability.RecordMetric(
			spanCtx,
			"websocket.upgrade.error",
			1,
			map[string]string{
				"component": "transport.websocket",
			},
		)
		r.logger.ErrorTag("WS", "handshake failed: %v", err)
		return
	}

	conn := NewConnection(uuid.NewString(), socket)
	st := newStream(conn, scanID, r.opts.Buffer, r.opts.WriteTimeout, r.opts.PingInterval, r.logger)
	st.push(eventbus.ScanEvent{Topic: EventSnapshot, SessionID: scanID, At: time.Now(), Data: snap})
	st.setUnsubscribe(r.events.Watch(scanID, st.push))
	// Events published between the first lookup and Watch are lost, so
	// resend the snapshot when the session moved in that window.
	if fresh, err := r.sessions.Lookup(handshakeCtx, scanID); err == nil &&
		(fresh.State != snap.State || !fresh.UpdatedAt.Equal(snap.UpdatedAt)) {
		st.push(eventbus.ScanEvent{Topic: EventSnapshot, SessionID: scanID, At: time.Now(), Data: fresh})
	}

	session := NewSession(context.WithoutCancel(spanCtx), scanID, st, conn, r.logger)
	r.hub.Register(session)
	r.logger.InfoTag("WS", "stream %s opened for session %s", conn.ID(), scanID)

	observability.RecordMetric(
		spanCtx,
		"websocket.connection.opened",
		1,
		map[string]string{
			"component": "transport.websocket",
			"session":   scanID,
		},
	)

	go session.Run(func(runErr error) {
		r.hub.Unregister(session.ID())
		if runErr != nil {
			r.logger.WarnTag("WS", "stream %s ended: %v", session.ID(), runErr)
		} else {
			r.logger.InfoTag("WS", "stream %s closed", session.ID())
		}
		observability.RecordMetric(
			session.Context(),
			"websocket.connection.closed",
			1,
			map[string]string{
				"component": "transport.websocket",
				"session":   scanID,
				"dropped":   strconv.FormatInt(st.Dropped(), 10),
			},
		)
	})
}

func tokenFrom(req *http.Request) string {
	if t := req.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := req.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return req.Header.Get("Token")
}
