package ws

import (
	"context"
	"sync/atomic"
	"time"

	"carscan-server/internal/platform/logging"
)

const defaultCloseTimeout = 5 * time.Second

// SessionHandler drives one upgraded connection.
type SessionHandler interface {
	Handle() error
	Close()
	GetSessionID() string
}

// Session encapsulates the lifecycle of a single websocket connection.
type Session struct {
	id      string
	scanID  string
	handler SessionHandler
	conn    *Connection
	logger  *logging.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc

	closed atomic.Bool
}

// NewSession constructs a managed websocket session watching scanID.
func NewSession(parent context.Context, scanID string, handler SessionHandler, conn *Connection, logger *logging.Logger) *Session {
	sessionCtx, cancel := context.WithCancelCause(parent)
	return &Session{
		id:      handler.GetSessionID(),
		scanID:  scanID,
		handler: handler,
		conn:    conn,
		logger:  logger,
		ctx:     sessionCtx,
		cancel:  cancel,
	}
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) ID() string {
	return s.id
}

// ScanID is the scan session this connection streams.
func (s *Session) ScanID() string {
	return s.scanID
}

// Run executes the session handler and invokes onDone once exiting.
func (s *Session) Run(onDone func(error)) {
	var runErr error
	defer func() {
		s.Close(runErr)
		if onDone != nil {
			onDone(runErr)
		}
	}()

	runErr = s.handler.Handle()
}

// Close attempts to gracefully terminate the session.
func (s *Session) Close(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	if s.cancel != nil {
		s.cancel(reason)
	}

	shutdownCtx, cancel := context.WithTimeoutCause(context.Background(), defaultCloseTimeout, reason)
	defer cancel()

	if s.handler != nil {
		done := make(chan struct{})
		go func() {
			s.handler.Close()
			close(done)
		}()

		select {
		case <-done:
		case <-shutdownCtx.Done():
			s.logger.Warn("ws session %s handler close timed out: %v", s.id, context.Cause(shutdownCtx))
		}
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("ws session %s connection close failed: %v", s.id, err)
		}
	}
}
