package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"carscan-server/internal/domain/eventbus"
	"carscan-server/internal/platform/logging"
)

// EventSnapshot is the topic of the first frame sent on every stream.
const EventSnapshot = "snapshot"

// stream forwards one scan session's events to one connection. Events are
// queued in a bounded buffer and dropped when the client falls behind.
type stream struct {
	conn         *Connection
	scanID       string
	logger       *logging.Logger
	writeTimeout time.Duration
	pingInterval time.Duration

	out     chan []byte
	done    chan struct{}
	dropped atomic.Int64

	mu          sync.Mutex
	unsubscribe func()
	closeOnce   sync.Once
}

func newStream(conn *Connection, scanID string, buffer int, writeTimeout, pingInterval time.Duration, logger *logging.Logger) *stream {
	if buffer <= 0 {
		buffer = 64
	}
	return &stream{
		conn:         conn,
		scanID:       scanID,
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		out:          make(chan []byte, buffer),
		done:         make(chan struct{}),
	}
}

func (s *stream) GetSessionID() string {
	return s.conn.ID()
}

func (s *stream) setUnsubscribe(fn func()) {
	s.mu.Lock()
	s.unsubscribe = fn
	s.mu.Unlock()
}

// push queues ev without blocking the publisher.
func (s *stream) push(ev eventbus.ScanEvent) {
	data, err := sonic.Marshal(ev)
	if err != nil {
		s.logger.WarnTag("WS", "encode %s frame failed: %v", ev.Topic, err)
		return
	}
	select {
	case <-s.done:
	case s.out <- data:
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			s.logger.WarnTag("WS", "client %s is slow, %d frame(s) dropped", s.conn.ID(), n)
		}
	}
}

// Handle runs the write loop until the client leaves or Close is called.
func (s *stream) Handle() error {
	readErr := make(chan error, 1)
	go func() {
		for {
			// client frames carry no commands; reading only detects disconnects
			if _, _, err := s.conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	var ping <-chan time.Time
	if s.pingInterval > 0 {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-s.done:
			return nil
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return ErrClientGone
		case data := <-s.out:
			if err := s.conn.WriteMessage(websocket.TextMessage, data, s.writeTimeout); err != nil {
				return err
			}
		case <-ping:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil, s.writeTimeout); err != nil {
				return err
			}
		}
	}
}

// Close detaches from the bus and stops the write loop.
func (s *stream) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		unsubscribe := s.unsubscribe
		s.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
		close(s.done)
	})
}

func (s *stream) Dropped() int64 {
	return s.dropped.Load()
}
