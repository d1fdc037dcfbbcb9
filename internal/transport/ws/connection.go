package ws

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps a gorilla websocket connection with a write lock and
// activity tracking.
type Connection struct {
	id         string
	socket     *websocket.Conn
	mu         sync.Mutex
	closed     atomic.Bool
	lastActive atomic.Int64
}

// NewConnection creates a tracked websocket connection.
func NewConnection(id string, socket *websocket.Conn) *Connection {
	conn := &Connection{
		id:     id,
		socket: socket,
	}
	conn.touch()
	return conn
}

// WriteMessage sends a message to the client. Writes are serialised.
func (c *Connection) WriteMessage(messageType int, data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("connection %s already closed", c.id)
	}
	if timeout > 0 {
		_ = c.socket.SetWriteDeadline(time.Now().Add(timeout))
	}
	if err := c.socket.WriteMessage(messageType, data); err != nil {
		return err
	}

	c.touch()
	return nil
}

// ReadMessage receives a message from the client.
func (c *Connection) ReadMessage() (int, []byte, error) {
	messageType, payload, err := c.socket.ReadMessage()
	if err == nil {
		c.touch()
	}
	return messageType, payload, err
}

// Close terminates the underlying websocket connection.
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.socket.Close()
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// LastActive reports when the client last read or was written to.
func (c *Connection) LastActive() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

func (c *Connection) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}
