package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deskmux/deskmux/pkg/models"
)

// Connection wraps one client's websocket.Conn with a non-blocking send
// buffer, satisfying models.Sink for BroadcastCenter.
type Connection struct {
	ID   string
	conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewConnection wraps conn with a send buffer of the given depth.
func NewConnection(id string, conn *websocket.Conn, bufSize int) *Connection {
	return &Connection{ID: id, conn: conn, send: make(chan []byte, bufSize), done: make(chan struct{})}
}

// Send enqueues payload without blocking; a full buffer reports Dropped, a
// closed connection reports Closed.
func (c *Connection) Send(payload []byte) models.SendResult {
	select {
	case <-c.done:
		return models.SendClosed
	default:
	}
	select {
	case c.send <- payload:
		return models.SendOK
	default:
		return models.SendDropped
	}
}

// WriteLoop drains the send buffer to the wire and pings on interval until
// Close is called or a write fails.
func (c *Connection) WriteLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close idempotently tears the connection down.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
