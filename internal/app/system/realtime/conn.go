// internal/app/system/realtime/conn.go
package realtime

import "sync"

// DefaultBuffer is the outbound queue depth of a connection.
const DefaultBuffer = 64

// Frame is the wire shape of every outbound message.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Conn is the registry's handle on one transport connection: an id and a
// bounded queue of encoded frames that the transport's writer drains.
type Conn struct {
	id   string
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewConn returns a connection handle with an outbound queue of size buffer.
func NewConn(id string, buffer int) *Conn {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Conn{id: id, send: make(chan []byte, buffer)}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Outbound is closed when the connection is unregistered.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// enqueue never blocks; it reports false when the queue is full or closed.
func (c *Conn) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
