package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"liveclass/pkg/types"
)

// Connection wraps one browser tab's WebSocket link. All outbound frames go
// through a buffered queue drained by a single writer goroutine, so writes
// are serialized and a slow peer backs up only its own queue, never the
// broadcaster.
type Connection struct {
	connID       string
	conn         *websocket.Conn
	sendCh       chan []byte
	writeTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.RWMutex
	identity types.Identity
	bound    bool
}

// NewConnection wraps an upgraded WebSocket connection and starts its writer.
func NewConnection(conn *websocket.Conn, sendBuffer int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		connID:       uuid.New().String(),
		conn:         conn,
		sendCh:       make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case frame := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.cancel()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// ID implements gateway.Sender. Before authentication it is the connection
// id; afterwards the bound participant id, which is what log lines want.
func (c *Connection) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.bound {
		return c.identity.ID
	}
	return c.connID
}

// ConnID returns the transport-level connection id.
func (c *Connection) ConnID() string { return c.connID }

// Enqueue implements gateway.Sender. It never blocks: a full queue means
// this consumer is too slow and the frame is dropped for it alone.
func (c *Connection) Enqueue(frame []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}
	select {
	case c.sendCh <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Bind attaches a verified identity to the connection for the lifetime of
// the transport link.
func (c *Connection) Bind(identity types.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
	c.bound = true
}

// Identity returns the bound identity, if any.
func (c *Connection) Identity() (types.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity, c.bound
}

// Done is closed when the connection is finished.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

// Close shuts the connection down. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}
