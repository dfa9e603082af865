package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client is one upgraded socket. Only writePump writes to conn once it runs;
// everything else enqueues frames through Send.
type client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once

	writeTimeout time.Duration
	pingInterval time.Duration
}

func newClient(id, userID string, conn *websocket.Conn, opts Options) *client {
	return &client{
		id:           id,
		userID:       userID,
		conn:         conn,
		send:         make(chan []byte, opts.SendBuffer),
		done:         make(chan struct{}),
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
	}
}

func (c *client) ConnID() string { return c.id }
func (c *client) UserID() string { return c.userID }

// Send enqueues frame without blocking. It reports false when the buffer is
// full or the client is closing.
func (c *client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which sends a close frame and drops the socket.
func (c *client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump drains the send buffer and keeps the peer alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(c.writeTimeout),
			)
			return
		}
	}
}

// flush writes whatever is still buffered, stopping at the first failure.
func (c *client) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(frame []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}
