package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ChatLink/logger"
)

// Client is one live connection to the gateway. A single user may hold
// several of these at once (one per device); each keeps its own send queue
// drained by a single writer goroutine, so fan-out never writes to the
// websocket directly.
type Client struct {
	ConnID   string
	UserID   string
	Username string

	WS   *websocket.Conn
	Send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(connID, userID, username string, ws *websocket.Conn, sendQueueSize int) *Client {
	return &Client{
		ConnID:   connID,
		UserID:   userID,
		Username: username,
		WS:       ws,
		Send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
	}
}

// Enqueue hands a payload to the writer without blocking. A full queue
// means a slow client; the frame is dropped rather than stalling dispatch.
func (c *Client) Enqueue(payload []byte) bool {
	if payload == nil {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		logger.Warnf("[client] send queue full, drop frame conn=%s user=%s", c.ConnID, c.UserID)
		return false
	}
}

// Close signals the writer to finish. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

const pingPeriod = 25 * time.Second

// writePump is the only goroutine allowed to write to the websocket
// (gorilla conns do not support concurrent writes). It drains the send
// queue, keeps the peer alive with pings, and closes the conn on exit.
func (c *Client) writePump(writeDeadline time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.WS.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeDeadline))
			_ = c.WS.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debugf("[client] write failed conn=%s user=%s err=%v", c.ConnID, c.UserID, err)
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
