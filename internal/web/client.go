package web

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/codefionn/evalkit/internal/consts"
	"github.com/codefionn/evalkit/internal/logger"
)

const (
	writeWait = consts.Timeout10Seconds
	pongWait  = consts.Timeout60Seconds
	// pingPeriod must stay below pongWait.
	pingPeriod = pongWait * 9 / 10
	// Subscribers never send payloads, only control frames.
	maxReadSize = consts.BufferSize1KB

	sendQueue = 64
)

// Client is one websocket subscriber.
type Client struct {
	ID      string
	session string
	hub     *Hub
	conn    *websocket.Conn
	send    chan *WebMessage
}

// NewClient creates a subscriber. An empty session receives every event.
func NewClient(hub *Hub, conn *websocket.Conn, session string) *Client {
	return &Client{
		ID:      uuid.NewString(),
		session: session,
		hub:     hub,
		conn:    conn,
		send:    make(chan *WebMessage, sendQueue),
	}
}

// wants reports whether msg matches the client's session filter.
func (c *Client) wants(msg *WebMessage) bool {
	return c.session == "" || msg.Session == "" || msg.Session == c.session
}

// ReadPump keeps the read deadline fresh and unregisters the client once
// the peer disconnects.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadSize)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket %s: %v", c.ID, err)
			}
			return
		}
	}
}

// WritePump writes queued messages as JSON text frames and pings the peer.
// It exits when the queue is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"))
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Error("websocket %s: encode %s: %v", c.ID, msg.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("websocket %s: write: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
