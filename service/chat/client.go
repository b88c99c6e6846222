package chat

import (
	"time"

	"github.com/gorilla/websocket"

	"PMessenger/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one socket session on this gateway node. A user may hold
// several at once (one per device); each keeps its own send queue consumed
// by a single writer goroutine.
type Client struct {
	ConnID string
	UserID int64 // set after the auth frame
	ws     *websocket.Conn
	Send   chan []byte
	done   chan struct{}
}

func NewClient(connID string, ws *websocket.Conn, sendQueue int) *Client {
	return &Client{
		ConnID: connID,
		ws:     ws,
		Send:   make(chan []byte, sendQueue),
		done:   make(chan struct{}),
	}
}

// writeLoop is the only goroutine that writes to the socket. It drains the
// send queue and keeps the connection alive with pings.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case payload, ok := <-c.Send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug("[ws] write failed, dropping connection")
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// close stops the writer; safe to call once from the read loop.
func (c *Client) close() {
	close(c.done)
}
