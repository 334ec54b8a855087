package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/queuesync/internal/app/notification"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// client is one websocket connection subscribed to the feed.
type client struct {
	conn *websocket.Conn
	send chan *notification.Message

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan *notification.Message, sendBuffer),
	}
}

// Send queues msg without blocking.
func (c *client) Send(msg *notification.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSlowClient
	}
}

// close stops the write pump. The connection is closed by the pump.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump decodes commands until the connection fails or ctx is done.
func (c *client) readPump(ctx context.Context, handle func(Command)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zlog.Warn().Msgf("ws: read error: %v", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			zlog.Warn().Msgf("ws: invalid command: %v", err)
			c.reply(Command{}, err)
			continue
		}
		handle(cmd)
	}
}

// writePump writes queued messages and keeps the connection alive with
// pings. It owns closing the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				zlog.Debug().Msgf("ws: write failed: %v", err)
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

// reply sends the result of cmd to this client only.
func (c *client) reply(cmd Command, err error) {
	result := notification.ResultPayload{ID: cmd.ID, OK: err == nil}
	if err != nil {
		result.Error = err.Error()
	}
	msg, encErr := notification.NewMessage(notification.TypeResult, result)
	if encErr != nil {
		zlog.Error().Msgf("ws: failed to encode result: %v", encErr)
		return
	}
	if sendErr := c.Send(msg); sendErr != nil {
		zlog.Debug().Msgf("ws: result dropped: id=%s: %v", cmd.ID, sendErr)
	}
}
