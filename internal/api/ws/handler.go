// Package ws serves the playback feed and accepts playback commands over
// websocket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/queuesync/internal/app/notification"
	"github.com/osa030/queuesync/internal/app/playback"
)

// Errors
var (
	ErrClientClosed   = errors.New("client closed")
	ErrSlowClient     = errors.New("client send buffer full")
	ErrUnknownCommand = errors.New("unknown command")
	ErrAudioNotFound  = errors.New("audio not found")
)

const commandTimeout = 10 * time.Second

// Handler serves /ws and /healthz.
type Handler struct {
	hub      *notification.Manager
	conn     *playback.Connection
	finder   playback.AudioFinder
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHandler creates a handler. finder resolves audio ids sent by clients.
func NewHandler(hub *notification.Manager, conn *playback.Connection, finder playback.AudioFinder) *Handler {
	return &Handler{
		hub:    hub,
		conn:   conn,
		finder: finder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// Routes returns the handler's routes.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/healthz", h.ServeHealth)
	return mux
}

// ServeWS upgrades the request and streams the feed until the client leaves.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Msgf("ws: upgrade failed: remote=%s: %v", r.RemoteAddr, err)
		return
	}

	c := newClient(conn)
	h.track(c, true)
	go c.writePump()

	id := h.hub.Subscribe(c)
	zlog.Info().Msgf("ws: client connected: subscription=%s remote=%s", id, r.RemoteAddr)

	c.readPump(r.Context(), func(cmd Command) {
		ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
		defer cancel()

		err := h.execute(ctx, cmd)
		if err != nil {
			zlog.Warn().Msgf("ws: command failed: type=%s id=%s: %v", cmd.Type, cmd.ID, err)
		} else {
			zlog.Debug().Msgf("ws: command done: type=%s id=%s", cmd.Type, cmd.ID)
		}
		c.reply(cmd, err)
	})

	h.hub.Unsubscribe(id)
	h.track(c, false)
	c.close()
	zlog.Info().Msgf("ws: client disconnected: subscription=%s", id)
}

type health struct {
	Status      string `json:"status"`
	Connected   bool   `json:"connected"`
	Subscribers int    `json:"subscribers"`
}

// ServeHealth reports liveness and session connectivity.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health{
		Status:      "ok",
		Connected:   h.conn.IsConnected(),
		Subscribers: h.hub.SubscriberCount(),
	})
}

// Close disconnects every client.
func (h *Handler) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (h *Handler) track(c *client, add bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if add {
		h.clients[c] = struct{}{}
	} else {
		delete(h.clients, c)
	}
}
