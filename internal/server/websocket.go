package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/SmitUplenchwar2687/splitghost/internal/timersync"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Local tool, any origin.
	},
}

// Hub manages dashboard WebSocket clients and broadcasts timer events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	log     logrus.FieldLogger
}

// NewHub creates a new WebSocket hub.
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		log:     log.WithField("component", "hub"),
	}
}

// HandleWebSocket upgrades the HTTP connection and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	// Read until the peer goes away.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Broadcast sends v as JSON to all connected WebSocket clients.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Warn("websocket marshal failed")
		return
	}

	// gorilla allows one concurrent writer per connection.
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.WithError(err).Debug("websocket write failed")
			conn.Close()
			// The read goroutine removes it.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LineHandler serves the timer protocol over WebSocket, one line per
// text frame, for clients using the websocket transport.
func LineHandler(ls *LineServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			ls.log.WithError(err).Warn("livesplit upgrade failed")
			return
		}
		ls.ServeConn(timersync.NewWebSocketStream(conn), r.RemoteAddr)
	}
}
