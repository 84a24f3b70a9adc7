// Package broadcast pushes parking snapshots to websocket subscribers.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/NotCoffee418/parking_bridge/pkg/parking"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

type Hub struct {
	current  func() parking.Snapshot
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewHub creates a hub. current supplies the snapshot sent to each new subscriber.
func NewHub(current func() parking.Snapshot) *Hub {
	return &Hub{
		current: current,
		upgrader: websocket.Upgrader{
			// Dashboard is served from arbitrary origins on the LAN.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

// ServeHTTP upgrades the request and keeps the subscriber until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.add(c)

	// Send current snapshot immediately
	if payload, err := json.Marshal(h.current()); err == nil {
		if err := c.write(payload); err != nil {
			h.remove(c)
			return
		}
	}

	// Keep connection alive, answers pings
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

// Broadcast sends snapshot to every subscriber, dropping those that fail.
func (h *Hub) Broadcast(snapshot parking.Snapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("Could not encode snapshot")
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			log.Debug().Err(err).Msg("Dropping websocket subscriber")
			h.remove(c)
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]bool)
	h.mu.Unlock()

	for c := range clients {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}
