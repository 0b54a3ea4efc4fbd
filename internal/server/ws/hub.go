// Package ws broadcasts resource-change events to connected observers.
// The sync core does not depend on it; it exists so other clients of the
// same backend can notice writes without polling.
package ws

import (
	"context"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/username/deskchat/internal/pkg/logutil"
)

// Event types published by the handlers
const (
	EventProjectCreated      = "project.created"
	EventProjectUpdated      = "project.updated"
	EventProjectDeleted      = "project.deleted"
	EventConversationCreated = "conversation.created"
	EventConversationUpdated = "conversation.updated"
	EventConversationDeleted = "conversation.deleted"
	EventMessageCreated      = "message.created"
)

// Event is one resource change
type Event struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// client is one connected observer
type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub manages WebSocket connections and fans events out to them
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	mu         stdsync.RWMutex
	logger     *logutil.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is left to a reverse proxy in deployment
		return true
	},
}

// NewHub creates a new event hub
func NewHub(logger *logutil.Logger) *Hub {
	if logger == nil {
		logger = logutil.NewDefault()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 64),
		logger:     logger.WithFields(logutil.Fields{"component": "ws.hub"}),
	}
}

// Run drives the hub until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Debug("observer connected")

		case c := <-h.unregister:
			h.removeClient(c)

		case event := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- event:
				default:
					// Slow observers are dropped rather than backing up the hub
					go func(c *client) { h.unregister <- c }(c)
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				c.conn.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.logger.Info("event hub shut down")
			return
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
		h.logger.Debug("observer disconnected")
	}
}

// Publish queues an event for broadcast; events are dropped if the hub is
// saturated
func (h *Hub) Publish(eventType string, data map[string]interface{}) {
	select {
	case h.broadcast <- Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()}:
	default:
		h.logger.Warn("event dropped, broadcast queue full", logutil.Fields{"type": eventType})
	}
}

// Handler upgrades an HTTP request to a WebSocket observer connection
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", logutil.Fields{"error": err.Error()})
			return
		}

		cl := &client{conn: conn, send: make(chan Event, 16)}
		h.register <- cl

		go cl.writePump()
		go cl.readPump(h)
	}
}

// writePump forwards queued events to the connection
func (c *client) writePump() {
	for event := range c.send {
		if err := c.conn.WriteJSON(event); err != nil {
			return
		}
	}
}

// readPump discards inbound frames; observers are read-only. It exists to
// notice the peer closing the connection.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
