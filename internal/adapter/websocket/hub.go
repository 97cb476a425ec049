package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/websocket/v2"

	"github.com/rentalku/relayd/internal/domain"
)

// Hub fans channel-state and expiry events out to connected clients.
// It is the presentation-side notifier: the core calls OnChannelsChanged
// and OnTimerExpired, and every connected operator UI sees the update.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound events to all clients.
	broadcast chan []byte

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	mu sync.RWMutex
}

type Client struct {
	hub *Hub
	// The websocket connection.
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// OnChannelsChanged implements ports.Notifier: pushes the full state
// snapshot whenever a channel's affordances change.
func (h *Hub) OnChannelsChanged(states []domain.ChannelState) {
	h.broadcastJSON(map[string]interface{}{
		"event":    "channels.changed",
		"channels": states,
	})
}

// OnTimerExpired implements ports.Notifier: pushes the completed usage
// summary when a timed session runs out.
func (h *Hub) OnTimerExpired(channelID int, record *domain.UsageRecord) {
	h.broadcastJSON(map[string]interface{}{
		"event":      "session.expired",
		"channel_id": channelID,
		"record":     record,
	})
}

func (h *Hub) broadcastJSON(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	// Drop instead of blocking the core when nobody is draining.
	select {
	case h.broadcast <- data:
	default:
	}
}

func (h *Hub) AddClient(conn *websocket.Conn) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	client.hub.register <- client

	go client.writePump()
	client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		// Clients only listen; the read loop just keeps the connection
		// alive and notices disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for message := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		// Flush any queued events into the same frame batch.
		n := len(c.send)
		for i := 0; i < n; i++ {
			w.Write(<-c.send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
