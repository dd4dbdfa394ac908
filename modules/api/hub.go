package api

import (
	"sync"

	"github.com/example/roomchat/modules/session"
	"github.com/gofiber/contrib/websocket"
)

// Client is one WebSocket connection and the chat session it drives.
type Client struct {
	ID      string
	Conn    *websocket.Conn
	Session *session.Session

	writeMu sync.Mutex

	frameMu  sync.Mutex
	last     ClientMessage
	accepted uint64
	finished uint64
}

// frameQueueSize bounds the frames waiting behind the one being handled.
const frameQueueSize = 32

type queuedFrame struct {
	seq uint64
	msg ClientMessage
}

// accept numbers a frame for the worker. A frame identical to the previous
// one is refused while that one has not finished, so a double click acts once.
func (c *Client) accept(msg ClientMessage) (uint64, bool) {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	if c.accepted > c.finished && msg == c.last {
		return 0, false
	}
	c.accepted++
	c.last = msg
	return c.accepted, true
}

// finish marks frame seq as handled.
func (c *Client) finish(seq uint64) {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	c.finished = seq
}

// Send writes a frame. Snapshots arrive from subscription goroutines, so
// writes are serialized per connection.
func (c *Client) Send(msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(msg)
}

// Hub tracks connected clients.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll ends every session and closes every connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.Session.Close()
		c.writeMu.Lock()
		_ = c.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = c.Conn.Close()
		c.writeMu.Unlock()
	}
}
