package websocket

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rmhse/rmhse_backend/models"
)

// Define notification types
const (
	NotificationTypeConnected          = "connected"
	NotificationTypeCommissionCredited = "commission_credited"
)

// ErrNotConnected is returned when the recipient has no open connection.
var ErrNotConnected = errors.New("user not connected")

// Notification represents a message sent over WebSocket
type Notification struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	UserID  string      `json:"userID,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	UserID primitive.ObjectID
	Conn   *websocket.Conn
	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
}

func (c *Client) send(n Notification) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(n)
}

// Hub tracks the latest connection of each user and pushes notifications to it.
type Hub struct {
	clients    map[primitive.ObjectID]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[primitive.ObjectID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop; it returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if previous, ok := h.clients[client.UserID]; ok && previous != client {
				previous.Conn.Close()
			}
			h.clients[client.UserID] = client
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.UserID]; ok && current == client {
				delete(h.clients, client.UserID)
			}
			h.mu.Unlock()
			client.Conn.Close()
		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				client.Conn.Close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and closes every connection.
func (h *Hub) Stop() {
	close(h.done)
}

// IsConnected reports whether userID has an open connection.
func (h *Hub) IsConnected(userID primitive.ObjectID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// SendToUser sends a message to a specific user
func (h *Hub) SendToUser(userID primitive.ObjectID, notification Notification) error {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return ErrNotConnected
	}
	return client.send(notification)
}

// NotifyPayout tells a recipient that commission landed on their balance.
func (h *Hub) NotifyPayout(userID primitive.ObjectID, event models.PayoutEvent) error {
	return h.SendToUser(userID, Notification{
		Type:    NotificationTypeCommissionCredited,
		Message: "Commission credited to your income",
		Data:    event,
		UserID:  userID.Hex(),
	})
}
