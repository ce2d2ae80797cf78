package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is a real-time frame pushed to connected clients: transient toasts
// and state-refresh events.
type Message struct {
	Type  string         `json:"type"`
	Level string         `json:"level,omitempty"`
	Text  string         `json:"text,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// ToastMessage builds a transient notification frame.
func ToastMessage(level, text string) Message {
	return Message{Type: "toast", Level: level, Text: text}
}

// EventMessage builds a state-change frame telling clients to refetch.
func EventMessage(event string, data map[string]any) Message {
	return Message{Type: event, Data: data}
}

// Hub maintains the set of active WebSocket clients, keyed by user, and
// routes messages to a single user's connections or to everyone.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// SendToUser delivers a message to every connection the user has open. A
// user with no open connections is a silent no-op; toasts are transient.
func (h *Hub) SendToUser(userID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop rather than block
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Toast satisfies the tracker's Notifier: outcomes surface on whatever
// devices the user has connected.
func (h *Hub) Toast(userID int64, level, message string) {
	h.SendToUser(userID, ToastMessage(level, message))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
