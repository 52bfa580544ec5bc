package websocket

import (
	"encoding/json"
	"sync"
)

const (
	EventBalance = "balance"
	EventBooking = "booking"
	EventMessage = "message"
)

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type BalanceUpdate struct {
	Balance string `json:"balance"`
	Reason  string `json:"reason"`
}

type BookingUpdate struct {
	BookingID string `json:"booking_id"`
	FlightID  string `json:"flight_id"`
	Status    string `json:"status"`
}

type MessageNotice struct {
	MessageID   string `json:"message_id"`
	SenderID    string `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
}

// Hub fans events out to every open connection of a user.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Send drops the event for clients whose buffers are full.
func (h *Hub) Send(userID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
