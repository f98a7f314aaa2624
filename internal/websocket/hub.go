package websocket

import (
	"encoding/json"
	"sync"

	"github.com/ciptatunaskarya/ppdb-backend/pkg/logger"
)

// Event types pushed to staff dashboards.
const (
	EventRegistrationSubmitted = "registration_submitted"
	EventPaymentReceived       = "payment_received"
	EventRegistrationVerified  = "registration_verified"
)

// Event is one dashboard feed message.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client is one connected staff dashboard session. A staff member may have
// several sessions open at once.
type Client struct {
	Hub    *Hub
	Conn   *Conn
	UserID uint
	Send   chan []byte
}

// Hub fans admission events out to every connected staff session. The feed is
// one-way; clients only receive.
type Hub struct {
	clients map[uint][]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint][]*Client),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan []byte, 256),
	}
}

// Run processes register, unregister and broadcast events. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			logger.Info("Dashboard feed client connected", map[string]interface{}{
				"user_id":        client.UserID,
				"total_sessions": len(h.clients[client.UserID]),
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if clientList, ok := h.clients[client.UserID]; ok {
				newList := make([]*Client, 0, len(clientList))
				for _, c := range clientList {
					if c != client {
						newList = append(newList, c)
					}
				}
				if len(newList) == 0 {
					delete(h.clients, client.UserID)
				} else {
					h.clients[client.UserID] = newList
				}
				close(client.Send)
			}
			h.mu.Unlock()
			logger.Info("Dashboard feed client disconnected", map[string]interface{}{
				"user_id": client.UserID,
			})

		case message := <-h.broadcast:
			h.mu.RLock()
			for userID, clientList := range h.clients {
				for _, client := range clientList {
					select {
					case client.Send <- message:
					default:
						// Send buffer full, drop the session
						go h.Unregister(client)
						logger.Warn("Dashboard feed buffer full, disconnecting", map[string]interface{}{
							"user_id": userID,
						})
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast pushes an event to every connected session. Events are best
// effort; a full broadcast queue drops the event rather than blocking the
// caller.
func (h *Hub) Broadcast(eventType string, payload interface{}) error {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		logger.Error("Failed to marshal dashboard event", err, map[string]interface{}{
			"event_type": eventType,
		})
		return err
	}

	select {
	case h.broadcast <- data:
		return nil
	default:
		logger.Warn("Dashboard broadcast channel full, event dropped", map[string]interface{}{
			"event_type": eventType,
		})
		return nil
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ConnectedCount reports the number of open sessions, for the health endpoint.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clientList := range h.clients {
		count += len(clientList)
	}
	return count
}
