package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ikkim/storefront-cart/pkg/logger"
)

const (
	// Incoming messages allowed per client per second
	maxMessagesPerSecond = 10

	TypeCartState = "cart_state"
	TypeToast     = "toast"
	TypeRefresh   = "refresh"
)

// Message is what the server pushes to a browser.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientMessage is what a browser may send. Only "refresh" is understood.
type ClientMessage struct {
	Type string `json:"type"`
}

// MessageHandler receives the messages a browser sends for its client id.
type MessageHandler func(clientID string, msg ClientMessage)

// Client is one websocket connection. A client id may hold several (tabs).
type Client struct {
	Hub           *Hub
	Conn          *Conn
	ClientID      string
	Send          chan []byte
	MessageCount  int
	LastResetTime time.Time
	RateMu        sync.Mutex
}

type outbound struct {
	clientID string
	data     []byte
}

// Hub tracks open connections by client id and fans pushes out to them.
type Hub struct {
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}

	handler MessageHandler
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan outbound, 1024),
		done:       make(chan struct{}),
	}
}

// SetHandler installs the handler for incoming client messages. Call it
// before Run.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// Run processes registrations and pushes until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ClientID] = append(h.clients[client.ClientID], client)
			total := len(h.clients[client.ClientID])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"client_id":   client.ClientID,
				"connections": total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			remaining := h.remove(client)
			h.mu.Unlock()
			logger.Info("WebSocket client unregistered", map[string]interface{}{
				"client_id":   client.ClientID,
				"connections": remaining,
			})

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients[message.clientID] {
				select {
				case client.Send <- message.data:
				default:
					go h.Unregister(client)
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"client_id": message.clientID,
					})
				}
			}
			h.mu.RUnlock()
		}
	}
}

// remove drops client and closes its send channel. Callers hold h.mu.
func (h *Hub) remove(client *Client) int {
	list, ok := h.clients[client.ClientID]
	if !ok {
		return 0
	}

	kept := make([]*Client, 0, len(list))
	found := false
	for _, c := range list {
		if c == client {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return len(list)
	}

	if len(kept) == 0 {
		delete(h.clients, client.ClientID)
	} else {
		h.clients[client.ClientID] = kept
	}
	close(client.Send)
	return len(kept)
}

func (h *Hub) Stop() {
	close(h.done)
}

// SendToClient pushes message to every connection of clientID. Pushes are
// dropped when the hub is saturated.
func (h *Hub) SendToClient(clientID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Error("Failed to marshal websocket message", err, nil)
		return err
	}

	select {
	case h.broadcast <- outbound{clientID: clientID, data: data}:
	default:
		logger.Warn("Broadcast channel full, message dropped", map[string]interface{}{
			"client_id": clientID,
		})
	}
	return nil
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// IsConnected reports whether clientID has at least one open connection.
func (h *Hub) IsConnected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientID]
	return ok
}

// HandleClientMessage rate-limits and decodes one incoming message.
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.RateMu.Lock()
	now := time.Now()
	if now.Sub(client.LastResetTime) >= time.Second {
		client.MessageCount = 0
		client.LastResetTime = now
	}
	client.MessageCount++
	count := client.MessageCount
	client.RateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"client_id": client.ClientID,
			"count":     count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"client_id": client.ClientID,
			"error":     err.Error(),
		})
		return
	}

	if msg.Type != TypeRefresh {
		logger.Debug("Ignoring unknown client message", map[string]interface{}{
			"client_id": client.ClientID,
			"type":      msg.Type,
		})
		return
	}
	if h.handler != nil {
		h.handler(client.ClientID, msg)
	}
}
