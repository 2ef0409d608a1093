package websocket

import (
	"context"
	"sync"

	"github.com/richxcame/route-planner/pkg/logger"
	"go.uber.org/zap"
)

// MessageHandler is a function that handles incoming messages
type MessageHandler func(*Client, *Message)

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by client ID
	clients map[string]*Client

	// Clients grouped by session ID
	sessions map[string]map[string]*Client

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Broadcast messages to sessions
	Broadcast chan *BroadcastMessage

	// Message handlers by message type
	handlers map[string]MessageHandler

	done chan struct{}

	mu sync.RWMutex
}

// BroadcastMessage represents a message to be broadcast
type BroadcastMessage struct {
	SessionID string   // empty means every client
	Message   *Message // Message to send
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		sessions:   make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *BroadcastMessage, 256),
		handlers:   make(map[string]MessageHandler),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	logger.Info("WebSocket hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			logger.Info("WebSocket hub stopped")
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case broadcast := <-h.Broadcast:
			h.broadcastMessage(broadcast)
		}
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[client.ID]; ok {
		h.removeLocked(existing)
	}

	h.clients[client.ID] = client
	if client.SessionID != "" {
		if _, ok := h.sessions[client.SessionID]; !ok {
			h.sessions[client.SessionID] = make(map[string]*Client)
		}
		h.sessions[client.SessionID][client.ID] = client
	}

	logger.Debug("WebSocket client registered",
		zap.String("client_id", client.ID),
		zap.String("session_id", client.SessionID),
	)
}

// unregisterClient removes a client from the hub
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

// removeLocked drops client and closes its send channel.
func (h *Hub) removeLocked(client *Client) {
	current, ok := h.clients[client.ID]
	if !ok || current != client {
		return
	}

	delete(h.clients, client.ID)
	if session, ok := h.sessions[client.SessionID]; ok {
		delete(session, client.ID)
		if len(session) == 0 {
			delete(h.sessions, client.SessionID)
		}
	}

	client.close()
	logger.Debug("WebSocket client unregistered",
		zap.String("client_id", client.ID),
		zap.String("session_id", client.SessionID),
	)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		h.removeLocked(client)
	}
}

// broadcastMessage sends a message to target clients
func (h *Hub) broadcastMessage(broadcast *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if broadcast.SessionID == "" {
		for _, client := range h.clients {
			client.SendMessage(broadcast.Message)
		}
		return
	}

	for _, client := range h.sessions[broadcast.SessionID] {
		client.SendMessage(broadcast.Message)
	}
}

// HandleMessage routes incoming messages to appropriate handlers
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, exists := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !exists {
		logger.Debug("No handler for message type",
			zap.String("type", msg.Type),
			zap.String("client_id", client.ID),
		)
		client.SendMessage(NewErrorMessage(client.SessionID, "unsupported message type: "+msg.Type))
		return
	}

	handler(client, msg)
}

// RegisterHandler registers a message handler for a specific type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

func (h *Hub) register(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// BroadcastToSession queues msg for every client watching sessionID.
func (h *Hub) BroadcastToSession(sessionID string, msg *Message) {
	select {
	case h.Broadcast <- &BroadcastMessage{SessionID: sessionID, Message: msg}:
	case <-h.done:
	}
}

// CloseSession disconnects every client watching sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sessions[sessionID] {
		h.removeLocked(client)
	}
}

// GetClient returns a client by ID
func (h *Hub) GetClient(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	return client, ok
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetSessionClientCount returns the number of clients watching sessionID
func (h *Hub) GetSessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
