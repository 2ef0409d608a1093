package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendBufferSize = 32
)

// Message types exchanged with planning clients
const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds a message whose data is payload encoded as JSON.
func NewMessage(msgType, sessionID string, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// NewErrorMessage builds an error message carrying text.
func NewErrorMessage(sessionID, text string) *Message {
	msg, _ := NewMessage(TypeError, sessionID, map[string]string{"error": text})
	return msg
}

// Decode unmarshals the message data into out.
func (m *Message) Decode(out interface{}) error {
	if len(m.Data) == 0 {
		return json.Unmarshal([]byte("{}"), out)
	}
	return json.Unmarshal(m.Data, out)
}

// Client represents a WebSocket client connection
type Client struct {
	ID        string          // Unique connection identifier
	SessionID string          // Planning session the client watches
	Conn      *websocket.Conn // WebSocket connection
	Send      chan *Message   // Buffered channel of outbound messages
	Hub       *Hub
	logger    *zap.Logger

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewClient creates a new WebSocket client
func NewClient(id, sessionID string, conn *websocket.Conn, hub *Hub, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		ID:        id,
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan *Message, sendBufferSize),
		Hub:       hub,
		logger:    logger.With(zap.String("client_id", id), zap.String("session_id", sessionID)),
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		msg.Timestamp = time.Now().UTC()
		msg.SessionID = c.SessionID

		c.Hub.HandleMessage(c, &msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(message); err != nil {
				c.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues msg for the client. When the buffer is full or the
// client is gone the message is dropped and false is returned; snapshots are
// superseded by the next one anyway.
func (c *Client) SendMessage(msg *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.Send <- msg:
		return true
	default:
		c.dropped++
		c.logger.Warn("WebSocket client buffer full, dropping message",
			zap.String("type", msg.Type),
			zap.Int("dropped_total", c.dropped),
		)
		return false
	}
}

// close closes the send channel once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Dropped returns how many messages were dropped for this client.
func (c *Client) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// MarshalJSON custom JSON marshaling
func (m *Message) MarshalJSON() ([]byte, error) {
	type Alias Message
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: m.Timestamp.Format(time.RFC3339Nano),
		Alias:     (*Alias)(m),
	})
}

// UnmarshalJSON custom JSON unmarshaling
func (m *Message) UnmarshalJSON(data []byte) error {
	type Alias Message
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
		if err != nil {
			return err
		}
		m.Timestamp = t
	}

	return nil
}
