package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/richxcame/route-planner/pkg/logger"
	"go.uber.org/zap"
)

// Handler upgrades HTTP requests into hub clients.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates a handler accepting connections from allowedOrigins.
// "*" accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeSession upgrades the request and attaches the connection to sessionID.
// onConnect runs after registration, before the pumps start.
func (h *Handler) ServeSession(c *gin.Context, sessionID string, onConnect func(*Client)) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WarnContext(c.Request.Context(), "Failed to upgrade WebSocket", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), sessionID, conn, h.hub, logger.WithContext(c.Request.Context()))
	if !h.hub.register(client) {
		conn.Close()
		return
	}

	if onConnect != nil {
		onConnect(client)
	}

	go client.WritePump()
	go client.ReadPump()
}
