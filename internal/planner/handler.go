package planner

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/route-planner/internal/maps"
	"github.com/richxcame/route-planner/pkg/async"
	"github.com/richxcame/route-planner/pkg/common"
	"github.com/richxcame/route-planner/pkg/logger"
	"github.com/richxcame/route-planner/pkg/websocket"
)

// Websocket message types sent by planning clients
const (
	MessageQuery    = "query"
	MessageSelect   = "select"
	MessagePosition = "position"
)

// Handler exposes planning sessions over HTTP and WebSocket.
type Handler struct {
	registry *Registry
	ws       *websocket.Handler
}

// NewHandler creates a new planner handler. A nil ws handler disables the stream endpoint.
func NewHandler(registry *Registry, ws *websocket.Handler) *Handler {
	return &Handler{registry: registry, ws: ws}
}

type positionRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
}

type queryRequest struct {
	Text string `json:"text" binding:"max=256"`
}

type selectRequest struct {
	Description string `json:"description" binding:"required,max=512"`
}

// CreateSession starts a new planning session
func (h *Handler) CreateSession(c *gin.Context) {
	o := h.registry.Create()
	common.CreatedResponse(c, o.Snapshot())
}

// GetSession returns the current snapshot
func (h *Handler) GetSession(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}
	common.SuccessResponse(c, o.Snapshot())
}

// DeleteSession ends a planning session
func (h *Handler) DeleteSession(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id", "session id")
	if !ok {
		return
	}

	if !h.registry.Delete(id.String()) {
		common.AppErrorResponse(c, common.NewNotFoundError("session not found", nil))
		return
	}

	c.Status(http.StatusNoContent)
}

// SetPosition records the device location fix
func (h *Handler) SetPosition(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}

	var req positionRequest
	if !common.BindJSON(c, &req) {
		return
	}

	common.SuccessResponse(c, o.SetCurrentPosition(req.coordinate()))
}

// SetQuery handles a change of the search box text
func (h *Handler) SetQuery(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}

	var req queryRequest
	if !common.BindJSON(c, &req) {
		return
	}

	common.SuccessResponse(c, o.SetQuery(detach(c), req.Text))
}

// SelectCandidate handles the user picking a candidate
func (h *Handler) SelectCandidate(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}

	var req selectRequest
	if !common.BindJSON(c, &req) {
		return
	}

	common.SuccessResponse(c, o.SelectCandidate(detach(c), req.Description))
}

// Dispatch sends the active route to the vehicle
func (h *Handler) Dispatch(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}

	err := o.Dispatch(c.Request.Context())
	switch {
	case err == nil:
		common.SuccessResponse(c, gin.H{"dispatched": true})
	case errors.Is(err, ErrNothingToDispatch):
		common.AppErrorResponse(c, common.NewConflictError("no active route to dispatch", err).WithErrorCode("NOTHING_TO_DISPATCH"))
	case errors.Is(err, ErrDispatchUnavailable):
		common.AppErrorResponse(c, common.NewServiceUnavailableError("dispatch is disabled", err).WithErrorCode("DISPATCH_DISABLED"))
	default:
		common.HandleServiceError(c, common.NewAppError(http.StatusBadGateway, "failed to dispatch route", err).WithErrorCode("DISPATCH_FAILED"), "failed to dispatch route")
	}
}

// Stream upgrades to a WebSocket that receives a snapshot after every change
func (h *Handler) Stream(c *gin.Context) {
	o, ok := h.session(c)
	if !ok {
		return
	}

	if h.ws == nil {
		common.ErrorResponse(c, http.StatusNotFound, "snapshot stream disabled")
		return
	}

	h.ws.ServeSession(c, o.SessionID(), func(client *websocket.Client) {
		msg, err := websocket.NewMessage(websocket.TypeSnapshot, o.SessionID(), o.Snapshot())
		if err == nil {
			client.SendMessage(msg)
		}
	})
}

// RegisterRoutes registers planner routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1/sessions")
	{
		api.POST("", h.CreateSession)
		api.GET("/:id", h.GetSession)
		api.DELETE("/:id", h.DeleteSession)
		api.PUT("/:id/position", h.SetPosition)
		api.PUT("/:id/query", h.SetQuery)
		api.POST("/:id/select", h.SelectCandidate)
		api.POST("/:id/dispatch", h.Dispatch)
		api.GET("/:id/ws", h.Stream)
	}
}

// RegisterMessageHandlers lets WebSocket clients drive their session directly.
// Results arrive as snapshot messages.
func (h *Handler) RegisterMessageHandlers(hub *websocket.Hub) {
	hub.RegisterHandler(MessageQuery, h.wsHandler(func(ctx context.Context, o *Orchestrator, msg *websocket.Message) error {
		var req queryRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		o.SetQuery(ctx, req.Text)
		return nil
	}))

	hub.RegisterHandler(MessageSelect, h.wsHandler(func(ctx context.Context, o *Orchestrator, msg *websocket.Message) error {
		var req selectRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		if req.Description == "" {
			return errors.New("description is required")
		}
		o.SelectCandidate(ctx, req.Description)
		return nil
	}))

	hub.RegisterHandler(MessagePosition, h.wsHandler(func(ctx context.Context, o *Orchestrator, msg *websocket.Message) error {
		var req positionRequest
		if err := msg.Decode(&req); err != nil {
			return err
		}
		if req.Latitude == nil || req.Longitude == nil {
			return errors.New("latitude and longitude are required")
		}
		coord := req.coordinate()
		if !coord.IsValid() {
			return errors.New("coordinate out of range")
		}
		o.SetCurrentPosition(coord)
		return nil
	}))
}

// wsHandler runs op on its own goroutine so a slow remote call never blocks
// the connection's read loop.
func (h *Handler) wsHandler(op func(context.Context, *Orchestrator, *websocket.Message) error) websocket.MessageHandler {
	return func(client *websocket.Client, msg *websocket.Message) {
		o, ok := h.registry.Get(client.SessionID)
		if !ok {
			client.SendMessage(websocket.NewErrorMessage(client.SessionID, "session not found"))
			return
		}

		ctx := logger.ContextWithSessionID(context.Background(), client.SessionID)
		async.GoWithCallback(ctx, "ws."+msg.Type, func(ctx context.Context) error {
			return op(ctx, o, msg)
		}, func(err error) {
			if err != nil {
				client.SendMessage(websocket.NewErrorMessage(client.SessionID, err.Error()))
			}
		})
	}
}

func (h *Handler) session(c *gin.Context) (*Orchestrator, bool) {
	id, ok := common.ParseUUIDParam(c, "id", "session id")
	if !ok {
		return nil, false
	}

	o, found := h.registry.Get(id.String())
	if !found {
		common.AppErrorResponse(c, common.NewNotFoundError("session not found", nil))
		return nil, false
	}

	c.Request = c.Request.WithContext(logger.ContextWithSessionID(c.Request.Context(), id.String()))
	return o, true
}

func (r positionRequest) coordinate() maps.Coordinate {
	return maps.Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude}
}

// detach keeps request values (correlation id, span) but not cancellation:
// a client disconnect must not abort a call whose result other viewers of the
// session are waiting for.
func detach(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
