package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/richxcame/route-planner/internal/maps"
	"github.com/richxcame/route-planner/pkg/common"
	"github.com/richxcame/route-planner/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotResponse struct {
	Success bool              `json:"success"`
	Data    Snapshot          `json:"data"`
	Error   *common.ErrorInfo `json:"error"`
}

func setupHandler(t *testing.T, dispatcher Dispatcher) (*gin.Engine, *fakeMaps, *Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFakeMaps()
	f.candidates["Cen"] = []maps.Candidate{{ID: "1", Description: "Central Park"}}
	f.places["Central Park"] = centralPark
	f.routes[centralPark.Location] = routeTo(t, "10 km")

	registry := NewRegistry(f, Options{Dispatcher: dispatcher}, nil)
	t.Cleanup(registry.Close)

	router := gin.New()
	NewHandler(registry, nil).RegisterRoutes(router)
	return router, f, registry
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, snapshotResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp snapshotResponse
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func createSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, resp.Success)
	return resp.Data.SessionID
}

func TestHandler_CreateAndGetSession(t *testing.T) {
	router, _, _ := setupHandler(t, nil)
	id := createSession(t, router)

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	w, resp := doRequest(t, router, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, resp.Data.SessionID)
	assert.NotNil(t, resp.Data.Candidates)
}

func TestHandler_UnknownAndInvalidSession(t *testing.T) {
	router, _, _ := setupHandler(t, nil)

	w, resp := doRequest(t, router, http.MethodGet, "/api/v1/sessions/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "session not found", resp.Error.Message)

	w, _ = doRequest(t, router, http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_SetPositionValidation(t *testing.T) {
	router, _, _ := setupHandler(t, nil)
	id := createSession(t, router)
	path := "/api/v1/sessions/" + id + "/position"

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"missing longitude", map[string]float64{"latitude": 1}, http.StatusBadRequest},
		{"latitude out of range", map[string]float64{"latitude": 91, "longitude": 0}, http.StatusBadRequest},
		{"longitude out of range", map[string]float64{"latitude": 0, "longitude": -181}, http.StatusBadRequest},
		{"zero is a valid fix", map[string]float64{"latitude": 0, "longitude": 0}, http.StatusOK},
		{"valid", map[string]float64{"latitude": 37, "longitude": -122}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := doRequest(t, router, http.MethodPut, path, tt.body)
			assert.Equal(t, tt.code, w.Code)
		})
	}

	_, resp := doRequest(t, router, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.NotNil(t, resp.Data.CurrentPosition)
	assert.Equal(t, home, *resp.Data.CurrentPosition)
}

func TestHandler_QuerySelectFlow(t *testing.T) {
	router, _, _ := setupHandler(t, nil)
	id := createSession(t, router)
	base := "/api/v1/sessions/" + id

	doRequest(t, router, http.MethodPut, base+"/position", map[string]float64{"latitude": 37, "longitude": -122})

	w, resp := doRequest(t, router, http.MethodPut, base+"/query", map[string]string{"text": "Cen"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cen", resp.Data.QueryText)
	require.Len(t, resp.Data.Candidates, 1)

	w, _ = doRequest(t, router, http.MethodPost, base+"/select", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = doRequest(t, router, http.MethodPost, base+"/select", map[string]string{"description": "Central Park"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Data.Candidates)
	require.NotNil(t, resp.Data.Destination)
	assert.Equal(t, "Central Park", resp.Data.Destination.Name)
	require.NotNil(t, resp.Data.ActiveRoute)
	assert.Equal(t, "10 km", resp.Data.ActiveRoute.DistanceText)
}

func TestHandler_EmptyQueryIsAccepted(t *testing.T) {
	router, f, _ := setupHandler(t, nil)
	id := createSession(t, router)

	w, resp := doRequest(t, router, http.MethodPut, "/api/v1/sessions/"+id+"/query", map[string]string{"text": ""})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, resp.Data.Candidates)
	assert.Equal(t, 0, f.callCount("search:"))
}

func TestHandler_SelectFailureReportsErrorKind(t *testing.T) {
	router, _, _ := setupHandler(t, nil)
	id := createSession(t, router)

	w, resp := doRequest(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/select", map[string]string{"description": "Central Park"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maps.KindNoOrigin, resp.Data.LastError)
}

func TestHandler_Dispatch(t *testing.T) {
	selectRoute := func(t *testing.T, router *gin.Engine) string {
		id := createSession(t, router)
		base := "/api/v1/sessions/" + id
		doRequest(t, router, http.MethodPut, base+"/position", map[string]float64{"latitude": 37, "longitude": -122})
		doRequest(t, router, http.MethodPost, base+"/select", map[string]string{"description": "Central Park"})
		return base + "/dispatch"
	}

	t.Run("nothing to dispatch", func(t *testing.T) {
		router, _, _ := setupHandler(t, &fakeDispatcher{})
		id := createSession(t, router)
		w, resp := doRequest(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/dispatch", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "NOTHING_TO_DISPATCH", resp.Error.ErrorCode)
	})

	t.Run("disabled", func(t *testing.T) {
		router, _, _ := setupHandler(t, nil)
		w, _ := doRequest(t, router, http.MethodPost, selectRoute(t, router), nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		router, _, _ := setupHandler(t, &fakeDispatcher{err: errUpstream})
		w, resp := doRequest(t, router, http.MethodPost, selectRoute(t, router), nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "DISPATCH_FAILED", resp.Error.ErrorCode)
	})

	t.Run("success", func(t *testing.T) {
		d := &fakeDispatcher{}
		router, _, _ := setupHandler(t, d)
		w, _ := doRequest(t, router, http.MethodPost, selectRoute(t, router), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, d.requests, 1)
	})
}

func TestHandler_DeleteSession(t *testing.T) {
	router, _, registry := setupHandler(t, nil)
	id := createSession(t, router)

	w, _ := doRequest(t, router, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, registry.Len())

	w, _ = doRequest(t, router, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_StreamDisabled(t *testing.T) {
	router, _, _ := setupHandler(t, nil)
	id := createSession(t, router)

	w, _ := doRequest(t, router, http.MethodGet, "/api/v1/sessions/"+id+"/ws", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_StreamPushesSnapshotsAndAcceptsMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	f := newFakeMaps()
	f.candidates["Cen"] = []maps.Candidate{{ID: "1", Description: "Central Park"}}
	registry := NewRegistry(f, Options{}, hub)
	defer registry.Close()

	handler := NewHandler(registry, websocket.NewHandler(hub, []string{"*"}))
	handler.RegisterMessageHandlers(hub)
	router := gin.New()
	handler.RegisterRoutes(router)
	server := httptest.NewServer(router)
	defer server.Close()

	o := registry.Create()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/sessions/" + o.SessionID() + "/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readSnapshot := func() Snapshot {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg websocket.Message
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, websocket.TypeSnapshot, msg.Type)
		var snap Snapshot
		require.NoError(t, json.Unmarshal(msg.Data, &snap))
		return snap
	}

	initial := readSnapshot()
	assert.Equal(t, o.SessionID(), initial.SessionID)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": MessageQuery,
		"data": map[string]string{"text": "Cen"},
	}))

	for {
		snap := readSnapshot()
		if len(snap.Candidates) > 0 {
			assert.Equal(t, "Central Park", snap.Candidates[0].Description)
			break
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": MessagePosition,
		"data": map[string]float64{"latitude": 95, "longitude": 0},
	}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var errMsg websocket.Message
	require.NoError(t, conn.ReadJSON(&errMsg))
	assert.Equal(t, websocket.TypeError, errMsg.Type)
}
