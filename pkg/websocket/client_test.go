package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_SendMessageDropsWhenFull(t *testing.T) {
	c := NewClient("a", "s1", nil, NewHub(), zap.NewNop())

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, c.SendMessage(NewErrorMessage("s1", "x")))
	}

	assert.False(t, c.SendMessage(NewErrorMessage("s1", "overflow")))
	assert.Equal(t, 1, c.Dropped())
	assert.Len(t, c.Send, sendBufferSize)
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 123000000, time.UTC)
	msg := &Message{Type: TypeSnapshot, SessionID: "s1", Timestamp: ts, Data: json.RawMessage(`{"version":2}`)}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":"2024-05-01T12:30:00.123Z"`)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeSnapshot, decoded.Type)
	assert.Equal(t, "s1", decoded.SessionID)
	assert.True(t, ts.Equal(decoded.Timestamp))
	assert.JSONEq(t, `{"version":2}`, string(decoded.Data))
}

func TestMessage_UnmarshalInvalidTimestamp(t *testing.T) {
	var msg Message
	err := json.Unmarshal([]byte(`{"type":"query","timestamp":"yesterday"}`), &msg)
	assert.Error(t, err)
}

func TestMessage_DecodeEmptyData(t *testing.T) {
	var body struct {
		Text string `json:"text"`
	}
	require.NoError(t, (&Message{Type: "query"}).Decode(&body))
	assert.Empty(t, body.Text)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:8081"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://localhost:8081")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.True(t, originChecker([]string{"*"})(req))
}

func TestHandler_ServeSessionEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)
	echoed := make(chan string, 1)
	hub.RegisterHandler("ping", func(c *Client, msg *Message) {
		echoed <- c.SessionID
	})

	handler := NewHandler(hub, []string{"*"})
	router := gin.New()
	router.GET("/ws/:id", func(c *gin.Context) {
		handler.ServeSession(c, c.Param("id"), func(client *Client) {
			client.SendMessage(NewErrorMessage(client.SessionID, "hello"))
		})
	})
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/s1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var greeting Message
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, TypeError, greeting.Type)
	assert.Equal(t, "s1", greeting.SessionID)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	select {
	case sessionID := <-echoed:
		assert.Equal(t, "s1", sessionID)
	case <-time.After(time.Second):
		t.Fatal("handler not invoked")
	}

	assert.Eventually(t, func() bool { return hub.GetSessionClientCount("s1") == 1 }, time.Second, 10*time.Millisecond)
}
