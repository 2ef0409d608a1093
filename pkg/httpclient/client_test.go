package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/richxcame/route-planner/pkg/logger"
	"github.com/richxcame/route-planner/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get_SendsQueryAndCorrelationID(t *testing.T) {
	var gotQuery url.Values
	var gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/place/autocomplete/json", r.URL.Path)
		gotQuery = r.URL.Query()
		gotRequestID = r.Header.Get(middleware.CorrelationIDHeader)
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	ctx := logger.ContextWithCorrelationID(context.Background(), "req-1")

	body, err := client.Get(ctx, "/place/autocomplete/json", url.Values{"input": {"cafe & bar"}}, nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"OK"}`, string(body))
	assert.Equal(t, "cafe & bar", gotQuery.Get("input"))
	assert.Equal(t, "req-1", gotRequestID)
}

func TestClient_Get_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	_, err := client.Get(context.Background(), "/x", nil, nil)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "down", httpErr.Body)
}

func TestClient_Get_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, 20*time.Millisecond)

	_, err := client.Get(context.Background(), "/slow", nil, nil)

	assert.Error(t, err)
}

func TestClient_Get_TransportErrorOmitsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewClient(baseURL, time.Second)

	_, err := client.Get(context.Background(), "/directions/json", url.Values{"key": {"secret-key"}}, nil)

	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestClient_Get_CustomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "planner-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	_, err := client.Get(context.Background(), "/", nil, map[string]string{"User-Agent": "planner-test"})

	assert.NoError(t, err)
}
