package errors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitSentry_EmptyDSNDisables(t *testing.T) {
	enabled, err := InitSentry(SentryConfig{})

	assert.NoError(t, err)
	assert.False(t, enabled)
}

func TestCaptureError_NilError(t *testing.T) {
	assert.Nil(t, CaptureError(context.Background(), nil, nil))
}

func TestShouldReportError(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		err    error
		status int
		want   bool
	}{
		{name: "nil error", err: nil, status: http.StatusInternalServerError, want: false},
		{name: "server error", err: boom, status: http.StatusBadGateway, want: true},
		{name: "rate limited", err: boom, status: http.StatusTooManyRequests, want: true},
		{name: "not found", err: boom, status: http.StatusNotFound, want: false},
		{name: "conflict", err: boom, status: http.StatusConflict, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldReportError(tt.err, tt.status))
		})
	}
}
