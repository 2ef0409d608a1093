package async_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/richxcame/route-planner/pkg/async"
	"github.com/richxcame/route-planner/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func testContext() context.Context {
	ctx := logger.ContextWithCorrelationID(context.Background(), "corr-123")
	return logger.ContextWithSessionID(ctx, "session-1")
}

func TestCaptureContext(t *testing.T) {
	tc := async.CaptureContext(testContext(), "test-task")

	assert.Equal(t, "corr-123", tc.CorrelationID)
	assert.Equal(t, "session-1", tc.SessionID)
	assert.Equal(t, "test-task", tc.TaskName)
	assert.False(t, tc.StartTime.IsZero())
}

func TestTaskContext_NewContextDropsCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(testContext())
	tc := async.CaptureContext(parent, "test-task")
	cancel()

	ctx := tc.NewContext()
	assert.NoError(t, ctx.Err())
	assert.Equal(t, "corr-123", logger.CorrelationIDFromContext(ctx))
	assert.Equal(t, "session-1", logger.SessionIDFromContext(ctx))
}

func TestTaskContext_PropagatesSpanContext(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	parent := trace.ContextWithSpanContext(context.Background(), sc)

	ctx := async.CaptureContext(parent, "span-task").NewContext()
	assert.Equal(t, sc.TraceID(), trace.SpanContextFromContext(ctx).TraceID())
}

func TestGo_PropagatesContext(t *testing.T) {
	var captured string
	var wg sync.WaitGroup
	wg.Add(1)

	async.Go(testContext(), "test-task", func(ctx context.Context) {
		defer wg.Done()
		captured = logger.SessionIDFromContext(ctx)
	})

	wg.Wait()
	assert.Equal(t, "session-1", captured)
}

func TestGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	async.Go(context.Background(), "panic-task", func(ctx context.Context) {
		defer close(done)
		panic("test panic")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestGoWithCallback(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(ctx context.Context) error
		wantErr bool
	}{
		{name: "success", fn: func(ctx context.Context) error { return nil }},
		{name: "error", fn: func(ctx context.Context) error { return assert.AnError }, wantErr: true},
		{name: "panic", fn: func(ctx context.Context) error { panic("boom") }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := make(chan error, 1)
			async.GoWithCallback(context.Background(), "callback-task", tt.fn, func(err error) {
				result <- err
			})

			select {
			case err := <-result:
				if tt.wantErr {
					require.Error(t, err)
				} else {
					require.NoError(t, err)
				}
			case <-time.After(time.Second):
				t.Fatal("callback not called")
			}
		})
	}
}
