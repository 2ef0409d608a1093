// Package async starts background tasks that keep the caller's correlation id,
// session id and trace span but not its cancellation.
package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/richxcame/route-planner/pkg/logger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TaskContext holds the values propagated to an async task
type TaskContext struct {
	CorrelationID string
	SessionID     string
	SpanContext   trace.SpanContext
	StartTime     time.Time
	TaskName      string
}

// CaptureContext captures the current context values for async propagation
func CaptureContext(ctx context.Context, taskName string) TaskContext {
	return TaskContext{
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		SessionID:     logger.SessionIDFromContext(ctx),
		SpanContext:   trace.SpanContextFromContext(ctx),
		StartTime:     time.Now(),
		TaskName:      taskName,
	}
}

// NewContext creates a fresh background context carrying the captured values
func (tc TaskContext) NewContext() context.Context {
	ctx := context.Background()
	if tc.CorrelationID != "" {
		ctx = logger.ContextWithCorrelationID(ctx, tc.CorrelationID)
	}
	if tc.SessionID != "" {
		ctx = logger.ContextWithSessionID(ctx, tc.SessionID)
	}
	if tc.SpanContext.IsValid() {
		ctx = trace.ContextWithSpanContext(ctx, tc.SpanContext)
	}
	return ctx
}

// Go runs fn in a goroutine with context propagation and panic recovery
//
// Usage:
//
//	async.Go(ctx, "forward-snapshots", func(ctx context.Context) {
//	    registry.forward(ctx, id, updates)
//	})
func Go(ctx context.Context, taskName string, fn func(ctx context.Context)) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc, nil)

		newCtx := tc.NewContext()
		fn(newCtx)

		logger.DebugContext(newCtx, "async task completed",
			zap.String("task", tc.TaskName),
			zap.Duration("duration", time.Since(tc.StartTime)),
		)
	}()
}

// GoWithCallback runs fn in a goroutine and hands its result to callback.
// A panic in fn is reported to callback as an error.
func GoWithCallback(ctx context.Context, taskName string, fn func(ctx context.Context) error, callback func(error)) {
	tc := CaptureContext(ctx, taskName)

	go func() {
		defer recoverWithLogging(tc, callback)

		newCtx := tc.NewContext()
		err := fn(newCtx)

		if err != nil {
			logger.DebugContext(newCtx, "async task failed",
				zap.String("task", tc.TaskName),
				zap.Duration("duration", time.Since(tc.StartTime)),
				zap.Error(err),
			)
		}
		if callback != nil {
			callback(err)
		}
	}()
}

func recoverWithLogging(tc TaskContext, callback func(error)) {
	r := recover()
	if r == nil {
		return
	}
	logger.ErrorContext(tc.NewContext(), "async task panicked",
		zap.String("task", tc.TaskName),
		zap.Any("panic", r),
		zap.String("stack", string(debug.Stack())),
	)
	if callback != nil {
		callback(fmt.Errorf("task %s panicked: %v", tc.TaskName, r))
	}
}
