package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

type contextKey string

const (
	correlationIDContextKey contextKey = "correlation_id"
	sessionIDContextKey     contextKey = "session_id"
)

// Init initializes the global logger
func Init(environment string) error {
	var err error
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	log, err = config.Build()
	if err != nil {
		return err
	}

	return nil
}

// Get returns the global logger instance
func Get() *zap.Logger {
	if log == nil {
		log, _ = zap.NewDevelopment()
	}
	return log
}

// WithContext returns a logger carrying the correlation and planning session IDs found in ctx.
func WithContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return Get()
	}

	l := Get()
	if correlationID := CorrelationIDFromContext(ctx); correlationID != "" {
		l = l.With(zap.String(string(correlationIDContextKey), correlationID))
	}
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		l = l.With(zap.String(string(sessionIDContextKey), sessionID))
	}

	return l
}

// ContextWithCorrelationID returns a context containing the provided correlation ID.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, correlationIDContextKey, correlationID)
}

// CorrelationIDFromContext extracts a correlation ID from the provided context if available.
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDContextKey)
}

// ContextWithSessionID returns a context tagged with a planning session ID.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}

// SessionIDFromContext extracts the planning session ID, if any.
func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, sessionIDContextKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}

	if value, ok := ctx.Value(key).(string); ok {
		return value
	}

	return ""
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

// InfoContext logs an info message enriched with context-aware fields.
func InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Info(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

// ErrorContext logs an error message enriched with context-aware fields.
func ErrorContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Error(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

// DebugContext logs a debug message enriched with context-aware fields.
func DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

// WarnContext logs a warning message enriched with context-aware fields.
func WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	WithContext(ctx).Warn(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	if log != nil {
		return log.Sync()
	}
	return nil
}

// SetForTest swaps the global logger and returns a func restoring the previous one.
func SetForTest(l *zap.Logger) func() {
	original := log
	log = l
	return func() { log = original }
}
