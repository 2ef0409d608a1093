package errors

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/route-planner/pkg/logger"
)

// SentryConfig holds configuration for Sentry integration
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	ServerName       string
}

// InitSentry initializes the Sentry SDK. An empty DSN leaves error tracking disabled.
func InitSentry(config SentryConfig) (bool, error) {
	if config.DSN == "" {
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Release:          config.Release,
		TracesSampleRate: config.TracesSampleRate,
		EnableTracing:    config.TracesSampleRate > 0,
		ServerName:       config.ServerName,
		AttachStacktrace: true,
		BeforeBreadcrumb: func(breadcrumb *sentry.Breadcrumb, hint *sentry.BreadcrumbHint) *sentry.Breadcrumb {
			if breadcrumb.Category == "http" && breadcrumb.Data != nil {
				delete(breadcrumb.Data, "Authorization")
				delete(breadcrumb.Data, "Cookie")
			}
			return breadcrumb
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return true, nil
}

// Flush flushes the Sentry buffer
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// CaptureError reports err with the correlation and session IDs carried by ctx.
func CaptureError(ctx context.Context, err error, extras map[string]interface{}) *sentry.EventID {
	if err == nil {
		return nil
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	var eventID *sentry.EventID
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			scope.SetTag("correlation_id", correlationID)
		}
		if sessionID := logger.SessionIDFromContext(ctx); sessionID != "" {
			scope.SetTag("session_id", sessionID)
		}
		eventID = hub.CaptureException(err)
	})

	return eventID
}

// AddBreadcrumbForRequest adds a breadcrumb for HTTP request
func AddBreadcrumbForRequest(ctx context.Context, method, url string, statusCode int, duration time.Duration) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "http",
		Category:  "http.request",
		Level:     sentry.LevelInfo,
		Message:   fmt.Sprintf("%s %s", method, url),
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"method":      method,
			"url":         url,
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
		},
	}, nil)
}

// ShouldReportError reports server-side failures only; client errors are the caller's problem.
func ShouldReportError(err error, statusCode int) bool {
	if err == nil {
		return false
	}

	return statusCode >= http.StatusInternalServerError || statusCode == http.StatusTooManyRequests
}
