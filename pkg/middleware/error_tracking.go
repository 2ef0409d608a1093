package middleware

import (
	"fmt"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	apperrors "github.com/richxcame/route-planner/pkg/errors"
)

// SentryMiddleware attaches a per-request Sentry hub and reports panics.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorHandler records a breadcrumb per request and reports server-side failures.
// It should be placed after other middleware in the chain
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		ctx := c.Request.Context()

		apperrors.AddBreadcrumbForRequest(ctx, c.Request.Method, c.Request.URL.Path, statusCode, duration)

		extras := map[string]interface{}{
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
		}

		reported := false
		for _, ginErr := range c.Errors {
			if apperrors.ShouldReportError(ginErr.Err, statusCode) {
				apperrors.CaptureError(ctx, ginErr.Err, extras)
				reported = true
			}
		}

		if statusCode >= 500 && !reported {
			apperrors.CaptureError(ctx, fmt.Errorf("HTTP %d: %s %s", statusCode, c.Request.Method, c.FullPath()), extras)
		}
	}
}
