package common

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// CheckTimeout bounds a single readiness check.
const CheckTimeout = 2 * time.Second

// Checker probes one dependency. A nil error means healthy.
type Checker func(ctx context.Context) error

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
}

// CheckStatus represents the status of a single health check
type CheckStatus struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

var startTime = time.Now()

func statusResponse(status, serviceName, version string) HealthResponse {
	return HealthResponse{
		Status:    status,
		Service:   serviceName,
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
	}
}

// HealthCheck returns a health check handler
func HealthCheck(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, statusResponse("healthy", serviceName, version))
	}
}

// LivenessProbe reports that the process is up. It never checks dependencies.
func LivenessProbe(serviceName, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, statusResponse("alive", serviceName, version))
	}
}

// ReadinessProbe runs the dependency checks in parallel, each bounded by
// CheckTimeout, and returns 503 if any fails.
func ReadinessProbe(serviceName, version string, checks map[string]Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			results = make(map[string]CheckStatus, len(checks))
			healthy = true
		)

		for name, check := range checks {
			wg.Add(1)
			go func(name string, check Checker) {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(c.Request.Context(), CheckTimeout)
				defer cancel()

				start := time.Now()
				err := check(ctx)
				result := CheckStatus{Status: "healthy", Duration: time.Since(start).String()}
				if err != nil {
					result.Status = "unhealthy"
					result.Message = err.Error()
				}

				mu.Lock()
				results[name] = result
				if err != nil {
					healthy = false
				}
				mu.Unlock()
			}(name, check)
		}
		wg.Wait()

		resp := statusResponse("ready", serviceName, version)
		resp.Checks = results
		statusCode := http.StatusOK
		if !healthy {
			resp.Status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, resp)
	}
}
