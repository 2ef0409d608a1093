package maps

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/richxcame/route-planner/pkg/config"
	"github.com/richxcame/route-planner/pkg/httpclient"
	"github.com/richxcame/route-planner/pkg/resilience"
)

// ProviderConfig holds configuration for a maps provider
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Config holds the service-level caching options
type Config struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	CachePrefix  string
}

// DefaultConfig returns the caching defaults
func DefaultConfig() Config {
	return Config{
		CacheEnabled: true,
		CacheTTL:     5 * time.Minute,
		CachePrefix:  "maps:",
	}
}

// NewCircuitBreaker builds the breaker guarding the maps upstream.
func NewCircuitBreaker(cfg config.CircuitBreakerSettings) *resilience.CircuitBreaker {
	settings := resilience.BuildSettings("google-maps", cfg)
	settings.IsSuccessful = upstreamHealthy
	return resilience.NewCircuitBreaker(settings)
}

// upstreamHealthy keeps caller mistakes and cancellations from tripping the breaker.
func upstreamHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}

	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests
	}

	return false
}
