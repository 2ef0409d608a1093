package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")

	cfg, err := Load("planner")

	require.NoError(t, err)
	assert.Equal(t, "planner", cfg.Server.ServiceName)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://maps.googleapis.com/maps/api", cfg.Maps.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Maps.Timeout())
	assert.Equal(t, 5*time.Minute, cfg.Maps.CacheTTL())
	assert.Equal(t, 1, cfg.Planner.MinQueryLength)
	assert.Equal(t, 30*time.Minute, cfg.Planner.SessionIdleTimeout())
	assert.False(t, cfg.Dispatch.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.Timeout())
	assert.Equal(t, "localhost:6379", cfg.Redis.RedisAddr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("GOOGLE_MAPS_API_KEY", "key-123")
	t.Setenv("MAPS_TIMEOUT_SECONDS", "3")
	t.Setenv("SEARCH_MIN_QUERY_LENGTH", "3")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("CB_SERVICE_OVERRIDES", `{"google-maps":{"failure_threshold":2}}`)

	cfg, err := Load("planner")

	require.NoError(t, err)
	assert.Equal(t, "key-123", cfg.Maps.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Maps.Timeout())
	assert.Equal(t, 3, cfg.Planner.MinQueryLength)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins())
	assert.Equal(t, 2, cfg.Resilience.CircuitBreaker.SettingsFor("google-maps").FailureThreshold)
	assert.Equal(t, 5, cfg.Resilience.CircuitBreaker.SettingsFor("other").FailureThreshold)
}

func TestLoad_InvalidBreakerOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("CB_SERVICE_OVERRIDES", "{not json")

	_, err := Load("planner")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CB_SERVICE_OVERRIDES")
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero min query length", env: map[string]string{"SEARCH_MIN_QUERY_LENGTH": "0"}},
		{name: "non numeric port", env: map[string]string{"PORT": "http"}},
		{name: "unknown environment", env: map[string]string{"ENVIRONMENT": "qa"}},
		{name: "missing key in production", env: map[string]string{"ENVIRONMENT": "production"}},
		{name: "bad base url", env: map[string]string{"MAPS_BASE_URL": "not a url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", "test")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("planner")

			assert.Error(t, err)
		})
	}
}

func TestSettingsFor_FillsZeroDefaults(t *testing.T) {
	settings := CircuitBreakerConfig{}.SettingsFor("google-maps")

	assert.Equal(t, CircuitBreakerSettings{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		TimeoutSeconds:   30,
		IntervalSeconds:  60,
	}, settings)
}
