package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Maps       MapsConfig
	Planner    PlannerConfig
	Redis      RedisConfig
	NATS       NATSConfig
	Dispatch   DispatchConfig
	Resilience ResilienceConfig
	Tracing    TracingConfig
	Sentry     SentryConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string `validate:"required,numeric"`
	Environment  string `validate:"required,oneof=development staging production test"`
	ServiceName  string `validate:"required"`
	ReadTimeout  int    `validate:"min=1"`
	WriteTimeout int    `validate:"min=1"`
	CORSOrigins  string // Comma-separated list of allowed origins
}

// MapsConfig configures the Google Maps Platform client.
type MapsConfig struct {
	APIKey          string
	BaseURL         string `validate:"required,url"`
	TimeoutSeconds  int    `validate:"min=1"`
	CacheEnabled    bool
	CacheTTLSeconds int `validate:"min=0"`
}

// PlannerConfig tunes the search orchestrator.
type PlannerConfig struct {
	MinQueryLength     int `validate:"min=1"`
	SessionIdleMinutes int `validate:"min=1"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int `validate:"min=0,max=15"`
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL        string
	StreamName string
}

// DispatchConfig controls route dispatch to the vehicle.
type DispatchConfig struct {
	Enabled        bool
	H3Resolution   int `validate:"min=0,max=15"`
	PublishTimeout int `validate:"min=1"`
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-service breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream service
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRate   float64 `validate:"min=0,max=1"`
}

// SentryConfig configures error tracking.
type SentryConfig struct {
	DSN              string
	TracesSampleRate float64 `validate:"min=0,max=1"`
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 30),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:8081"),
		},
		Maps: MapsConfig{
			APIKey:          getEnv("GOOGLE_MAPS_API_KEY", ""),
			BaseURL:         getEnv("MAPS_BASE_URL", "https://maps.googleapis.com/maps/api"),
			TimeoutSeconds:  getEnvAsInt("MAPS_TIMEOUT_SECONDS", 10),
			CacheEnabled:    getEnvAsBool("MAPS_CACHE_ENABLED", true),
			CacheTTLSeconds: getEnvAsInt("MAPS_CACHE_TTL_SECONDS", 300),
		},
		Planner: PlannerConfig{
			MinQueryLength:     getEnvAsInt("SEARCH_MIN_QUERY_LENGTH", 1),
			SessionIdleMinutes: getEnvAsInt("SESSION_IDLE_TIMEOUT_MINUTES", 30),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:        getEnv("NATS_URL", "nats://localhost:4222"),
			StreamName: getEnv("NATS_STREAM", "ROUTEPLANNER"),
		},
		Dispatch: DispatchConfig{
			Enabled:        getEnvAsBool("DISPATCH_ENABLED", false),
			H3Resolution:   getEnvAsInt("DISPATCH_H3_RESOLUTION", 9),
			PublishTimeout: getEnvAsInt("DISPATCH_TIMEOUT_SECONDS", 5),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvAsFloat("OTEL_SAMPLE_RATE", 1.0),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			TracesSampleRate: getEnvAsFloat("SENTRY_TRACES_SAMPLE_RATE", 0.1),
		},
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Server.Environment == "production" && c.Maps.APIKey == "" {
		return fmt.Errorf("invalid configuration: GOOGLE_MAPS_API_KEY is required in production")
	}

	if c.Dispatch.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("invalid configuration: NATS_URL is required when dispatch is enabled")
	}

	return nil
}

// SettingsFor returns effective breaker settings for a specific upstream service name
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if override, ok := c.ServiceOverrides[service]; ok {
		if override.FailureThreshold > 0 {
			settings.FailureThreshold = override.FailureThreshold
		}
		if override.SuccessThreshold > 0 {
			settings.SuccessThreshold = override.SuccessThreshold
		}
		if override.TimeoutSeconds > 0 {
			settings.TimeoutSeconds = override.TimeoutSeconds
		}
		if override.IntervalSeconds > 0 {
			settings.IntervalSeconds = override.IntervalSeconds
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// Timeout returns the per-request transport timeout for Maps calls.
// SessionIdleTimeout returns how long an untouched session is kept.
func (c PlannerConfig) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

func (c MapsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long successful Maps responses are cached.
func (c MapsConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// AllowedOrigins splits CORSOrigins into a trimmed list.
func (c ServerConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// Timeout bounds a single dispatch publish.
func (c DispatchConfig) Timeout() time.Duration {
	return time.Duration(c.PublishTimeout) * time.Second
}
