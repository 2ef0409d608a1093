package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/route-planner/internal/dispatch"
	"github.com/richxcame/route-planner/internal/maps"
	"github.com/richxcame/route-planner/internal/planner"
	"github.com/richxcame/route-planner/pkg/common"
	"github.com/richxcame/route-planner/pkg/config"
	"github.com/richxcame/route-planner/pkg/errors"
	"github.com/richxcame/route-planner/pkg/eventbus"
	"github.com/richxcame/route-planner/pkg/logger"
	"github.com/richxcame/route-planner/pkg/middleware"
	redisClient "github.com/richxcame/route-planner/pkg/redis"
	"github.com/richxcame/route-planner/pkg/resilience"
	"github.com/richxcame/route-planner/pkg/tracing"
	"github.com/richxcame/route-planner/pkg/websocket"
	"go.uber.org/zap"
)

const (
	serviceName = "route-planner"
	version     = "1.0.0"

	sessionSweepInterval = time.Minute
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting route planner",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Initialize Sentry for error tracking
	sentryEnabled, err := errors.InitSentry(errors.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Server.Environment,
		Release:          version,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		ServerName:       serviceName,
	})
	if err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else if sentryEnabled {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized")
	}

	// Initialize OpenTelemetry tracer
	tp, err := tracing.InitTracer(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	}, logger.Get())
	if err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
	} else if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to shutdown tracer", zap.Error(err))
			}
		}()
	}

	healthChecks := make(map[string]common.Checker)

	// Response cache is optional; the planner works without it.
	var cache redisClient.ClientInterface
	if cfg.Maps.CacheEnabled {
		redis, err := redisClient.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, maps responses will not be cached", zap.Error(err))
		} else {
			defer redis.Close()
			cache = redis
			healthChecks["redis"] = redis.HealthCheck
			logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.RedisAddr()))
		}
	}

	if cfg.Maps.APIKey == "" {
		logger.Warn("GOOGLE_MAPS_API_KEY not set, maps requests will be rejected upstream")
	}
	provider := maps.NewGoogleMapsProvider(maps.ProviderConfig{
		APIKey:  cfg.Maps.APIKey,
		BaseURL: cfg.Maps.BaseURL,
		Timeout: cfg.Maps.Timeout(),
	})
	if cfg.Resilience.CircuitBreaker.Enabled {
		breaker := maps.NewCircuitBreaker(cfg.Resilience.CircuitBreaker.SettingsFor("google-maps"))
		provider.SetCircuitBreaker(breaker)
		healthChecks["google-maps"] = func(context.Context) error {
			if !breaker.Allow() {
				return resilience.ErrCircuitOpen
			}
			return nil
		}
		logger.Info("Circuit breaker enabled for Google Maps")
	}

	mapsConfig := maps.DefaultConfig()
	mapsConfig.CacheEnabled = cfg.Maps.CacheEnabled
	mapsConfig.CacheTTL = cfg.Maps.CacheTTL()
	mapsService := maps.NewService(provider, cache, mapsConfig)

	opts := planner.Options{MinQueryLength: cfg.Planner.MinQueryLength}
	if cfg.Dispatch.Enabled {
		bus, err := eventbus.New(eventbus.Config{
			URL:        cfg.NATS.URL,
			Name:       serviceName,
			StreamName: cfg.NATS.StreamName,
		})
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()
		healthChecks["nats"] = func(context.Context) error {
			if !bus.Connected() {
				return fmt.Errorf("nats disconnected")
			}
			return nil
		}

		opts.Dispatcher = dispatch.NewNATSDispatcher(bus, dispatch.Config{
			Source:       serviceName,
			H3Resolution: cfg.Dispatch.H3Resolution,
			Timeout:      cfg.Dispatch.Timeout(),
		})
		logger.Info("Route dispatch enabled", zap.String("stream", cfg.NATS.StreamName))
	} else {
		logger.Info("Route dispatch disabled")
	}

	hub := websocket.NewHub()
	go hub.Run(rootCtx)

	registry := planner.NewRegistry(mapsService, opts, hub)
	registry.StartJanitor(rootCtx, sessionSweepInterval, cfg.Planner.SessionIdleTimeout())

	handler := planner.NewHandler(registry, websocket.NewHandler(hub, cfg.Server.AllowedOrigins()))
	handler.RegisterMessageHandlers(hub)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}
	router.Use(middleware.ErrorHandler())

	// Health check endpoints
	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/health/live", common.LivenessProbe(serviceName, version))
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": serviceName, "version": version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	registry.Close()
	cancelRoot()

	logger.Info("Server stopped")
}
