package maps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/richxcame/route-planner/pkg/logger"
	redisclient "github.com/richxcame/route-planner/pkg/redis"
	"github.com/richxcame/route-planner/pkg/tracing"
	"go.uber.org/zap"
)

const tracerName = "route-planner/maps"

// Operation names used for cache keys, metrics and spans.
const (
	OpSearch  = "search"
	OpResolve = "resolve"
	OpRoute   = "route"
)

// Service is the maps client the planner talks to. It caches successful
// responses and turns every provider failure into a typed *Error.
type Service struct {
	provider Provider
	redis    redisclient.ClientInterface
	config   Config
}

// NewService creates a new maps service. A nil redis client disables caching.
func NewService(provider Provider, redis redisclient.ClientInterface, config Config) *Service {
	if config.CachePrefix == "" {
		config.CachePrefix = DefaultConfig().CachePrefix
	}

	return &Service{
		provider: provider,
		redis:    redis,
		config:   config,
	}
}

// Search returns autocomplete candidates for text.
func (s *Service) Search(ctx context.Context, text string) ([]Candidate, error) {
	candidates, err := execute(ctx, s, OpSearch, text, func(ctx context.Context) ([]Candidate, error) {
		return s.provider.Autocomplete(ctx, text)
	})
	if err != nil {
		return nil, s.fail(ctx, KindSearchUnavailable, OpSearch, err)
	}

	return candidates, nil
}

// Resolve turns a chosen description into a named location.
func (s *Service) Resolve(ctx context.Context, description string) (Place, error) {
	place, err := execute(ctx, s, OpResolve, description, func(ctx context.Context) (Place, error) {
		return s.provider.FindPlace(ctx, description)
	})
	if err != nil {
		return Place{}, s.fail(ctx, KindPlaceNotFound, OpResolve, err)
	}

	return place, nil
}

// Route fetches the route summary between origin and destination.
func (s *Service) Route(ctx context.Context, origin, destination Coordinate) (RouteSummary, error) {
	tracing.AddSpanAttributes(ctx, tracing.LocationAttributes(destination.Latitude, destination.Longitude)...)

	route, err := execute(ctx, s, OpRoute, origin.String()+"|"+destination.String(), func(ctx context.Context) (RouteSummary, error) {
		return s.provider.Directions(ctx, origin, destination)
	})
	if err != nil {
		return RouteSummary{}, s.fail(ctx, KindRouteUnavailable, OpRoute, err)
	}

	tracing.AddSpanAttributes(ctx,
		tracing.DistanceTextKey.String(route.DistanceText),
		tracing.DurationTextKey.String(route.DurationText),
	)

	return route, nil
}

func (s *Service) fail(ctx context.Context, kind ErrorKind, op string, err error) error {
	logger.WarnContext(ctx, "Maps call failed",
		zap.String("operation", op),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return newError(kind, op, err)
}

// execute serves op from cache when possible, otherwise calls fetch inside a span
// and caches the successful result.
func execute[T any](ctx context.Context, s *Service, op, input string, fetch func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	key := s.cacheKey(op, input)

	var result T
	if s.getFromCache(ctx, op, key, &result) {
		recordRequest(op, resultCacheHit, start)
		return result, nil
	}

	err := tracing.TraceExternalAPI(ctx, tracerName, "google-maps", op, func(ctx context.Context) error {
		var err error
		result, err = fetch(ctx)
		return err
	})
	if err != nil {
		recordRequest(op, resultError, start)
		var zero T
		return zero, err
	}

	recordRequest(op, resultOK, start)
	s.setCache(ctx, op, key, result)

	return result, nil
}

// Cache key generation

func (s *Service) cacheKey(op, input string) string {
	return s.config.CachePrefix + op + ":" + hashKey(input)
}

func hashKey(data string) string {
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// Redis cache operations

func (s *Service) cacheEnabled() bool {
	return s.config.CacheEnabled && s.redis != nil && s.config.CacheTTL > 0
}

func (s *Service) getFromCache(ctx context.Context, op, key string, out interface{}) bool {
	if !s.cacheEnabled() {
		return false
	}

	var cached string
	err := tracing.TraceRedisCommand(ctx, tracerName, "GET", key, func(ctx context.Context) error {
		var err error
		cached, err = s.redis.GetString(ctx, key)
		return err
	})
	if err != nil {
		if !redisclient.IsNil(err) {
			logger.WarnContext(ctx, "Maps cache read failed", zap.String("operation", op), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal([]byte(cached), out); err != nil {
		logger.WarnContext(ctx, "Discarding corrupt maps cache entry", zap.String("operation", op), zap.Error(err))
		return false
	}

	return true
}

func (s *Service) setCache(ctx context.Context, op, key string, value interface{}) {
	if !s.cacheEnabled() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	err = tracing.TraceRedisCommand(ctx, tracerName, "SET", key, func(ctx context.Context) error {
		return s.redis.SetWithExpiration(ctx, key, string(data), s.config.CacheTTL)
	})
	if err != nil {
		logger.WarnContext(ctx, "Maps cache write failed", zap.String("operation", op), zap.Error(err))
	}
}
