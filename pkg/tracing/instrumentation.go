package tracing

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Redis span attributes
const (
	RedisCommandKey = attribute.Key("redis.command")
	RedisKeyKey     = attribute.Key("redis.key")
)

// Planning span attributes
const (
	SessionIDKey         = attribute.Key("planner.session_id")
	RequestKindKey       = attribute.Key("planner.request_kind")
	RequestTagKey        = attribute.Key("planner.request_tag")
	ExternalServiceKey   = attribute.Key("external.service")
	ExternalOperationKey = attribute.Key("external.operation")
	ResultCountKey       = attribute.Key("result.count")
	DistanceTextKey      = attribute.Key("route.distance")
	DurationTextKey      = attribute.Key("route.duration")
	LocationLatitudeKey  = attribute.Key("location.latitude")
	LocationLongitudeKey = attribute.Key("location.longitude")
)

// TraceRedisCommand wraps a Redis command with tracing. A cache miss is not an error.
func TraceRedisCommand(ctx context.Context, tracerName, command, key string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("redis.%s", command),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "redis"),
		RedisCommandKey.String(command),
		RedisKeyKey.String(key),
	)

	err := fn(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// TraceExternalAPI wraps external API calls with tracing
func TraceExternalAPI(ctx context.Context, tracerName, serviceName, operation string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("%s.%s", serviceName, operation),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		ExternalServiceKey.String(serviceName),
		ExternalOperationKey.String(operation),
	)

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// LocationAttributes describes a coordinate on a span.
func LocationAttributes(latitude, longitude float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		LocationLatitudeKey.Float64(latitude),
		LocationLongitudeKey.Float64(longitude),
	}
}
