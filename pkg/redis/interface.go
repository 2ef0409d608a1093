package redis

import (
	"context"
	"time"
)

// ClientInterface defines the interface for Redis operations
type ClientInterface interface {
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)
