package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const (
	// DefaultRate allows 20 requests per second per client
	DefaultRate = "20-S"

	rateLimitKeyPrefix = "plans_ratelimit"
)

// LimiterStore is the counter store behind the rate limiter together with the
// Redis client backing it, if any.
type LimiterStore struct {
	limiter.Store
	client *redis.Client
}

// NewLimiterStore returns a Redis-backed store when redisURL is set so that
// every server instance shares its counters, and an in-process store otherwise.
func NewLimiterStore(ctx context.Context, redisURL string) (*LimiterStore, error) {
	if redisURL == "" {
		return &LimiterStore{Store: memorystore.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitKeyPrefix,
			CleanUpInterval: time.Minute,
		})}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitKeyPrefix})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create Redis limiter store: %w", err)
	}
	return &LimiterStore{Store: store, client: client}, nil
}

// Shared reports whether counters are shared across instances
func (s *LimiterStore) Shared() bool {
	return s.client != nil
}

// Ping checks if Redis is reachable; the in-process store is always up
func (s *LimiterStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *LimiterStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
