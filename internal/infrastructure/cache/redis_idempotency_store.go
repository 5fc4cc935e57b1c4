package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces idempotency keys in Redis
const DefaultKeyPrefix = "devicecenter:event:idempotency:"

// RedisIdempotencyStore implements IdempotencyStore on Redis so that every
// instance of the service shares delivery state
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore connects to Redis and verifies the connection
func NewRedisIdempotencyStore(ctx context.Context, cfg config.RedisConfig, keyPrefix string) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	return NewRedisIdempotencyStoreWithClient(client, keyPrefix), nil
}

// NewRedisIdempotencyStoreWithClient creates a store over an existing client
func NewRedisIdempotencyStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed records key with SET NX and a TTL in one round trip
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s as processed: %w", key, err)
	}
	return ok, nil
}

// IsProcessed checks whether key is present
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return n > 0, nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
