package cache

import (
	"context"
	"fmt"

	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewIdempotencyStore builds the store selected by cfg.IdempotencyBackend.
// When Redis is selected but unreachable, fallback decides between an
// in-memory store (logged) and an error.
func NewIdempotencyStore(
	ctx context.Context,
	cfg config.EventConfig,
	redisCfg config.RedisConfig,
	fallback bool,
	logger *zap.Logger,
) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.IdempotencyBackend {
	case "", "memory":
		return NewInMemoryIdempotencyStore(), nil
	case "redis":
		store, err := NewRedisIdempotencyStore(ctx, redisCfg, cfg.IdempotencyKeyPrefix)
		if err == nil {
			logger.Info("Using Redis idempotency store", zap.String("addr", redisCfg.Addr()))
			return store, nil
		}
		if !fallback {
			return nil, err
		}
		logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
			zap.String("addr", redisCfg.Addr()),
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore(), nil
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", cfg.IdempotencyBackend)
	}
}
