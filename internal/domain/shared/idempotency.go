package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers delivered event IDs so that at-least-once
// dispatch does not run a subscriber twice for the same event
type IdempotencyStore interface {
	// MarkProcessed returns true if the ID was newly marked, false if already seen
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	// IsProcessed checks if an event has already been processed
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	// Close releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a processed event ID is remembered. Default: 24 hours
	TTL time.Duration
	// Enabled determines whether idempotency checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
