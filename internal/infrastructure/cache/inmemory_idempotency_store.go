package cache

import (
	"context"
	"sync"
	"time"

	"github.com/devicecenter/backend/internal/domain/shared"
)

const defaultCleanupInterval = 5 * time.Minute

// InMemoryIdempotencyStore implements IdempotencyStore with a map guarded by
// a mutex. It does not share state between processes, so it only fits
// single-instance deployments and tests.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	entries   map[string]time.Time // key -> expiry
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryOption configures an InMemoryIdempotencyStore
type InMemoryOption func(*InMemoryIdempotencyStore)

// WithCleanupInterval sets how often expired keys are purged
func WithCleanupInterval(d time.Duration) InMemoryOption {
	return func(s *InMemoryIdempotencyStore) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewInMemoryIdempotencyStore creates a store and starts its cleanup goroutine
func NewInMemoryIdempotencyStore(opts ...InMemoryOption) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		entries:  make(map[string]time.Time),
		interval: defaultCleanupInterval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.cleanupLoop()
	return s
}

// MarkProcessed atomically records key. It returns false when the key is
// already present and not expired.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.entries[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed checks whether key is present and not expired
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	expiresAt, ok := s.entries[key]
	return ok && s.now().Before(expiresAt), nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries, expired ones included until cleanup
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
