package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func withClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryIdempotencyStore) {
		s.now = now
	}
}

func newClockedStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore(withClock(clock.Now))
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	isNew, err := store.MarkProcessed(ctx, "audit:event-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, "audit:event-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew)

	// same event, other subscriber
	isNew, err = store.MarkProcessed(ctx, "kafka:event-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)

	clock.Advance(time.Hour)
	isNew, err = store.MarkProcessed(ctx, "audit:event-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "expired key can be marked again")
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "known", time.Minute)
	require.NoError(t, err)
	processed, err = store.IsProcessed(ctx, "known")
	require.NoError(t, err)
	assert.True(t, processed)

	clock.Advance(2 * time.Minute)
	processed, err = store.IsProcessed(ctx, "known")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_CancelledContext(t *testing.T) {
	store, _ := newClockedStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.MarkProcessed(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.IsProcessed(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Size())
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "short-1", time.Second)
	_, _ = store.MarkProcessed(ctx, "short-2", time.Second)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	assert.Equal(t, 3, store.Size())

	clock.Advance(time.Minute)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
	processed, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_CleanupLoop(t *testing.T) {
	store := NewInMemoryIdempotencyStore(WithCleanupInterval(5 * time.Millisecond))
	defer store.Close()

	_, err := store.MarkProcessed(context.Background(), "k", time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return store.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestInMemoryIdempotencyStore_ConcurrentAccess(t *testing.T) {
	store, _ := newClockedStore(t)
	const numGoroutines = 100

	var wg sync.WaitGroup
	results := make(chan bool, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(context.Background(), "concurrent", time.Hour)
			results <- err == nil && isNew
		}()
	}
	wg.Wait()
	close(results)

	newCount := 0
	for isNew := range results {
		if isNew {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount, "exactly one goroutine should mark the key")
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
