package tenant

import (
	"context"
	"sync"
	"testing"

	"github.com/devicecenter/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent_NoTenant(t *testing.T) {
	id, ok := Current(context.Background())
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, id)
}

func TestWithTenant(t *testing.T) {
	t.Run("sets tenant and enriches logger context", func(t *testing.T) {
		id := uuid.New()
		ctx, err := WithTenant(context.Background(), id)
		require.NoError(t, err)

		got, ok := Current(ctx)
		require.True(t, ok)
		assert.Equal(t, id, got)
		assert.Equal(t, id.String(), logger.GetTenantID(ctx))
	})

	t.Run("same tenant twice is a no-op", func(t *testing.T) {
		id := uuid.New()
		ctx, err := WithTenant(context.Background(), id)
		require.NoError(t, err)
		ctx2, err := WithTenant(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ctx, ctx2)
	})

	t.Run("different tenant is rejected", func(t *testing.T) {
		ctx, err := WithTenant(context.Background(), uuid.New())
		require.NoError(t, err)
		_, err = WithTenant(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrTenantAlreadySet)
	})

	t.Run("nil id is rejected", func(t *testing.T) {
		_, err := WithTenant(context.Background(), uuid.Nil)
		assert.ErrorIs(t, err, ErrInvalidTenantID)
	})
}

func TestWithTenantString(t *testing.T) {
	id := uuid.New()
	ctx, err := WithTenantString(context.Background(), id.String())
	require.NoError(t, err)
	got, ok := Current(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, err = WithTenantString(context.Background(), "not-a-valid-uuid")
	assert.ErrorIs(t, err, ErrInvalidTenantID)
}

func TestSame(t *testing.T) {
	id := uuid.New()
	a, _ := WithTenant(context.Background(), id)
	b, _ := WithTenant(context.Background(), id)
	c, _ := WithTenant(context.Background(), uuid.New())

	assert.True(t, Same(a, b))
	assert.False(t, Same(a, c))
	assert.False(t, Same(a, context.Background()))
	assert.True(t, Same(context.Background(), context.TODO()))
}

func TestCurrent_ConcurrentReads(t *testing.T) {
	id := uuid.New()
	ctx, err := WithTenant(context.Background(), id)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, ok := Current(ctx)
			assert.True(t, ok)
			assert.Equal(t, id, got)
		}()
	}
	wg.Wait()
}
