//go:build integration

package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/config"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/filter"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresGateway(t *testing.T) (*UnitOfWorkFactory, *Database, *eventLog) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("devicecenter_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	registry := filter.NewRegistry()
	require.NoError(t, registry.Register(&device.Device{}, &catalog.Product{}))

	db, err := NewDatabase(&config.DatabaseConfig{
		Driver:       "postgres",
		Host:         host,
		Port:         port.Int(),
		User:         "postgres",
		Password:     "postgres",
		DBName:       "devicecenter_test",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}, WithPlugins(registry))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx, &device.Device{}, &catalog.Product{}))

	events := &eventLog{}
	gateway := uow.NewGateway(db.DB, registry, uow.WithDispatcher(events))
	return NewUnitOfWorkFactory(gateway), db, events
}

func TestGateway_Postgres(t *testing.T) {
	factory, db, events := setupPostgresGateway(t)
	tenantA, tenantB := uuid.New(), uuid.New()
	ctxA, ctxB := tenantCtx(t, tenantA), tenantCtx(t, tenantB)

	product, err := catalog.NewProduct(tenantA, "gw-1", "Gateway", decimal.NewFromFloat(49.9))
	require.NoError(t, err)
	d, err := device.NewDevice(tenantA, product.ID, "Gateway 42", "sn-42")
	require.NoError(t, err)

	unit := factory.Begin(ctxA)
	require.NoError(t, unit.Products().Add(ctxA, product))
	require.NoError(t, unit.Devices().Add(ctxA, d))
	result, err := unit.SaveChanges(ctxA)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.RowsAffected)

	t.Run("other tenant sees nothing", func(t *testing.T) {
		n, err := factory.Begin(ctxB).Devices().Count(ctxB)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("soft delete keeps a tombstone", func(t *testing.T) {
		unit := factory.Begin(ctxA)
		loaded, err := unit.Devices().FindByID(ctxA, d.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Delete())
		require.NoError(t, unit.Devices().Remove(ctxA, loaded))
		_, err = unit.SaveChanges(ctxA)
		require.NoError(t, err)

		_, err = factory.Begin(ctxA).Devices().FindByID(ctxA, d.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		var rows int64
		require.NoError(t, filter.IgnoreFilters(db.DB).Model(&device.Device{}).Count(&rows).Error)
		assert.Equal(t, int64(1), rows)
		assert.Contains(t, events.Types(), device.EventTypeDeviceDeleted)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		first := factory.Begin(ctxA)
		p1, err := first.Products().FindByID(ctxA, product.ID)
		require.NoError(t, err)
		second := factory.Begin(ctxA)
		p2, err := second.Products().FindByID(ctxA, product.ID)
		require.NoError(t, err)

		require.NoError(t, p1.Update("Gateway v2", "", decimal.NewFromInt(60)))
		_, err = first.SaveChanges(ctxA)
		require.NoError(t, err)

		before := len(events.Types())
		require.NoError(t, p2.Update("Gateway v3", "", decimal.NewFromInt(70)))
		_, err = second.SaveChanges(ctxA)
		require.Error(t, err)

		var persistErr *uow.PersistenceError
		assert.True(t, errors.As(err, &persistErr))
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Len(t, events.Types(), before)
	})
}
