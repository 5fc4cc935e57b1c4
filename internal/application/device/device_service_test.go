package device

import (
	"context"
	"testing"

	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/event"
	"github.com/devicecenter/backend/internal/infrastructure/persistence"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/filter"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/tenant"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type serviceFixture struct {
	units    UnitOfWorkFactory
	bus      *event.InMemoryEventBus
	db       *gorm.DB
	service  *DeviceService
	tenantID uuid.UUID
	ctx      context.Context
}

func setupServiceTest(t *testing.T) *serviceFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&device.Device{}, &catalog.Product{}))

	registry := filter.NewRegistry()
	require.NoError(t, registry.Register(&device.Device{}, &catalog.Product{}))
	require.NoError(t, db.Use(registry))

	bus := event.NewInMemoryEventBus(zap.NewNop())
	factory := persistence.NewUnitOfWorkFactory(uow.NewGateway(db, registry, uow.WithDispatcher(bus)))
	units := FactoryFunc(func(ctx context.Context) UnitOfWork {
		return factory.Begin(ctx)
	})

	tenantID := uuid.New()
	ctx, err := tenant.WithTenant(context.Background(), tenantID)
	require.NoError(t, err)

	return &serviceFixture{
		units:    units,
		bus:      bus,
		db:       db,
		service:  NewDeviceService(units),
		tenantID: tenantID,
		ctx:      ctx,
	}
}

func (f *serviceFixture) createProduct(t *testing.T, code string) *catalog.Product {
	p, err := catalog.NewProduct(f.tenantID, code, "Product "+code, decimal.NewFromInt(10))
	require.NoError(t, err)
	unit := f.units.Begin(f.ctx)
	require.NoError(t, unit.Products().Add(f.ctx, p))
	_, err = unit.SaveChanges(f.ctx)
	require.NoError(t, err)
	return p
}

func (f *serviceFixture) createDevice(t *testing.T, productID uuid.UUID, serial string) *DeviceResponse {
	resp, err := f.service.Create(f.ctx, CreateDeviceRequest{
		ProductID:    productID,
		Name:         "Device " + serial,
		SerialNumber: serial,
	})
	require.NoError(t, err)
	return resp
}

func TestDeviceService_Create(t *testing.T) {
	f := setupServiceTest(t)
	product := f.createProduct(t, "GW-1")

	t.Run("creates device", func(t *testing.T) {
		lon, lat := 116.4, 39.9
		resp, err := f.service.Create(f.ctx, CreateDeviceRequest{
			ProductID:    product.ID,
			Name:         "Gateway",
			SerialNumber: "sn-001",
			Remark:       "rack 4",
			Longitude:    &lon,
			Latitude:     &lat,
		})
		require.NoError(t, err)
		assert.Equal(t, f.tenantID, resp.TenantID)
		assert.Equal(t, "SN-001", resp.SerialNumber)
		assert.Equal(t, string(device.StatusOffline), resp.Status)
		assert.Equal(t, "rack 4", resp.Remark)
		assert.InDelta(t, lon, resp.Longitude, 1e-9)
	})

	t.Run("duplicate serial", func(t *testing.T) {
		_, err := f.service.Create(f.ctx, CreateDeviceRequest{
			ProductID:    product.ID,
			Name:         "Copy",
			SerialNumber: "SN-001",
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ALREADY_EXISTS", domainErr.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := f.service.Create(f.ctx, CreateDeviceRequest{
			ProductID:    uuid.New(),
			Name:         "Orphan",
			SerialNumber: "sn-404",
		})
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_PRODUCT", domainErr.Code)
	})

	t.Run("invalid request", func(t *testing.T) {
		_, err := f.service.Create(f.ctx, CreateDeviceRequest{ProductID: product.ID})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("tenant required", func(t *testing.T) {
		_, err := f.service.Create(context.Background(), CreateDeviceRequest{
			ProductID:    product.ID,
			Name:         "No tenant",
			SerialNumber: "sn-000",
		})
		assert.ErrorIs(t, err, tenant.ErrTenantRequired)
	})
}

func TestDeviceService_CreateRejectsDiscontinuedProduct(t *testing.T) {
	f := setupServiceTest(t)
	product := f.createProduct(t, "OLD-1")

	unit := f.units.Begin(f.ctx)
	loaded, err := unit.Products().FindByID(f.ctx, product.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.Discontinue())
	_, err = unit.SaveChanges(f.ctx)
	require.NoError(t, err)

	_, err = f.service.Create(f.ctx, CreateDeviceRequest{
		ProductID:    product.ID,
		Name:         "Late",
		SerialNumber: "sn-late",
	})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "PRODUCT_DISCONTINUED", domainErr.Code)
}

func TestDeviceService_Modify(t *testing.T) {
	f := setupServiceTest(t)
	product := f.createProduct(t, "GW-2")
	created := f.createDevice(t, product.ID, "sn-10")

	renamed, err := f.service.Rename(f.ctx, created.ID, RenameDeviceRequest{Name: "Edge"})
	require.NoError(t, err)
	assert.Equal(t, "Edge", renamed.Name)
	assert.Equal(t, created.Version+1, renamed.Version)

	online, err := f.service.ChangeStatus(f.ctx, created.ID, ChangeStatusRequest{Status: "online"})
	require.NoError(t, err)
	assert.Equal(t, "online", online.Status)

	_, err = f.service.ChangeStatus(f.ctx, created.ID, ChangeStatusRequest{Status: "sleeping"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	moved, err := f.service.Relocate(f.ctx, created.ID, 10, 20)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, moved.Latitude, 1e-9)

	_, err = f.service.Relocate(f.ctx, created.ID, 200, 0)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_COORDINATES", domainErr.Code)

	reread, err := f.service.GetByID(f.ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Edge", reread.Name)
	assert.Equal(t, "online", reread.Status)
}

func TestDeviceService_Delete(t *testing.T) {
	f := setupServiceTest(t)
	product := f.createProduct(t, "GW-3")
	created := f.createDevice(t, product.ID, "sn-20")
	f.createDevice(t, product.ID, "sn-21")

	require.NoError(t, f.service.Delete(f.ctx, created.ID))

	_, err := f.service.GetByID(f.ctx, created.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	tombstone, err := f.service.GetIncludingDeleted(f.ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, tombstone.IsDeleted)

	page, err := f.service.List(f.ctx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "SN-21", page.Items[0].SerialNumber)

	assert.ErrorIs(t, f.service.Delete(f.ctx, created.ID), shared.ErrNotFound)
}

func TestDeviceService_TenantIsolation(t *testing.T) {
	f := setupServiceTest(t)
	product := f.createProduct(t, "GW-4")
	created := f.createDevice(t, product.ID, "sn-30")

	otherCtx, err := tenant.WithTenant(context.Background(), uuid.New())
	require.NoError(t, err)

	_, err = f.service.GetByID(otherCtx, created.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.service.Rename(otherCtx, created.ID, RenameDeviceRequest{Name: "Hijack"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	page, err := f.service.List(otherCtx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

type failingHandler struct{}

func (failingHandler) Handle(context.Context, shared.DomainEvent) error {
	return assert.AnError
}

func (failingHandler) EventTypes() []string { return nil }

func TestDeviceService_SubscriberFailureDoesNotFailWrite(t *testing.T) {
	f := setupServiceTest(t)
	product := f.createProduct(t, "GW-5")
	f.bus.Subscribe(failingHandler{})

	resp, err := f.service.Create(f.ctx, CreateDeviceRequest{
		ProductID:    product.ID,
		Name:         "Resilient",
		SerialNumber: "sn-40",
	})
	require.NoError(t, err)

	reread, err := f.service.GetByID(f.ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Resilient", reread.Name)
}
