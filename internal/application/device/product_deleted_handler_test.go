package device

import (
	"context"
	"testing"

	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProductDeletedHandler_EventTypes(t *testing.T) {
	h := NewProductDeletedHandler(nil, zap.NewNop())
	assert.Equal(t, []string{catalog.EventTypeProductDeleted}, h.EventTypes())
	assert.Equal(t, ProductDeletedHandlerName, h.HandlerName())
}

func TestProductDeletedHandler_WrongEventType(t *testing.T) {
	h := NewProductDeletedHandler(nil, zap.NewNop())
	p, err := catalog.NewProduct(uuid.New(), "X-1", "X", decimal.NewFromInt(1))
	require.NoError(t, err)

	err = h.Handle(context.Background(), catalog.NewProductCreatedEvent(p))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected event type")
}

func TestProductDeletedHandler_DisablesDevices(t *testing.T) {
	f := setupServiceTest(t)
	f.bus.Subscribe(NewProductDeletedHandler(f.units, zap.NewNop()))

	product := f.createProduct(t, "GW-9")
	other := f.createProduct(t, "GW-10")
	first := f.createDevice(t, product.ID, "sn-90")
	second := f.createDevice(t, product.ID, "sn-91")
	untouched := f.createDevice(t, other.ID, "sn-92")

	_, err := f.service.ChangeStatus(f.ctx, first.ID, ChangeStatusRequest{Status: "online"})
	require.NoError(t, err)

	unit := f.units.Begin(f.ctx)
	loaded, err := unit.Products().FindByID(f.ctx, product.ID)
	require.NoError(t, err)
	loaded.Delete()
	require.NoError(t, unit.Products().Remove(f.ctx, loaded))
	result, err := unit.SaveChanges(f.ctx)
	require.NoError(t, err)
	assert.False(t, result.Degraded())

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		d, err := f.service.GetByID(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, string(device.StatusDisabled), d.Status)
	}

	d, err := f.service.GetByID(f.ctx, untouched.ID)
	require.NoError(t, err)
	assert.Equal(t, string(device.StatusOffline), d.Status)
}

func TestProductDeletedHandler_NoDevices(t *testing.T) {
	f := setupServiceTest(t)
	h := NewProductDeletedHandler(f.units, zap.NewNop())
	p := f.createProduct(t, "EMPTY")
	p.Delete()

	events := p.GetDomainEvents()
	require.NotEmpty(t, events)
	assert.NoError(t, h.Handle(context.Background(), events[len(events)-1]))
}
