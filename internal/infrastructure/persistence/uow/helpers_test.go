package uow

import (
	"context"
	"sync"
	"testing"

	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/filter"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
	onCall func(ctx context.Context, events []shared.DomainEvent)
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, events ...shared.DomainEvent) error {
	d.mu.Lock()
	d.events = append(d.events, events...)
	onCall := d.onCall
	d.mu.Unlock()
	if onCall != nil {
		onCall(ctx, events)
	}
	return d.err
}

func (d *recordingDispatcher) Events() []shared.DomainEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]shared.DomainEvent, len(d.events))
	copy(out, d.events)
	return out
}

func (d *recordingDispatcher) Types() []string {
	var out []string
	for _, e := range d.Events() {
		out = append(out, e.EventType())
	}
	return out
}

type recordingHooks struct {
	mu      sync.Mutex
	reports []SaveReport
}

func (h *recordingHooks) ObserveSave(_ context.Context, r SaveReport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports = append(h.reports, r)
}

func (h *recordingHooks) Last() SaveReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reports[len(h.reports)-1]
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&device.Device{}, &catalog.Product{}))
	return db
}

func newTestRegistry(t *testing.T) *filter.Registry {
	registry := filter.NewRegistry()
	require.NoError(t, registry.Register(&device.Device{}, &catalog.Product{}))
	return registry
}

func setupTestGateway(t *testing.T, opts ...Option) (*Gateway, *gorm.DB) {
	db := setupTestDB(t)
	registry := newTestRegistry(t)
	require.NoError(t, registry.Install(db))
	return NewGateway(db, registry, opts...), db
}

func tenantContext(t *testing.T, id uuid.UUID) context.Context {
	ctx, err := tenant.WithTenant(context.Background(), id)
	require.NoError(t, err)
	return ctx
}

func newDevice(t *testing.T, tenantID uuid.UUID, name string) *device.Device {
	d, err := device.NewDevice(tenantID, uuid.New(), name, "SN-"+name)
	require.NoError(t, err)
	return d
}

func newProduct(t *testing.T, tenantID uuid.UUID, code string) *catalog.Product {
	p, err := catalog.NewProduct(tenantID, code, "Product "+code, decimal.NewFromInt(10))
	require.NoError(t, err)
	return p
}

// seed inserts rows directly, bypassing the unit of work, and clears their events
func seed(t *testing.T, db *gorm.DB, entities ...shared.EventSource) {
	for _, e := range entities {
		require.NoError(t, db.Create(e).Error)
		e.ClearDomainEvents()
	}
}
