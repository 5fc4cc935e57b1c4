package persistence

import (
	"context"

	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/uow"
)

// UnitOfWork bundles the repositories of one business transaction. All of
// them stage writes on the same tracker, saved together by SaveChanges.
type UnitOfWork struct {
	*uow.UnitOfWork
	devices  *GormDeviceRepository
	products *GormProductRepository
}

// Devices returns the device repository of this unit of work
func (u *UnitOfWork) Devices() device.Repository {
	return u.devices
}

// Products returns the product repository of this unit of work
func (u *UnitOfWork) Products() catalog.ProductRepository {
	return u.products
}

// UnitOfWorkFactory starts units of work on a gateway
type UnitOfWorkFactory struct {
	gateway *uow.Gateway
}

// NewUnitOfWorkFactory creates a factory for gateway
func NewUnitOfWorkFactory(gateway *uow.Gateway) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{gateway: gateway}
}

// Begin starts a unit of work bound to the tenant carried by ctx
func (f *UnitOfWorkFactory) Begin(ctx context.Context) *UnitOfWork {
	unit := f.gateway.Begin(ctx)
	return &UnitOfWork{
		UnitOfWork: unit,
		devices:    NewGormDeviceRepository(unit),
		products:   NewGormProductRepository(unit),
	}
}
