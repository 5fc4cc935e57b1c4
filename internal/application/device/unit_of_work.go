package device

import (
	"context"

	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/devicecenter/backend/internal/domain/shared"
)

// UnitOfWork is one business transaction over devices and products
type UnitOfWork interface {
	shared.UnitOfWork
	Devices() device.Repository
	Products() catalog.ProductRepository
}

// UnitOfWorkFactory starts a unit of work bound to the tenant carried by ctx
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) UnitOfWork
}

// FactoryFunc adapts a function to UnitOfWorkFactory
type FactoryFunc func(ctx context.Context) UnitOfWork

// Begin calls f(ctx)
func (f FactoryFunc) Begin(ctx context.Context) UnitOfWork {
	return f(ctx)
}
