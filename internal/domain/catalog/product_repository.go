package catalog

import (
	"context"

	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductRepository defines product persistence bound to one unit of work
type ProductRepository interface {
	// FindByID finds a product by its ID within the current tenant
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByCode finds a product by its code within the current tenant
	FindByCode(ctx context.Context, code string) (*Product, error)

	// FindAll lists products within the current tenant
	FindAll(ctx context.Context, filter shared.Filter) ([]*Product, error)

	// ExistsByCode checks if a product with the given code exists
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// Add stages a new product for insert
	Add(ctx context.Context, product *Product) error

	// Update stages a product for update
	Update(ctx context.Context, product *Product) error

	// Remove stages a product for physical deletion
	Remove(ctx context.Context, product *Product) error
}
