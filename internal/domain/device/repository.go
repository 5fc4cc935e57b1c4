package device

import (
	"context"

	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Repository defines device persistence bound to one unit of work.
// Reads are tenant- and soft-delete-filtered; writes are staged until the
// unit of work saves.
type Repository interface {
	// FindByID finds a visible device by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Device, error)

	// FindBySerialNumber finds a visible device by serial number
	FindBySerialNumber(ctx context.Context, serialNumber string) (*Device, error)

	// FindAll lists visible devices
	FindAll(ctx context.Context, filter shared.Filter) ([]*Device, error)

	// FindByProductID lists the visible devices of a product. The returned
	// devices are tracked, so edits are saved with the unit of work.
	FindByProductID(ctx context.Context, productID uuid.UUID) ([]*Device, error)

	// Count counts visible devices
	Count(ctx context.Context) (int64, error)

	// FindByIDIncludingDeleted reads a device with all row filters bypassed
	FindByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*Device, error)

	// Add stages a new device for insert
	Add(ctx context.Context, device *Device) error

	// Update stages a device for update
	Update(ctx context.Context, device *Device) error

	// Remove stages a device for deletion
	Remove(ctx context.Context, device *Device) error
}
