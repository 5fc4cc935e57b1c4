package persistence

import (
	"context"
	"strings"

	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/uow"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDeviceRepository implements device.Repository on top of a unit of work.
// Loaded devices are attached to the unit so edits are saved by SaveChanges.
type GormDeviceRepository struct {
	unit *uow.UnitOfWork
}

// NewGormDeviceRepository creates a device repository bound to unit
func NewGormDeviceRepository(unit *uow.UnitOfWork) *GormDeviceRepository {
	return &GormDeviceRepository{unit: unit}
}

var _ device.Repository = (*GormDeviceRepository)(nil)

func (r *GormDeviceRepository) query(ctx context.Context) *gorm.DB {
	return r.unit.Query(ctx, &device.Device{})
}

// FindByID finds a visible device by its ID
func (r *GormDeviceRepository) FindByID(ctx context.Context, id uuid.UUID) (*device.Device, error) {
	var d device.Device
	if err := r.query(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, translateError(err)
	}
	return track(r.unit, &d)
}

// FindBySerialNumber finds a visible device by serial number
func (r *GormDeviceRepository) FindBySerialNumber(ctx context.Context, serialNumber string) (*device.Device, error) {
	var d device.Device
	serial := strings.ToUpper(strings.TrimSpace(serialNumber))
	if err := r.query(ctx).Where("serial_number = ?", serial).First(&d).Error; err != nil {
		return nil, translateError(err)
	}
	return track(r.unit, &d)
}

// FindAll lists visible devices
func (r *GormDeviceRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*device.Device, error) {
	query := r.query(ctx)
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(serial_number) LIKE ?", pattern, pattern)
	}

	var rows []device.Device
	err := query.
		Order(orderClause(filter, DeviceSortFields)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return trackAll(r.unit, rows)
}

// FindByProductID lists the visible devices of a product
func (r *GormDeviceRepository) FindByProductID(ctx context.Context, productID uuid.UUID) ([]*device.Device, error) {
	var rows []device.Device
	if err := r.query(ctx).Where("product_id = ?", productID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return trackAll(r.unit, rows)
}

// Count counts visible devices
func (r *GormDeviceRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.query(ctx).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindByIDIncludingDeleted reads a device with tenant and soft-delete filters bypassed
func (r *GormDeviceRepository) FindByIDIncludingDeleted(ctx context.Context, id uuid.UUID) (*device.Device, error) {
	var d device.Device
	if err := r.unit.Unfiltered(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, translateError(err)
	}
	return track(r.unit, &d)
}

// Add stages a new device for insert
func (r *GormDeviceRepository) Add(_ context.Context, d *device.Device) error {
	return r.unit.Add(d)
}

// Update stages a device for update
func (r *GormDeviceRepository) Update(_ context.Context, d *device.Device) error {
	return r.unit.Update(d)
}

// Remove stages a device for deletion. The device is soft deleted on save.
func (r *GormDeviceRepository) Remove(_ context.Context, d *device.Device) error {
	return r.unit.Remove(d)
}
