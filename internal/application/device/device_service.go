package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/logger"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/tenant"
	"github.com/devicecenter/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeviceService handles device-related business operations. Every write
// runs in its own unit of work and publishes its events after commit.
type DeviceService struct {
	units UnitOfWorkFactory
}

// NewDeviceService creates a new DeviceService
func NewDeviceService(units UnitOfWorkFactory) *DeviceService {
	return &DeviceService{units: units}
}

// Create registers a new device for an active product of the current tenant
func (s *DeviceService) Create(ctx context.Context, req CreateDeviceRequest) (*DeviceResponse, error) {
	tenantID, ok := tenant.Current(ctx)
	if !ok {
		return nil, tenant.ErrTenantRequired
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "device", "create",
		telemetry.WithAttribute(telemetry.SpanAttrSerialNumber, req.SerialNumber))
	defer span.End()

	unit := s.units.Begin(ctx)

	product, err := unit.Products().FindByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("INVALID_PRODUCT", "Product not found")
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !product.IsActive() {
		return nil, shared.NewDomainError("PRODUCT_DISCONTINUED", "Product is discontinued")
	}

	if _, err := unit.Devices().FindBySerialNumber(ctx, req.SerialNumber); err == nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Device with this serial number already exists")
	} else if !errors.Is(err, shared.ErrNotFound) {
		telemetry.RecordError(span, err)
		return nil, err
	}

	d, err := device.NewDevice(tenantID, product.ID, req.Name, req.SerialNumber)
	if err != nil {
		return nil, err
	}
	d.Remark = req.Remark
	if req.Longitude != nil && req.Latitude != nil {
		if err := d.Relocate(*req.Longitude, *req.Latitude); err != nil {
			return nil, err
		}
	}

	if err := unit.Devices().Add(ctx, d); err != nil {
		return nil, err
	}
	if err := s.save(ctx, unit); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrDeviceID, d.ID)
	resp := ToDeviceResponse(d)
	return &resp, nil
}

// Rename changes a device's display name
func (s *DeviceService) Rename(ctx context.Context, id uuid.UUID, req RenameDeviceRequest) (*DeviceResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.modify(ctx, "rename", id, func(d *device.Device) error {
		return d.Rename(req.Name)
	})
}

// ChangeStatus moves a device to a new connectivity status
func (s *DeviceService) ChangeStatus(ctx context.Context, id uuid.UUID, req ChangeStatusRequest) (*DeviceResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.modify(ctx, "change_status", id, func(d *device.Device) error {
		return d.ChangeStatus(device.Status(req.Status))
	})
}

// Relocate updates a device's reported coordinates
func (s *DeviceService) Relocate(ctx context.Context, id uuid.UUID, longitude, latitude float64) (*DeviceResponse, error) {
	return s.modify(ctx, "relocate", id, func(d *device.Device) error {
		return d.Relocate(longitude, latitude)
	})
}

// Delete removes a device. The row is kept as a tombstone and the device
// disappears from every filtered read.
func (s *DeviceService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "device", "delete",
		telemetry.WithAttribute(telemetry.SpanAttrDeviceID, id))
	defer span.End()

	unit := s.units.Begin(ctx)
	d, err := unit.Devices().FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := d.Delete(); err != nil {
		return err
	}
	if err := unit.Devices().Remove(ctx, d); err != nil {
		return err
	}
	if err := s.save(ctx, unit); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

// GetByID returns a visible device
func (s *DeviceService) GetByID(ctx context.Context, id uuid.UUID) (*DeviceResponse, error) {
	d, err := s.units.Begin(ctx).Devices().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToDeviceResponse(d)
	return &resp, nil
}

// GetIncludingDeleted returns a device even when it is soft deleted or
// owned by another tenant. Intended for audit and support tooling.
func (s *DeviceService) GetIncludingDeleted(ctx context.Context, id uuid.UUID) (*DeviceResponse, error) {
	d, err := s.units.Begin(ctx).Devices().FindByIDIncludingDeleted(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToDeviceResponse(d)
	return &resp, nil
}

// List returns a page of visible devices
func (s *DeviceService) List(ctx context.Context, filter shared.Filter) (shared.Paginated[DeviceListResponse], error) {
	unit := s.units.Begin(ctx)
	devices, err := unit.Devices().FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[DeviceListResponse]{}, err
	}
	total, err := unit.Devices().Count(ctx)
	if err != nil {
		return shared.Paginated[DeviceListResponse]{}, err
	}
	return shared.NewPaginated(ToDeviceListResponses(devices), total, filter.Page, filter.Limit()), nil
}

func (s *DeviceService) modify(ctx context.Context, method string, id uuid.UUID, change func(*device.Device) error) (*DeviceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "device", method,
		telemetry.WithAttribute(telemetry.SpanAttrDeviceID, id))
	defer span.End()

	unit := s.units.Begin(ctx)
	d, err := unit.Devices().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := change(d); err != nil {
		return nil, err
	}
	if err := s.save(ctx, unit); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToDeviceResponse(d)
	return &resp, nil
}

// save commits unit. Delivery failures after commit are logged; the write
// itself has succeeded.
func (s *DeviceService) save(ctx context.Context, unit UnitOfWork) error {
	result, err := unit.SaveChanges(ctx)
	if err != nil {
		return err
	}
	if result.Degraded() {
		logger.L(ctx).Warn("Device saved with undelivered events", zap.Error(result.DispatchErr))
	}
	return nil
}
