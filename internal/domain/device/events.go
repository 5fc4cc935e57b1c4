package device

import (
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeDevice is the aggregate type recorded on device events
const AggregateTypeDevice = "Device"

// Event type constants for Device
const (
	EventTypeDeviceCreated       = "DeviceCreated"
	EventTypeDeviceRenamed       = "DeviceRenamed"
	EventTypeDeviceStatusChanged = "DeviceStatusChanged"
	EventTypeDeviceDeleted       = "DeviceDeleted"
)

// DeviceCreatedEvent is published when a device is registered
type DeviceCreatedEvent struct {
	shared.BaseDomainEvent
	DeviceID     uuid.UUID `json:"device_id"`
	ProductID    uuid.UUID `json:"product_id"`
	Name         string    `json:"name"`
	SerialNumber string    `json:"serial_number"`
}

// NewDeviceCreatedEvent creates a new DeviceCreatedEvent
func NewDeviceCreatedEvent(d *Device) *DeviceCreatedEvent {
	return &DeviceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeviceCreated, AggregateTypeDevice, d.ID, d.TenantID),
		DeviceID:        d.ID,
		ProductID:       d.ProductID,
		Name:            d.Name,
		SerialNumber:    d.SerialNumber,
	}
}

// DeviceRenamedEvent is published when a device's name changes
type DeviceRenamedEvent struct {
	shared.BaseDomainEvent
	DeviceID uuid.UUID `json:"device_id"`
	OldName  string    `json:"old_name"`
	NewName  string    `json:"new_name"`
}

// NewDeviceRenamedEvent creates a new DeviceRenamedEvent
func NewDeviceRenamedEvent(d *Device, oldName string) *DeviceRenamedEvent {
	return &DeviceRenamedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeviceRenamed, AggregateTypeDevice, d.ID, d.TenantID),
		DeviceID:        d.ID,
		OldName:         oldName,
		NewName:         d.Name,
	}
}

// DeviceStatusChangedEvent is published when a device's status changes
type DeviceStatusChangedEvent struct {
	shared.BaseDomainEvent
	DeviceID  uuid.UUID `json:"device_id"`
	OldStatus Status    `json:"old_status"`
	NewStatus Status    `json:"new_status"`
}

// NewDeviceStatusChangedEvent creates a new DeviceStatusChangedEvent
func NewDeviceStatusChangedEvent(d *Device, oldStatus Status) *DeviceStatusChangedEvent {
	return &DeviceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeviceStatusChanged, AggregateTypeDevice, d.ID, d.TenantID),
		DeviceID:        d.ID,
		OldStatus:       oldStatus,
		NewStatus:       d.Status,
	}
}

// DeviceDeletedEvent is published when a device is deleted
type DeviceDeletedEvent struct {
	shared.BaseDomainEvent
	DeviceID     uuid.UUID `json:"device_id"`
	SerialNumber string    `json:"serial_number"`
}

// NewDeviceDeletedEvent creates a new DeviceDeletedEvent
func NewDeviceDeletedEvent(d *Device) *DeviceDeletedEvent {
	return &DeviceDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeviceDeleted, AggregateTypeDevice, d.ID, d.TenantID),
		DeviceID:        d.ID,
		SerialNumber:    d.SerialNumber,
	}
}
