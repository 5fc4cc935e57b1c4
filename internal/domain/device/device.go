package device

import (
	"strings"

	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Status represents the connectivity status of a device
type Status string

const (
	StatusOnline   Status = "online"
	StatusOffline  Status = "offline"
	StatusDisabled Status = "disabled"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusDisabled:
		return true
	}
	return false
}

// Device is the aggregate root of the device context.
// It is tenant-owned, soft-deletable and records domain events.
type Device struct {
	shared.TenantAggregateRoot
	shared.SoftDelete
	ProductID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Name         string    `gorm:"type:varchar(200);not null"`
	SerialNumber string    `gorm:"type:varchar(100);not null;index"`
	Status       Status    `gorm:"type:varchar(20);not null;default:'offline'"`
	Longitude    float64   `gorm:"not null;default:0"`
	Latitude     float64   `gorm:"not null;default:0"`
	Remark       string    `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Device) TableName() string {
	return "devices"
}

// NewDevice creates a device owned by tenantID
func NewDevice(tenantID, productID uuid.UUID, name, serialNumber string) (*Device, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Device must belong to a tenant")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Device must reference a product")
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	serialNumber = strings.TrimSpace(serialNumber)
	if serialNumber == "" {
		return nil, shared.NewDomainError("INVALID_SERIAL_NUMBER", "Serial number cannot be empty")
	}

	d := &Device{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ProductID:           productID,
		Name:                strings.TrimSpace(name),
		SerialNumber:        strings.ToUpper(serialNumber),
		Status:              StatusOffline,
	}
	d.AddDomainEvent(NewDeviceCreatedEvent(d))
	return d, nil
}

// Rename changes the display name
func (d *Device) Rename(name string) error {
	if d.IsDeleted {
		return shared.ErrInvalidState
	}
	if err := validateName(name); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == d.Name {
		return nil
	}
	old := d.Name
	d.Name = name
	d.Touch()
	d.AddDomainEvent(NewDeviceRenamedEvent(d, old))
	return nil
}

// ChangeStatus moves the device to a new connectivity status
func (d *Device) ChangeStatus(status Status) error {
	if d.IsDeleted {
		return shared.ErrInvalidState
	}
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown device status")
	}
	if status == d.Status {
		return nil
	}
	old := d.Status
	d.Status = status
	d.Touch()
	d.AddDomainEvent(NewDeviceStatusChangedEvent(d, old))
	return nil
}

// Relocate updates the reported coordinates
func (d *Device) Relocate(longitude, latitude float64) error {
	if longitude < -180 || longitude > 180 || latitude < -90 || latitude > 90 {
		return shared.NewDomainError("INVALID_COORDINATES", "Coordinates out of range")
	}
	d.Longitude = longitude
	d.Latitude = latitude
	d.Touch()
	return nil
}

// Delete records the deletion. The row itself is tombstoned by the unit of
// work when the repository removes the device.
func (d *Device) Delete() error {
	if d.IsDeleted {
		return shared.ErrInvalidState
	}
	d.AddDomainEvent(NewDeviceDeletedEvent(d))
	return nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Device name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Device name cannot exceed 200 characters")
	}
	return nil
}
