package device

import (
	"time"

	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// CreateDeviceRequest represents a request to register a device
type CreateDeviceRequest struct {
	ProductID    uuid.UUID `json:"product_id" validate:"required"`
	Name         string    `json:"name" validate:"required,min=1,max=200"`
	SerialNumber string    `json:"serial_number" validate:"required,min=1,max=100"`
	Remark       string    `json:"remark" validate:"max=2000"`
	Longitude    *float64  `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Latitude     *float64  `json:"latitude" validate:"omitempty,min=-90,max=90"`
}

// RenameDeviceRequest represents a request to rename a device
type RenameDeviceRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// ChangeStatusRequest represents a request to change a device's status
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=online offline disabled"`
}

// DeviceResponse represents a device in API responses
type DeviceResponse struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	ProductID    uuid.UUID `json:"product_id"`
	Name         string    `json:"name"`
	SerialNumber string    `json:"serial_number"`
	Status       string    `json:"status"`
	Longitude    float64   `json:"longitude"`
	Latitude     float64   `json:"latitude"`
	Remark       string    `json:"remark"`
	IsDeleted    bool      `json:"is_deleted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Version      int       `json:"version"`
}

// DeviceListResponse represents a list item for devices
type DeviceListResponse struct {
	ID           uuid.UUID `json:"id"`
	ProductID    uuid.UUID `json:"product_id"`
	Name         string    `json:"name"`
	SerialNumber string    `json:"serial_number"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToDeviceResponse converts a domain Device to DeviceResponse
func ToDeviceResponse(d *device.Device) DeviceResponse {
	return DeviceResponse{
		ID:           d.ID,
		TenantID:     d.TenantID,
		ProductID:    d.ProductID,
		Name:         d.Name,
		SerialNumber: d.SerialNumber,
		Status:       string(d.Status),
		Longitude:    d.Longitude,
		Latitude:     d.Latitude,
		Remark:       d.Remark,
		IsDeleted:    d.IsDeleted,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		Version:      d.GetVersion(),
	}
}

// ToDeviceListResponses converts devices to list items
func ToDeviceListResponses(devices []*device.Device) []DeviceListResponse {
	out := make([]DeviceListResponse, len(devices))
	for i, d := range devices {
		out[i] = DeviceListResponse{
			ID:           d.ID,
			ProductID:    d.ProductID,
			Name:         d.Name,
			SerialNumber: d.SerialNumber,
			Status:       string(d.Status),
			CreatedAt:    d.CreatedAt,
		}
	}
	return out
}
