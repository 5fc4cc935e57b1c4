package event

import (
	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/device"
)

// RegisterAllEvents registers every domain event type with the serializer
func RegisterAllEvents(serializer *EventSerializer) {
	serializer.Register(device.EventTypeDeviceCreated, &device.DeviceCreatedEvent{})
	serializer.Register(device.EventTypeDeviceRenamed, &device.DeviceRenamedEvent{})
	serializer.Register(device.EventTypeDeviceStatusChanged, &device.DeviceStatusChangedEvent{})
	serializer.Register(device.EventTypeDeviceDeleted, &device.DeviceDeletedEvent{})

	serializer.Register(catalog.EventTypeProductCreated, &catalog.ProductCreatedEvent{})
	serializer.Register(catalog.EventTypeProductUpdated, &catalog.ProductUpdatedEvent{})
	serializer.Register(catalog.EventTypeProductDeleted, &catalog.ProductDeletedEvent{})
}
