package catalog

import (
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeProduct is the aggregate type recorded on product events
const AggregateTypeProduct = "Product"

// Event type constants for Product
const (
	EventTypeProductCreated = "ProductCreated"
	EventTypeProductUpdated = "ProductUpdated"
	EventTypeProductDeleted = "ProductDeleted"
)

// ProductCreatedEvent is published when a product is created
type ProductCreatedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID       `json:"product_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// NewProductCreatedEvent creates a new ProductCreatedEvent
func NewProductCreatedEvent(p *Product) *ProductCreatedEvent {
	return &ProductCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductCreated, AggregateTypeProduct, p.ID, p.TenantID),
		ProductID:       p.ID,
		Code:            p.Code,
		Name:            p.Name,
		UnitPrice:       p.UnitPrice,
	}
}

// ProductUpdatedEvent is published when a product is updated
type ProductUpdatedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Status    ProductStatus   `json:"status"`
}

// NewProductUpdatedEvent creates a new ProductUpdatedEvent
func NewProductUpdatedEvent(p *Product) *ProductUpdatedEvent {
	return &ProductUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductUpdated, AggregateTypeProduct, p.ID, p.TenantID),
		ProductID:       p.ID,
		Name:            p.Name,
		UnitPrice:       p.UnitPrice,
		Status:          p.Status,
	}
}

// ProductDeletedEvent is published when a product is deleted
type ProductDeletedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	Code      string    `json:"code"`
}

// NewProductDeletedEvent creates a new ProductDeletedEvent
func NewProductDeletedEvent(p *Product) *ProductDeletedEvent {
	return &ProductDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductDeleted, AggregateTypeProduct, p.ID, p.TenantID),
		ProductID:       p.ID,
		Code:            p.Code,
	}
}
