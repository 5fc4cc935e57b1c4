package catalog

import (
	"time"

	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	Code        string          `json:"code" validate:"required,min=1,max=50"`
	Name        string          `json:"name" validate:"required,min=1,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// UpdateProductRequest represents a request to update a product.
// Nil fields keep their current value.
type UpdateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Protocol    string          `json:"protocol"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

// ProductListResponse represents a list item for products
type ProductListResponse struct {
	ID        uuid.UUID       `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// ToProductResponse converts a domain Product to ProductResponse
func ToProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		TenantID:    p.TenantID,
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		Protocol:    p.Protocol,
		UnitPrice:   p.UnitPrice,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Version:     p.GetVersion(),
	}
}

// ToProductListResponse converts a domain Product to ProductListResponse
func ToProductListResponse(p *catalog.Product) ProductListResponse {
	return ProductListResponse{
		ID:        p.ID,
		Code:      p.Code,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
	}
}

// ToProductListResponses converts a slice of domain Products to ProductListResponses
func ToProductListResponses(products []*catalog.Product) []ProductListResponse {
	responses := make([]ProductListResponse, len(products))
	for i, p := range products {
		responses[i] = ToProductListResponse(p)
	}
	return responses
}
