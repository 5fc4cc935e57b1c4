package catalog

import (
	"strings"

	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "active"
	ProductStatusDiscontinued ProductStatus = "discontinued"
)

// Product is a device model offered by a tenant.
// Products are physically deleted; they are not soft-deletable.
type Product struct {
	shared.TenantAggregateRoot
	Code        string          `gorm:"type:varchar(50);not null;index"`
	Name        string          `gorm:"type:varchar(200);not null"`
	Description string          `gorm:"type:text"`
	Protocol    string          `gorm:"type:varchar(20);not null;default:'mqtt'"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status      ProductStatus   `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a new product
func NewProduct(tenantID uuid.UUID, code, name string, unitPrice decimal.Decimal) (*Product, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Product must belong to a tenant")
	}
	if err := validateProductCode(code); err != nil {
		return nil, err
	}
	if err := validateProductName(name); err != nil {
		return nil, err
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}

	product := &Product{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                strings.ToUpper(strings.TrimSpace(code)),
		Name:                strings.TrimSpace(name),
		Protocol:            "mqtt",
		UnitPrice:           unitPrice,
		Status:              ProductStatusActive,
	}

	product.AddDomainEvent(NewProductCreatedEvent(product))

	return product, nil
}

// Update updates name, description and price
func (p *Product) Update(name, description string, unitPrice decimal.Decimal) error {
	if err := validateProductName(name); err != nil {
		return err
	}
	if unitPrice.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}

	p.Name = strings.TrimSpace(name)
	p.Description = description
	p.UnitPrice = unitPrice
	p.Touch()

	p.AddDomainEvent(NewProductUpdatedEvent(p))
	return nil
}

// Discontinue marks the product as no longer sold
func (p *Product) Discontinue() error {
	if p.Status == ProductStatusDiscontinued {
		return shared.NewDomainError("ALREADY_DISCONTINUED", "Product is already discontinued")
	}
	p.Status = ProductStatusDiscontinued
	p.Touch()
	p.AddDomainEvent(NewProductUpdatedEvent(p))
	return nil
}

// Delete records the deletion before the row is removed
func (p *Product) Delete() {
	p.AddDomainEvent(NewProductDeletedEvent(p))
}

// IsActive returns true if the product can be assigned to new devices
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

func validateProductCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return shared.NewDomainError("INVALID_CODE", "Product code cannot be empty")
	}
	if len(code) > 50 {
		return shared.NewDomainError("INVALID_CODE", "Product code cannot exceed 50 characters")
	}
	for _, r := range code {
		if !isValidCodeChar(r) {
			return shared.NewDomainError("INVALID_CODE", "Product code can only contain letters, numbers, underscores, and hyphens")
		}
	}
	return nil
}

func isValidCodeChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

func validateProductName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 200 characters")
	}
	return nil
}
