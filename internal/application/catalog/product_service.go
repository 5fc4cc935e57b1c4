package catalog

import (
	"context"
	"fmt"

	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/logger"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/tenant"
	"github.com/devicecenter/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductService handles product-related business operations
type ProductService struct {
	units UnitOfWorkFactory
}

// NewProductService creates a new ProductService
func NewProductService(units UnitOfWorkFactory) *ProductService {
	return &ProductService{units: units}
}

// Create creates a new product
func (s *ProductService) Create(ctx context.Context, req CreateProductRequest) (*ProductResponse, error) {
	tenantID, ok := tenant.Current(ctx)
	if !ok {
		return nil, tenant.ErrTenantRequired
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "product", "create",
		telemetry.WithAttribute(telemetry.SpanAttrProductCode, req.Code))
	defer span.End()

	unit := s.units.Begin(ctx)

	// Check if code already exists
	exists, err := unit.Products().ExistsByCode(ctx, req.Code)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Product with this code already exists")
	}

	product, err := catalog.NewProduct(tenantID, req.Code, req.Name, req.UnitPrice)
	if err != nil {
		return nil, err
	}
	product.Description = req.Description

	if err := unit.Products().Add(ctx, product); err != nil {
		return nil, err
	}
	if err := s.save(ctx, unit); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp := ToProductResponse(product)
	return &resp, nil
}

// Update updates name, description or price of a product
func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (*ProductResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.modify(ctx, "update", id, func(p *catalog.Product) error {
		name, description, price := p.Name, p.Description, p.UnitPrice
		if req.Name != nil {
			name = *req.Name
		}
		if req.Description != nil {
			description = *req.Description
		}
		if req.UnitPrice != nil {
			price = *req.UnitPrice
		}
		return p.Update(name, description, price)
	})
}

// Discontinue stops a product from being assigned to new devices
func (s *ProductService) Discontinue(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	return s.modify(ctx, "discontinue", id, func(p *catalog.Product) error {
		return p.Discontinue()
	})
}

// Delete physically removes a product. Its devices are disabled by the
// ProductDeleted subscriber once the deletion has committed.
func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "product", "delete",
		telemetry.WithAttribute(telemetry.SpanAttrProductID, id))
	defer span.End()

	unit := s.units.Begin(ctx)
	product, err := unit.Products().FindByID(ctx, id)
	if err != nil {
		return err
	}
	product.Delete()
	if err := unit.Products().Remove(ctx, product); err != nil {
		return err
	}
	if err := s.save(ctx, unit); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	return nil
}

// GetByID retrieves a product by ID
func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.units.Begin(ctx).Products().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// GetByCode retrieves a product by code
func (s *ProductService) GetByCode(ctx context.Context, code string) (*ProductResponse, error) {
	product, err := s.units.Begin(ctx).Products().FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// List retrieves a list of products
func (s *ProductService) List(ctx context.Context, filter shared.Filter) ([]ProductListResponse, error) {
	products, err := s.units.Begin(ctx).Products().FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	return ToProductListResponses(products), nil
}

func (s *ProductService) modify(ctx context.Context, method string, id uuid.UUID, change func(*catalog.Product) error) (*ProductResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product", method,
		telemetry.WithAttribute(telemetry.SpanAttrProductID, id))
	defer span.End()

	unit := s.units.Begin(ctx)
	product, err := unit.Products().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := change(product); err != nil {
		return nil, err
	}
	if err := s.save(ctx, unit); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

func (s *ProductService) save(ctx context.Context, unit UnitOfWork) error {
	result, err := unit.SaveChanges(ctx)
	if err != nil {
		return err
	}
	if result.Degraded() {
		logger.L(ctx).Warn("Product saved with undelivered events", zap.Error(result.DispatchErr))
	}
	return nil
}
