package persistence

import (
	"context"
	"strings"

	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/uow"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductRepository implements catalog.ProductRepository on top of a unit of work
type GormProductRepository struct {
	unit *uow.UnitOfWork
}

// NewGormProductRepository creates a product repository bound to unit
func NewGormProductRepository(unit *uow.UnitOfWork) *GormProductRepository {
	return &GormProductRepository{unit: unit}
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)

func (r *GormProductRepository) query(ctx context.Context) *gorm.DB {
	return r.unit.Query(ctx, &catalog.Product{})
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var p catalog.Product
	if err := r.query(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translateError(err)
	}
	return track(r.unit, &p)
}

// FindByCode finds a product by its code
func (r *GormProductRepository) FindByCode(ctx context.Context, code string) (*catalog.Product, error) {
	var p catalog.Product
	if err := r.query(ctx).Where("code = ?", normalizeCode(code)).First(&p).Error; err != nil {
		return nil, translateError(err)
	}
	return track(r.unit, &p)
}

// FindAll finds all products matching the filter
func (r *GormProductRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*catalog.Product, error) {
	query := r.query(ctx)
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", pattern, pattern)
	}

	var rows []catalog.Product
	err := query.
		Order(orderClause(filter, ProductSortFields)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return trackAll(r.unit, rows)
}

// ExistsByCode checks if a product with the given code exists
func (r *GormProductRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.query(ctx).Where("code = ?", normalizeCode(code)).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Add stages a new product for insert
func (r *GormProductRepository) Add(_ context.Context, p *catalog.Product) error {
	return r.unit.Add(p)
}

// Update stages a product for update
func (r *GormProductRepository) Update(_ context.Context, p *catalog.Product) error {
	return r.unit.Update(p)
}

// Remove stages a product for physical deletion
func (r *GormProductRepository) Remove(_ context.Context, p *catalog.Product) error {
	return r.unit.Remove(p)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
