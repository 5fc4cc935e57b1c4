package catalog

import (
	"context"
	"testing"

	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductRepository is a mock implementation of ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByCode(ctx context.Context, code string) (*catalog.Product, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*catalog.Product, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) Add(ctx context.Context, product *catalog.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *catalog.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) Remove(ctx context.Context, product *catalog.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	products *MockProductRepository
}

func (m *MockUnitOfWork) Products() catalog.ProductRepository {
	return m.products
}

func (m *MockUnitOfWork) SaveChanges(ctx context.Context) (shared.SaveResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(shared.SaveResult), args.Error(1)
}

func setupProductService() (*ProductService, *MockUnitOfWork, *MockProductRepository) {
	repo := new(MockProductRepository)
	unit := &MockUnitOfWork{products: repo}
	service := NewProductService(FactoryFunc(func(context.Context) UnitOfWork { return unit }))
	return service, unit, repo
}

func newTenantContext(t *testing.T) (context.Context, uuid.UUID) {
	tenantID := uuid.New()
	ctx, err := tenant.WithTenant(context.Background(), tenantID)
	require.NoError(t, err)
	return ctx, tenantID
}

func createTestProduct(tenantID uuid.UUID) *catalog.Product {
	product, _ := catalog.NewProduct(tenantID, "GW-100", "Gateway", decimal.NewFromInt(120))
	product.ClearDomainEvents()
	return product
}

func TestProductService_Create(t *testing.T) {
	ctx, tenantID := newTenantContext(t)

	t.Run("successful creation", func(t *testing.T) {
		service, unit, repo := setupProductService()
		repo.On("ExistsByCode", mock.Anything, "gw-200").Return(false, nil)
		repo.On("Add", mock.Anything, mock.AnythingOfType("*catalog.Product")).Return(nil)
		unit.On("SaveChanges", mock.Anything).Return(shared.SaveResult{RowsAffected: 1, EventsCollected: 1}, nil)

		resp, err := service.Create(ctx, CreateProductRequest{
			Code:        "gw-200",
			Name:        "Gateway Pro",
			Description: "dual band",
			UnitPrice:   decimal.NewFromFloat(199.99),
		})

		require.NoError(t, err)
		assert.Equal(t, tenantID, resp.TenantID)
		assert.Equal(t, "GW-200", resp.Code)
		assert.Equal(t, "dual band", resp.Description)
		assert.Equal(t, string(catalog.ProductStatusActive), resp.Status)
		assert.True(t, decimal.NewFromFloat(199.99).Equal(resp.UnitPrice))
		repo.AssertExpectations(t)
		unit.AssertExpectations(t)
	})

	t.Run("duplicate code", func(t *testing.T) {
		service, unit, repo := setupProductService()
		repo.On("ExistsByCode", mock.Anything, "GW-100").Return(true, nil)

		_, err := service.Create(ctx, CreateProductRequest{Code: "GW-100", Name: "Gateway"})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ALREADY_EXISTS", domainErr.Code)
		repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
		unit.AssertNotCalled(t, "SaveChanges", mock.Anything)
	})

	t.Run("negative price", func(t *testing.T) {
		service, _, repo := setupProductService()
		repo.On("ExistsByCode", mock.Anything, "GW-300").Return(false, nil)

		_, err := service.Create(ctx, CreateProductRequest{
			Code:      "GW-300",
			Name:      "Gateway",
			UnitPrice: decimal.NewFromInt(-1),
		})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_PRICE", domainErr.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		service, _, _ := setupProductService()
		_, err := service.Create(ctx, CreateProductRequest{Code: "GW-400"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("tenant required", func(t *testing.T) {
		service, _, _ := setupProductService()
		_, err := service.Create(context.Background(), CreateProductRequest{Code: "GW-500", Name: "Gateway"})
		assert.ErrorIs(t, err, tenant.ErrTenantRequired)
	})

	t.Run("save failure", func(t *testing.T) {
		service, unit, repo := setupProductService()
		repo.On("ExistsByCode", mock.Anything, "GW-600").Return(false, nil)
		repo.On("Add", mock.Anything, mock.Anything).Return(nil)
		unit.On("SaveChanges", mock.Anything).Return(shared.SaveResult{}, shared.ErrConcurrencyConflict)

		_, err := service.Create(ctx, CreateProductRequest{Code: "GW-600", Name: "Gateway"})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func TestProductService_Update(t *testing.T) {
	ctx, tenantID := newTenantContext(t)

	t.Run("partial update keeps other fields", func(t *testing.T) {
		service, unit, repo := setupProductService()
		product := createTestProduct(tenantID)
		repo.On("FindByID", mock.Anything, product.ID).Return(product, nil)
		unit.On("SaveChanges", mock.Anything).Return(shared.SaveResult{RowsAffected: 1}, nil)

		price := decimal.NewFromInt(150)
		resp, err := service.Update(ctx, product.ID, UpdateProductRequest{UnitPrice: &price})

		require.NoError(t, err)
		assert.Equal(t, "Gateway", resp.Name)
		assert.True(t, price.Equal(resp.UnitPrice))
		require.Len(t, product.GetDomainEvents(), 1)
		assert.Equal(t, catalog.EventTypeProductUpdated, product.GetDomainEvents()[0].EventType())
	})

	t.Run("not found", func(t *testing.T) {
		service, _, repo := setupProductService()
		id := uuid.New()
		repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		name := "Renamed"
		_, err := service.Update(ctx, id, UpdateProductRequest{Name: &name})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestProductService_Discontinue(t *testing.T) {
	ctx, tenantID := newTenantContext(t)
	service, unit, repo := setupProductService()
	product := createTestProduct(tenantID)
	repo.On("FindByID", mock.Anything, product.ID).Return(product, nil)
	unit.On("SaveChanges", mock.Anything).Return(shared.SaveResult{RowsAffected: 1}, nil).Once()

	resp, err := service.Discontinue(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, string(catalog.ProductStatusDiscontinued), resp.Status)

	_, err = service.Discontinue(ctx, product.ID)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "ALREADY_DISCONTINUED", domainErr.Code)
	unit.AssertNumberOfCalls(t, "SaveChanges", 1)
}

func TestProductService_Delete(t *testing.T) {
	ctx, tenantID := newTenantContext(t)

	t.Run("records deletion and removes", func(t *testing.T) {
		service, unit, repo := setupProductService()
		product := createTestProduct(tenantID)
		repo.On("FindByID", mock.Anything, product.ID).Return(product, nil)
		repo.On("Remove", mock.Anything, product).Return(nil)
		unit.On("SaveChanges", mock.Anything).Return(shared.SaveResult{
			RowsAffected: 1,
			DispatchErr:  &shared.DispatchError{Undispatched: 1},
		}, nil)

		// degraded delivery does not fail the delete
		require.NoError(t, service.Delete(ctx, product.ID))
		require.Len(t, product.GetDomainEvents(), 1)
		assert.Equal(t, catalog.EventTypeProductDeleted, product.GetDomainEvents()[0].EventType())
		repo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		service, _, repo := setupProductService()
		id := uuid.New()
		repo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

		assert.ErrorIs(t, service.Delete(ctx, id), shared.ErrNotFound)
		repo.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
	})
}

func TestProductService_Reads(t *testing.T) {
	ctx, tenantID := newTenantContext(t)
	service, _, repo := setupProductService()
	product := createTestProduct(tenantID)
	repo.On("FindByID", mock.Anything, product.ID).Return(product, nil)
	repo.On("FindByCode", mock.Anything, "gw-100").Return(product, nil)
	repo.On("FindAll", mock.Anything, shared.DefaultFilter()).Return([]*catalog.Product{product}, nil)

	byID, err := service.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "GW-100", byID.Code)

	byCode, err := service.GetByCode(ctx, "gw-100")
	require.NoError(t, err)
	assert.Equal(t, product.ID, byCode.ID)

	list, err := service.List(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Gateway", list[0].Name)
}
