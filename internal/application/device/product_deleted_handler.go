package device

import (
	"context"
	"fmt"

	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/tenant"
	"go.uber.org/zap"
)

// ProductDeletedHandlerName identifies the handler in dispatch failures and
// idempotency keys
const ProductDeletedHandlerName = "device.product-deleted"

// ProductDeletedHandler disables every device of a product once the product
// deletion has committed. It runs its own unit of work.
type ProductDeletedHandler struct {
	units  UnitOfWorkFactory
	logger *zap.Logger
}

// NewProductDeletedHandler creates a new handler for product deleted events
func NewProductDeletedHandler(units UnitOfWorkFactory, logger *zap.Logger) *ProductDeletedHandler {
	return &ProductDeletedHandler{
		units:  units,
		logger: logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *ProductDeletedHandler) EventTypes() []string {
	return []string{catalog.EventTypeProductDeleted}
}

// HandlerName implements shared.NamedHandler
func (h *ProductDeletedHandler) HandlerName() string {
	return ProductDeletedHandlerName
}

// Handle processes a ProductDeletedEvent
func (h *ProductDeletedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	deleted, ok := event.(*catalog.ProductDeletedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", catalog.EventTypeProductDeleted),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			catalog.EventTypeProductDeleted, event.EventType())
	}

	// dispatch may run without the publisher's tenant; reads must be scoped
	// to the product's owner
	ctx, err := tenant.WithTenant(ctx, event.TenantID())
	if err != nil {
		return err
	}

	unit := h.units.Begin(ctx)
	devices, err := unit.Devices().FindByProductID(ctx, deleted.ProductID)
	if err != nil {
		return fmt.Errorf("failed to load devices of product %s: %w", deleted.ProductID, err)
	}

	disabled := 0
	for _, d := range devices {
		if d.Status == device.StatusDisabled {
			continue
		}
		if err := d.ChangeStatus(device.StatusDisabled); err != nil {
			return err
		}
		disabled++
	}
	if disabled == 0 {
		return nil
	}

	result, err := unit.SaveChanges(ctx)
	if err != nil {
		return fmt.Errorf("failed to disable devices of product %s: %w", deleted.ProductID, err)
	}

	h.logger.Info("devices disabled after product deletion",
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("product_id", deleted.ProductID.String()),
		zap.String("code", deleted.Code),
		zap.Int("devices", disabled),
	)
	if result.Degraded() {
		h.logger.Warn("device status events partly delivered", zap.Error(result.DispatchErr))
	}
	return nil
}

var (
	_ shared.EventHandler = (*ProductDeletedHandler)(nil)
	_ shared.NamedHandler = (*ProductDeletedHandler)(nil)
)
