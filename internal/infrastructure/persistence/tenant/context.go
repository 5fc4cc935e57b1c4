package tenant

import (
	"context"
	"fmt"

	"github.com/devicecenter/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
)

type contextKey struct{}

// WithTenant returns a context carrying id as the current tenant.
// A tenant is set once per scope: setting the same id again is a no-op,
// setting a different one fails with ErrTenantAlreadySet.
// The context logger is enriched with the tenant id.
func WithTenant(ctx context.Context, id uuid.UUID) (context.Context, error) {
	if id == uuid.Nil {
		return ctx, ErrInvalidTenantID
	}
	if current, ok := Current(ctx); ok {
		if current == id {
			return ctx, nil
		}
		return ctx, fmt.Errorf("%w: have %s, got %s", ErrTenantAlreadySet, current, id)
	}

	ctx = context.WithValue(ctx, contextKey{}, id)
	ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), id.String())
	return ctx, nil
}

// WithTenantString parses raw and sets it as the current tenant
func WithTenantString(ctx context.Context, raw string) (context.Context, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return ctx, fmt.Errorf("%w: %q", ErrInvalidTenantID, raw)
	}
	return WithTenant(ctx, id)
}

// Current returns the tenant carried by ctx. The second result is false
// when no tenant is set, which is a valid state for system and background
// work.
func Current(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// Same reports whether a and b carry the same tenant, treating two
// tenant-less contexts as equal
func Same(a, b context.Context) bool {
	idA, okA := Current(a)
	idB, okB := Current(b)
	return okA == okB && idA == idB
}
