package uow

import (
	"context"

	"github.com/devicecenter/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Interceptor rewrites physical deletes of soft-deletable entities into
// tombstone updates. It runs over the pending change set right before
// persistence and never touches the database.
type Interceptor struct {
	logger *zap.Logger
}

// NewInterceptor creates an interceptor
func NewInterceptor(logger *zap.Logger) *Interceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interceptor{logger: logger}
}

// Intercept reclassifies each deleted soft-deletable entry as a modification
// restricted to the soft-delete column. Unrelated in-memory edits are reverted
// to their attach-time values so the tombstone write cannot carry them.
// It returns the number of rewritten entries.
func (i *Interceptor) Intercept(ctx context.Context, pending []*Entry) int {
	rewritten := 0
	for _, e := range pending {
		if e.State != EntityDeleted || !e.descriptor.Has(shared.CapSoftDelete) {
			continue
		}
		sd, ok := e.Entity.(shared.SoftDeletable)
		if !ok {
			continue
		}

		if err := e.revert(ctx, e.descriptor.SoftDeleteField.DBName); err != nil {
			// the tombstone still only writes the flag column
			i.logger.Warn("Failed to revert pending edits before soft delete",
				zap.String("table", e.descriptor.Table()),
				zap.Error(err),
			)
		}
		sd.MarkDeleted()
		e.State = EntityModified
		e.softDelete = true
		rewritten++
	}
	return rewritten
}
