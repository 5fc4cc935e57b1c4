package shared

import "context"

// SaveResult is the outcome of a committed unit of work
type SaveResult struct {
	RowsAffected int64
	// EventsCollected is the number of events harvested before commit
	EventsCollected int
	// DispatchErr is non-nil when delivery was degraded; the save still succeeded
	DispatchErr *DispatchError
}

// Degraded reports a successful commit whose side effects were only partly delivered
func (r SaveResult) Degraded() bool {
	return !r.DispatchErr.Empty()
}

// UnitOfWork is the single transaction boundary used by application services
type UnitOfWork interface {
	SaveChanges(ctx context.Context) (SaveResult, error)
}
