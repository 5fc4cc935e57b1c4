package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	Versioned
	EventSource
	AddDomainEvent(event DomainEvent)
}

// BaseAggregateRoot provides identity, an optimistic version and a pending
// event queue. The queue is append-only until the unit of work drains it.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int           `gorm:"not null;default:1"`
	domainEvents []DomainEvent `gorm:"-"`
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent queues a domain event
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns a copy of the pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	if len(a.domainEvents) == 0 {
		return nil
	}
	out := make([]DomainEvent, len(a.domainEvents))
	copy(out, a.domainEvents)
	return out
}

// ClearDomainEvents drops the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}

// TenantAggregateRoot extends BaseAggregateRoot with a tenant owner.
// The tenant is stamped by the caller at creation; writes are not
// restricted by the current tenant.
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// GetTenantID returns the owning tenant
func (t *TenantAggregateRoot) GetTenantID() uuid.UUID {
	return t.TenantID
}

// NewTenantAggregateRoot creates a new tenant-scoped aggregate root
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		TenantID:          tenantID,
	}
}
