package shared

import (
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// Capability is a bit set of cross-cutting persistence behaviours an entity
// type declares. It is resolved once per type, at registration.
type Capability uint8

const (
	// CapSoftDelete marks types whose deletes become is_deleted = true
	CapSoftDelete Capability = 1 << iota
	// CapTenantScoped marks types whose reads are restricted to the current tenant
	CapTenantScoped
	// CapEventSource marks types that queue domain events for dispatch after save
	CapEventSource
	// CapVersioned marks types updated with an optimistic version check
	CapVersioned
)

// Has reports whether all bits of other are set
func (c Capability) Has(other Capability) bool {
	return other != 0 && c&other == other
}

// Without clears the given bits
func (c Capability) Without(other Capability) Capability {
	return c &^ other
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	if c.Has(CapSoftDelete) {
		parts = append(parts, "soft-delete")
	}
	if c.Has(CapTenantScoped) {
		parts = append(parts, "tenant-scoped")
	}
	if c.Has(CapEventSource) {
		parts = append(parts, "event-source")
	}
	if c.Has(CapVersioned) {
		parts = append(parts, "versioned")
	}
	return strings.Join(parts, "|")
}

// SoftDeletable entities are tombstoned instead of physically removed
type SoftDeletable interface {
	IsSoftDeleted() bool
	MarkDeleted()
}

// TenantScoped entities belong to exactly one tenant
type TenantScoped interface {
	GetTenantID() uuid.UUID
}

// EventSource entities queue domain events until the unit of work drains them
type EventSource interface {
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// Versioned entities carry an optimistic concurrency counter
type Versioned interface {
	GetVersion() int
	IncrementVersion()
}

var (
	softDeletableType = reflect.TypeOf((*SoftDeletable)(nil)).Elem()
	tenantScopedType  = reflect.TypeOf((*TenantScoped)(nil)).Elem()
	eventSourceType   = reflect.TypeOf((*EventSource)(nil)).Elem()
	versionedType     = reflect.TypeOf((*Versioned)(nil)).Elem()
)

// CapabilitiesOf inspects the declared capabilities of a model type.
// Methods are usually on pointer receivers, so the pointer type is checked.
// Call it at registration time, not per operation.
func CapabilitiesOf(model any) Capability {
	t := reflect.TypeOf(model)
	if t == nil {
		return 0
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	pt := reflect.PointerTo(t)

	var caps Capability
	if pt.Implements(softDeletableType) {
		caps |= CapSoftDelete
	}
	if pt.Implements(tenantScopedType) {
		caps |= CapTenantScoped
	}
	if pt.Implements(eventSourceType) {
		caps |= CapEventSource
	}
	if pt.Implements(versionedType) {
		caps |= CapVersioned
	}
	return caps
}

// SoftDelete is embedded by soft-deletable entities
type SoftDelete struct {
	IsDeleted bool `gorm:"not null;default:false;index"`
}

// IsSoftDeleted reports whether the row is tombstoned
func (s *SoftDelete) IsSoftDeleted() bool {
	return s.IsDeleted
}

// MarkDeleted tombstones the entity
func (s *SoftDelete) MarkDeleted() {
	s.IsDeleted = true
}
