package uow

import (
	"github.com/devicecenter/backend/internal/domain/shared"
)

// Collector harvests queued domain events from tracked entities
type Collector struct{}

// NewCollector creates a collector
func NewCollector() *Collector {
	return &Collector{}
}

// Collect returns the pending events of every event-source entry, entity by
// entity in tracking order and queue order within an entity, and clears each
// queue. A second call over the same entries returns nothing.
func (c *Collector) Collect(entries []*Entry) []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, e := range entries {
		if !e.descriptor.Has(shared.CapEventSource) {
			continue
		}
		src, ok := e.Entity.(shared.EventSource)
		if !ok {
			continue
		}
		queued := src.GetDomainEvents()
		if len(queued) == 0 {
			continue
		}
		events = append(events, queued...)
		src.ClearDomainEvents()
	}
	return events
}
