package shared

import "context"

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes a domain event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler is interested in
	// An empty slice means the handler receives all events
	EventTypes() []string
}

// NamedHandler lets a handler report a stable name in dispatch failures
type NamedHandler interface {
	HandlerName() string
}

// EventDispatcher delivers committed events to subscribers.
// A non-nil error is a *DispatchError; it never means the save failed.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber subscribes to domain events
type EventSubscriber interface {
	// Subscribe registers a handler for specific event types
	// If no event types are provided, the handler's own EventTypes are used
	Subscribe(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes a handler from the subscription list
	Unsubscribe(handler EventHandler)
}

// EventBus combines dispatching and subscription
type EventBus interface {
	EventDispatcher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NopDispatcher drops every event. Used when no bus is configured.
type NopDispatcher struct{}

// Dispatch implements EventDispatcher
func (NopDispatcher) Dispatch(context.Context, ...DomainEvent) error {
	return nil
}
