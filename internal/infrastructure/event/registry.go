package event

import (
	"sync"

	"github.com/devicecenter/backend/internal/domain/shared"
)

// HandlerRegistry manages event handler registrations. Handlers are returned
// in subscription order; a handler subscribed twice to one type runs once.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]shared.EventHandler // eventType -> handlers
	wildcard []shared.EventHandler            // handlers for all events
}

// NewHandlerRegistry creates a new handler registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string][]shared.EventHandler),
	}
}

// Register adds a handler for specific event types.
// If no event types are provided, the handler receives all events.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = appendUnique(r.wildcard, handler)
		return
	}
	for _, eventType := range eventTypes {
		r.handlers[eventType] = appendUnique(r.handlers[eventType], handler)
	}
}

// Unregister removes a handler from all event types
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = removeHandler(r.wildcard, handler)
	for eventType, handlers := range r.handlers {
		if rest := removeHandler(handlers, handler); len(rest) > 0 {
			r.handlers[eventType] = rest
		} else {
			delete(r.handlers, eventType)
		}
	}
}

// GetHandlers returns the type-specific handlers of eventType followed by the
// wildcard handlers
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typeHandlers := r.handlers[eventType]
	result := make([]shared.EventHandler, 0, len(typeHandlers)+len(r.wildcard))
	result = append(result, typeHandlers...)
	for _, h := range r.wildcard {
		result = appendUnique(result, h)
	}
	return result
}

// GetAllHandlers returns every registered handler once
func (r *HandlerRegistry) GetAllHandlers() []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []shared.EventHandler
	for _, h := range r.wildcard {
		result = appendUnique(result, h)
	}
	for _, handlers := range r.handlers {
		for _, h := range handlers {
			result = appendUnique(result, h)
		}
	}
	return result
}

func appendUnique(handlers []shared.EventHandler, handler shared.EventHandler) []shared.EventHandler {
	for _, h := range handlers {
		if h == handler {
			return handlers
		}
	}
	return append(handlers, handler)
}

func removeHandler(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	result := make([]shared.EventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != target {
			result = append(result, h)
		}
	}
	return result
}
