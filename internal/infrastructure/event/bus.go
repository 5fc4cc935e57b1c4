package event

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/devicecenter/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// InMemoryEventBus delivers committed events to subscribers synchronously, in
// order. A failing or panicking subscriber never stops delivery to the others;
// every failure is reported in the returned *shared.DispatchError.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	timeout  time.Duration
	running  atomic.Bool
}

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithDispatchTimeout bounds one Dispatch call. Zero means no bound.
func WithDispatchTimeout(d time.Duration) BusOption {
	return func(b *InMemoryEventBus) {
		b.timeout = d
	}
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger.Named("event_bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dispatch offers each event to its subscribers. Cancellation of ctx stops
// before the next event; the events not yet offered are counted as undispatched.
func (b *InMemoryEventBus) Dispatch(ctx context.Context, events ...shared.DomainEvent) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	dispatchErr := &shared.DispatchError{}
	for i, event := range events {
		if err := ctx.Err(); err != nil {
			dispatchErr.Undispatched = len(events) - i
			dispatchErr.Cause = err
			break
		}
		for _, handler := range b.registry.GetHandlers(event.EventType()) {
			if err := b.dispatchToHandler(ctx, handler, event); err != nil {
				name := HandlerName(handler)
				b.logger.Error("Subscriber failed to handle event",
					zap.String("subscriber", name),
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.Error(err),
				)
				dispatchErr.Failures = append(dispatchErr.Failures, shared.SubscriberFailure{
					EventID:    event.EventID(),
					EventType:  event.EventType(),
					Subscriber: name,
					Err:        err,
				})
			}
		}
	}

	if dispatchErr.Empty() {
		return nil
	}
	return dispatchErr
}

// Subscribe registers a handler for specific event types
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("Subscriber registered",
		zap.String("subscriber", HandlerName(handler)),
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("Subscriber removed", zap.String("subscriber", HandlerName(handler)))
}

// Running reports whether Start has been called without a matching Stop
func (b *InMemoryEventBus) Running() bool {
	return b.running.Load()
}

// Start starts the event bus
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.running.Store(true)
	b.logger.Info("Event bus started", zap.Int("subscribers", len(b.registry.GetAllHandlers())))
	return nil
}

// Stop stops the event bus. Dispatch is synchronous, so nothing is in flight
// once callers have returned.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.running.Store(false)
	b.logger.Info("Event bus stopped")
	return nil
}

// dispatchToHandler turns a subscriber panic into an error
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

// HandlerName returns the name a handler reports, or its type name
func HandlerName(handler shared.EventHandler) string {
	if named, ok := handler.(shared.NamedHandler); ok {
		return named.HandlerName()
	}
	return fmt.Sprintf("%T", handler)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
