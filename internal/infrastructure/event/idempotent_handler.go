package event

import (
	"context"
	"sync/atomic"

	"github.com/devicecenter/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyMetrics tracks idempotency-related statistics
type IdempotencyMetrics struct {
	EventsProcessed atomic.Int64
	EventsDuplicate atomic.Int64
	EventsFailed    atomic.Int64
}

// Stats returns a snapshot of the current metrics
func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: m.EventsProcessed.Load(),
		EventsDuplicate: m.EventsDuplicate.Load(),
		EventsFailed:    m.EventsFailed.Load(),
	}
}

// IdempotencyStats is a snapshot of idempotency metrics
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// IdempotentHandler wraps a subscriber so a redelivered event is handled at
// most once per subscriber. Keys combine the subscriber name and the event
// ID, so one store can be shared by all subscribers.
type IdempotentHandler struct {
	handler shared.EventHandler
	name    string
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	logger  *zap.Logger
	metrics *IdempotencyMetrics
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the idempotency configuration
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithIdempotencyMetrics shares a metrics collector between handlers
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.metrics = metrics
	}
}

// NewIdempotentHandler creates a new idempotent handler wrapper
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		handler: handler,
		name:    HandlerName(handler),
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		logger:  logger,
		metrics: &IdempotencyMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the event types of the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// HandlerName reports the wrapped handler's name
func (h *IdempotentHandler) HandlerName() string {
	return h.name
}

// Handle processes the event unless this subscriber has already seen it.
// A store failure falls back to handling the event, accepting a possible
// duplicate over a lost delivery. A handler failure keeps the key until the
// TTL expires.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	key := h.key(event)
	fields := []zap.Field{
		zap.String("subscriber", h.name),
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	}

	isNew, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	if err != nil {
		h.logger.Warn("Idempotency check failed, handling anyway", append(fields, zap.Error(err))...)
	} else if !isNew {
		h.metrics.EventsDuplicate.Add(1)
		h.logger.Debug("Duplicate event skipped", fields...)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.metrics.EventsFailed.Add(1)
		return err
	}

	h.metrics.EventsProcessed.Add(1)
	return nil
}

func (h *IdempotentHandler) key(event shared.DomainEvent) string {
	return h.name + ":" + event.EventID().String()
}

// GetMetrics returns the metrics for this handler
func (h *IdempotentHandler) GetMetrics() *IdempotencyMetrics {
	return h.metrics
}

// Unwrap returns the underlying handler
func (h *IdempotentHandler) Unwrap() shared.EventHandler {
	return h.handler
}

var (
	_ shared.EventHandler = (*IdempotentHandler)(nil)
	_ shared.NamedHandler = (*IdempotentHandler)(nil)
)

// WrapHandlersWithIdempotency wraps multiple handlers with idempotency checking
func WrapHandlersWithIdempotency(
	handlers []shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) []shared.EventHandler {
	wrapped := make([]shared.EventHandler, len(handlers))
	for i, h := range handlers {
		wrapped[i] = NewIdempotentHandler(h, store, logger, opts...)
	}
	return wrapped
}
