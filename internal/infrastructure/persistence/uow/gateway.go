package uow

import (
	"context"

	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/filter"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/tenant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "github.com/devicecenter/backend/internal/infrastructure/persistence/uow"

// Option configures a Gateway
type Option func(*Gateway)

// WithDispatcher sets the post-commit event dispatcher.
// Without one, collected events are dropped after commit.
func WithDispatcher(d shared.EventDispatcher) Option {
	return func(g *Gateway) {
		if d != nil {
			g.dispatcher = d
		}
	}
}

// WithHooks sets the observability hooks
func WithHooks(h Hooks) Option {
	return func(g *Gateway) {
		if h != nil {
			g.hooks = h
		}
	}
}

// WithLogger sets the gateway logger
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithTracer sets the tracer used for save spans
func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) {
		if t != nil {
			g.tracer = t
		}
	}
}

// Gateway is the persistence entry point: it hands out units of work for
// writes and filtered queries for reads
type Gateway struct {
	db          *gorm.DB
	registry    *filter.Registry
	dispatcher  shared.EventDispatcher
	interceptor *Interceptor
	collector   *Collector
	hooks       Hooks
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewGateway creates a gateway over db. Every entity type passed to a unit of
// work must be registered with registry.
func NewGateway(db *gorm.DB, registry *filter.Registry, opts ...Option) *Gateway {
	g := &Gateway{
		db:         db,
		registry:   registry,
		dispatcher: shared.NopDispatcher{},
		collector:  NewCollector(),
		hooks:      noopHooks{},
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.interceptor = NewInterceptor(g.logger)
	return g
}

// Registry returns the filter registry
func (g *Gateway) Registry() *filter.Registry {
	return g.registry
}

// Begin starts a unit of work bound to the tenant carried by ctx
func (g *Gateway) Begin(ctx context.Context) *UnitOfWork {
	id, ok := tenant.Current(ctx)
	return &UnitOfWork{
		gateway:   g,
		ctx:       ctx,
		tenantID:  id,
		hasTenant: ok,
		tracker:   newTracker(),
		state:     SavePending,
	}
}

// Query returns a read of model with tenant and soft-delete filters applied
func (g *Gateway) Query(ctx context.Context, model any) *gorm.DB {
	return g.registry.Apply(g.db.WithContext(ctx).Model(model), model)
}

// Unfiltered returns a read session with every row filter bypassed
func (g *Gateway) Unfiltered(ctx context.Context) *gorm.DB {
	return filter.IgnoreFilters(g.db.WithContext(ctx))
}
