package filter

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/devicecenter/backend/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const (
	// DefaultTenantColumn is the column backing TenantScoped models
	DefaultTenantColumn = "tenant_id"
	// DefaultSoftDeleteColumn is the column backing SoftDeletable models
	DefaultSoftDeleteColumn = "is_deleted"
	// DefaultVersionColumn is the column backing Versioned models
	DefaultVersionColumn = "version"

	bypassKey  = "filter:bypass"
	appliedKey = "filter:applied"
)

// Option configures a Registry
type Option func(*Registry)

// WithRequireTenant makes reads of tenant-scoped models fail with
// tenant.ErrTenantRequired when no tenant is set, instead of spanning all tenants
func WithRequireTenant(required bool) Option {
	return func(r *Registry) {
		r.requireTenant = required
	}
}

// WithColumns overrides the tenant and soft-delete column names.
// Empty values keep the defaults.
func WithColumns(tenantColumn, softDeleteColumn string) Option {
	return func(r *Registry) {
		if tenantColumn != "" {
			r.tenantColumn = tenantColumn
		}
		if softDeleteColumn != "" {
			r.softDeleteColumn = softDeleteColumn
		}
	}
}

// WithNamingStrategy sets the namer used to parse model schemas.
// It must match the namer of the *gorm.DB the filters are installed on.
func WithNamingStrategy(namer schema.Namer) Option {
	return func(r *Registry) {
		if namer != nil {
			r.namer = namer
		}
	}
}

// WithLogger sets the registry logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry holds the compiled row filters of every registered model.
// Models are registered at startup; afterwards the registry is read-only and
// shared by all concurrent reads and units of work.
type Registry struct {
	mu               sync.RWMutex
	descriptors      map[reflect.Type]*Descriptor
	schemaCache      *sync.Map
	namer            schema.Namer
	tenantColumn     string
	softDeleteColumn string
	requireTenant    bool
	logger           *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		descriptors:      make(map[reflect.Type]*Descriptor),
		schemaCache:      &sync.Map{},
		namer:            schema.NamingStrategy{},
		tenantColumn:     DefaultTenantColumn,
		softDeleteColumn: DefaultSoftDeleteColumn,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RequireTenant reports whether reads without a tenant are denied
func (r *Registry) RequireTenant() bool {
	return r.requireTenant
}

// Register parses each model once and compiles its filter.
// It returns a *ConfigurationError when a model is not a struct or declares
// TenantScoped without a resolvable tenant column. A SoftDeletable model
// without a resolvable flag column is registered as not soft-deletable.
func (r *Registry) Register(models ...any) error {
	for _, model := range models {
		d, err := r.describe(model)
		if err != nil {
			return err
		}

		r.mu.Lock()
		r.descriptors[d.Type] = d
		r.mu.Unlock()

		r.logger.Debug("Registered model filters",
			zap.String("model", d.Type.String()),
			zap.String("table", d.Schema.Table),
			zap.Stringer("capabilities", d.Capabilities),
		)
	}
	return nil
}

func (r *Registry) describe(model any) (*Descriptor, error) {
	t := modelType(model)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, &ConfigurationError{Model: fmt.Sprintf("%T", model), Reason: "model must be a struct or pointer to struct"}
	}

	s, err := schema.Parse(reflect.New(t).Interface(), r.schemaCache, r.namer)
	if err != nil {
		return nil, &ConfigurationError{Model: t.String(), Reason: "cannot parse schema", Err: err}
	}

	d := &Descriptor{
		Type:         t,
		Schema:       s,
		Capabilities: shared.CapabilitiesOf(reflect.New(t).Interface()),
	}

	if d.Capabilities.Has(shared.CapTenantScoped) {
		d.TenantField = s.LookUpField(r.tenantColumn)
		if d.TenantField == nil || d.TenantField.DBName == "" {
			return nil, &ConfigurationError{
				Model:  t.String(),
				Reason: fmt.Sprintf("declares tenant scoping but has no %q column", r.tenantColumn),
			}
		}
	}

	if d.Capabilities.Has(shared.CapSoftDelete) {
		d.SoftDeleteField = s.LookUpField(r.softDeleteColumn)
		if d.SoftDeleteField == nil || d.SoftDeleteField.DBName == "" {
			r.logger.Warn("Model declares soft delete without flag column, treating as hard-deletable",
				zap.String("model", t.String()),
				zap.String("column", r.softDeleteColumn),
			)
			d.SoftDeleteField = nil
			d.Capabilities = d.Capabilities.Without(shared.CapSoftDelete)
		}
	}

	if d.Capabilities.Has(shared.CapVersioned) {
		d.VersionField = s.LookUpField(DefaultVersionColumn)
		if d.VersionField == nil || d.VersionField.DBName == "" {
			r.logger.Warn("Model declares versioning without version column, optimistic locking disabled",
				zap.String("model", t.String()),
			)
			d.VersionField = nil
			d.Capabilities = d.Capabilities.Without(shared.CapVersioned)
		}
	}

	return d, nil
}

// Lookup returns the descriptor of a registered model. model may be a
// struct, a pointer to one, or a slice of either.
func (r *Registry) Lookup(model any) (*Descriptor, bool) {
	return r.lookupType(modelType(model))
}

func (r *Registry) lookupType(t reflect.Type) (*Descriptor, bool) {
	if t == nil {
		return nil, false
	}
	r.mu.RLock()
	d, ok := r.descriptors[t]
	r.mu.RUnlock()
	return d, ok
}

// Apply attaches the compiled filter of model to a read query.
// Unregistered models are returned unchanged. Apply performs no I/O.
func (r *Registry) Apply(query *gorm.DB, model any) *gorm.DB {
	tx := query.Set(appliedKey, true)

	d, ok := r.Lookup(model)
	if !ok {
		return tx
	}

	exprs, err := d.predicate(statementContext(tx), r.requireTenant)
	if err != nil {
		_ = tx.AddError(err)
		return tx
	}
	if len(exprs) == 0 {
		return tx
	}
	return tx.Clauses(clause.Where{Exprs: exprs})
}

// Scope returns Apply as a GORM scope
func (r *Registry) Scope(model any) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return r.Apply(db, model)
	}
}

// IgnoreFilters marks a query so the installed callbacks leave it unfiltered.
// GORM's Unscoped has the same effect.
func IgnoreFilters(db *gorm.DB) *gorm.DB {
	return db.Set(bypassKey, true)
}

// Install registers query and row callbacks on db so every read of a
// registered model is filtered without an explicit Apply
func (r *Registry) Install(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("filter:before_query", r.beforeRead); err != nil {
		return fmt.Errorf("register query filter callback: %w", err)
	}
	if err := db.Callback().Row().Before("gorm:row").Register("filter:before_row", r.beforeRead); err != nil {
		return fmt.Errorf("register row filter callback: %w", err)
	}
	return nil
}

// Name implements gorm.Plugin
func (r *Registry) Name() string {
	return "devicecenter:filters"
}

// Initialize implements gorm.Plugin by installing the read callbacks
func (r *Registry) Initialize(db *gorm.DB) error {
	return r.Install(db)
}

// Uninstall removes the callbacks added by Install
func Uninstall(db *gorm.DB) {
	_ = db.Callback().Query().Remove("filter:before_query")
	_ = db.Callback().Row().Remove("filter:before_row")
}

func (r *Registry) beforeRead(db *gorm.DB) {
	if db.Error != nil || db.Statement.Schema == nil {
		return
	}
	if db.Statement.Unscoped || isSet(db, bypassKey) || isSet(db, appliedKey) {
		return
	}

	d, ok := r.lookupType(db.Statement.Schema.ModelType)
	if !ok {
		return
	}

	exprs, err := d.predicate(statementContext(db), r.requireTenant)
	if err != nil {
		_ = db.AddError(err)
		return
	}
	if len(exprs) > 0 {
		db.Statement.AddClause(clause.Where{Exprs: exprs})
	}
}

func isSet(db *gorm.DB, key string) bool {
	v, ok := db.Get(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func statementContext(db *gorm.DB) context.Context {
	if db.Statement != nil && db.Statement.Context != nil {
		return db.Statement.Context
	}
	return context.Background()
}

func modelType(model any) reflect.Type {
	if model == nil {
		return nil
	}
	var t reflect.Type
	if rt, ok := model.(reflect.Type); ok {
		t = rt
	} else {
		t = reflect.TypeOf(model)
	}
	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	return t
}
