package uow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnitOfWork tracks the entities of one business transaction and saves them
// atomically. It is not meant to be shared between requests; a mutex guards
// it against accidental concurrent use.
type UnitOfWork struct {
	gateway   *Gateway
	ctx       context.Context
	tenantID  uuid.UUID
	hasTenant bool

	mu      sync.Mutex
	tracker *tracker
	state   SaveState
}

var _ shared.UnitOfWork = (*UnitOfWork)(nil)

// TenantID returns the tenant the unit of work was started with
func (u *UnitOfWork) TenantID() (uuid.UUID, bool) {
	return u.tenantID, u.hasTenant
}

// State returns the state reached by the last SaveChanges call
func (u *UnitOfWork) State() SaveState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Query returns a filtered read of model
func (u *UnitOfWork) Query(ctx context.Context, model any) *gorm.DB {
	return u.gateway.Query(ctx, model)
}

// Unfiltered returns a read session with row filters bypassed
func (u *UnitOfWork) Unfiltered(ctx context.Context) *gorm.DB {
	return u.gateway.Unfiltered(ctx)
}

// Add tracks entity for insert
func (u *UnitOfWork) Add(entity any) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := checkEntity(entity); err != nil {
		return err
	}

	if e, ok := u.tracker.get(entity); ok {
		if e.State == EntityDeleted {
			e.State = EntityModified
		}
		return nil
	}
	e, err := u.newEntry(entity)
	if err != nil {
		return err
	}
	e.State = EntityAdded
	u.tracker.add(e)
	return nil
}

// Attach tracks an entity loaded from the store as unchanged and snapshots
// its persisted columns
func (u *UnitOfWork) Attach(entity any) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := checkEntity(entity); err != nil {
		return err
	}

	if _, ok := u.tracker.get(entity); ok {
		return nil
	}
	e, err := u.newEntry(entity)
	if err != nil {
		return err
	}
	e.State = EntityUnchanged
	e.snapshot(u.ctx)
	u.tracker.add(e)
	return nil
}

// Update marks entity modified. Untracked entities are attached first.
func (u *UnitOfWork) Update(entity any) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := checkEntity(entity); err != nil {
		return err
	}

	if e, ok := u.tracker.get(entity); ok {
		if e.State == EntityUnchanged || e.State == EntityDeleted {
			e.State = EntityModified
		}
		return nil
	}
	e, err := u.newEntry(entity)
	if err != nil {
		return err
	}
	e.State = EntityModified
	e.snapshot(u.ctx)
	u.tracker.add(e)
	return nil
}

// Remove marks entity deleted. Removing an entity that was only added in this
// unit of work stops tracking it.
func (u *UnitOfWork) Remove(entity any) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := checkEntity(entity); err != nil {
		return err
	}

	if e, ok := u.tracker.get(entity); ok {
		if e.State == EntityAdded {
			u.tracker.detach(e)
			return nil
		}
		e.State = EntityDeleted
		return nil
	}
	e, err := u.newEntry(entity)
	if err != nil {
		return err
	}
	e.State = EntityDeleted
	e.snapshot(u.ctx)
	u.tracker.add(e)
	return nil
}

// Entry returns the tracking entry of entity
func (u *UnitOfWork) Entry(entity any) (*Entry, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tracker.get(entity)
}

// Tracked returns the already tracked instance with the same type and primary
// key as entity, so repeated reads resolve to one object per row
func (u *UnitOfWork) Tracked(entity any) (any, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if checkEntity(entity) != nil {
		return nil, false
	}
	if e, ok := u.tracker.get(entity); ok {
		return e.Entity, true
	}
	rv := reflect.ValueOf(entity).Elem()
	for _, e := range u.tracker.all() {
		if e.value.Type() != rv.Type() {
			continue
		}
		pk := e.descriptor.Schema.PrioritizedPrimaryField
		if pk == nil {
			continue
		}
		want, _ := pk.ValueOf(u.ctx, rv)
		got, _ := pk.ValueOf(u.ctx, e.value)
		if reflect.DeepEqual(want, got) {
			return e.Entity, true
		}
	}
	return nil, false
}

// Entries returns all tracked entries in tracking order
func (u *UnitOfWork) Entries() []*Entry {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.tracker.all()
}

// DetectChanges promotes attached entities with changed columns to modified
func (u *UnitOfWork) DetectChanges() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tracker.detectChanges(u.ctx)
}

// HasChanges reports whether a save would write anything
func (u *UnitOfWork) HasChanges() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tracker.detectChanges(u.ctx)
	return len(u.tracker.pending()) > 0
}

func checkEntity(entity any) error {
	if entity == nil {
		return fmt.Errorf("%w: got nil", ErrInvalidEntity)
	}
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: got %T", ErrInvalidEntity, entity)
	}
	return nil
}

func (u *UnitOfWork) newEntry(entity any) (*Entry, error) {
	rv := reflect.ValueOf(entity)
	d, ok := u.gateway.registry.Lookup(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrEntityNotRegistered, entity)
	}
	return &Entry{Entity: entity, descriptor: d, value: rv.Elem()}, nil
}

// SaveChanges persists every tracked change in one transaction and, once
// committed, dispatches the domain events the entities queued.
//
// Soft-deletable deletes are rewritten into tombstone updates and events are
// collected before anything is written, so a deleted entity still delivers its
// deletion event. A persistence failure returns a *PersistenceError, commits
// nothing, dispatches nothing and resets the unit of work. Subscriber failures
// after commit are reported in SaveResult.DispatchErr and never fail the save.
func (u *UnitOfWork) SaveChanges(ctx context.Context) (shared.SaveResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	g := u.gateway
	start := time.Now()
	ctx, span := g.tracer.Start(ctx, "uow.SaveChanges")
	defer span.End()

	log := g.logger
	if u.hasTenant {
		log = log.With(zap.String("tenant_id", u.tenantID.String()))
	}

	report := SaveReport{}
	fail := func(err error) (shared.SaveResult, error) {
		u.state = SaveFailed
		report.State = SaveFailed
		report.Duration = time.Since(start)
		report.Conflict = errors.Is(err, shared.ErrConcurrencyConflict)
		g.hooks.ObserveSave(ctx, report)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("Unit of work save failed", zap.Error(err))
		return shared.SaveResult{}, err
	}

	u.state = SavePending
	if !tenant.Same(u.ctx, ctx) {
		return fail(tenant.ErrTenantSwitched)
	}
	if err := ctx.Err(); err != nil {
		return fail(&PersistenceError{Op: "begin", Err: err})
	}

	u.tracker.detectChanges(ctx)
	pending := u.tracker.pending()
	tracked := u.tracker.all()

	report.SoftDeletes = g.interceptor.Intercept(ctx, pending)
	u.state = SaveIntercepted

	events := g.collector.Collect(tracked)
	report.Events = len(events)
	u.state = SaveEventsCollected

	rows, err := u.persist(ctx, pending)
	if err != nil {
		u.tracker.reset()
		log.Debug("Discarded collected events after failed save", zap.Int("events", len(events)))
		return fail(err)
	}
	u.state = SaveCommitted
	u.tracker.acceptChanges(ctx, pending)

	dispatchErr := u.dispatch(ctx, events)
	u.state = SaveDispatched

	result := shared.SaveResult{
		RowsAffected:    rows,
		EventsCollected: len(events),
		DispatchErr:     dispatchErr,
	}

	report.State = SaveDispatched
	report.RowsAffected = rows
	report.Duration = time.Since(start)
	if dispatchErr != nil {
		report.DispatchFailures = len(dispatchErr.Failures)
	}
	g.hooks.ObserveSave(ctx, report)

	span.SetAttributes(
		attribute.Int64("uow.rows_affected", rows),
		attribute.Int("uow.events", len(events)),
		attribute.Int("uow.soft_deletes", report.SoftDeletes),
	)

	if result.Degraded() {
		log.Warn("Unit of work committed with degraded event dispatch",
			zap.Int64("rows_affected", rows),
			zap.Int("events", len(events)),
			zap.Error(dispatchErr),
		)
	} else {
		log.Debug("Unit of work committed",
			zap.Int64("rows_affected", rows),
			zap.Int("events", len(events)),
			zap.Int("soft_deletes", report.SoftDeletes),
		)
	}

	return result, nil
}

func (u *UnitOfWork) persist(ctx context.Context, pending []*Entry) (int64, error) {
	if len(pending) == 0 {
		return 0, nil
	}

	var (
		rows     int64
		restores []func()
	)
	err := u.gateway.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range pending {
			n, restore, err := u.write(tx, e)
			if restore != nil {
				restores = append(restores, restore)
			}
			if err != nil {
				return err
			}
			rows += n
		}
		return nil
	})
	if err != nil {
		for _, restore := range restores {
			restore()
		}
		var pErr *PersistenceError
		if errors.As(err, &pErr) {
			return 0, pErr
		}
		return 0, &PersistenceError{Op: "commit", Err: err}
	}
	return rows, nil
}

// write persists one entry. The returned restore func undoes in-memory version
// bumps if the transaction rolls back.
func (u *UnitOfWork) write(tx *gorm.DB, e *Entry) (int64, func(), error) {
	d := e.descriptor
	table := d.Table()

	switch {
	case e.State == EntityAdded:
		res := tx.Create(e.Entity)
		if res.Error != nil {
			return 0, nil, &PersistenceError{Op: "insert", Table: table, Err: res.Error}
		}
		return res.RowsAffected, nil, nil

	case e.State == EntityModified && e.softDelete:
		q := tx.Table(table).Where(primaryKeyClause(u.ctx, e))
		values := map[string]any{d.SoftDeleteField.DBName: true}
		u.touch(e, tx.NowFunc(), values)
		restore := u.bumpVersion(e, &q, values)
		res := q.Updates(values)
		if res.Error != nil {
			return 0, restore, &PersistenceError{Op: "soft delete", Table: table, Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return 0, restore, &PersistenceError{Op: "soft delete", Table: table, Err: shared.ErrConcurrencyConflict}
		}
		return res.RowsAffected, restore, nil

	case e.State == EntityModified:
		q := tx.Model(e.Entity).Select("*")
		var restore func()
		if v, ok := e.Entity.(shared.Versioned); ok && d.VersionField != nil {
			expected := v.GetVersion()
			v.IncrementVersion()
			restore = func() { _ = d.VersionField.Set(u.ctx, e.value, expected) }
			q = q.Where(clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: d.VersionField.DBName},
				Value:  expected,
			})
		}
		res := q.Updates(e.Entity)
		if res.Error != nil {
			return 0, restore, &PersistenceError{Op: "update", Table: table, Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return 0, restore, &PersistenceError{Op: "update", Table: table, Err: shared.ErrConcurrencyConflict}
		}
		return res.RowsAffected, restore, nil

	case e.State == EntityDeleted:
		q := tx
		if d.VersionField != nil {
			if v, ok := e.Entity.(shared.Versioned); ok {
				q = q.Where(clause.Eq{
					Column: clause.Column{Table: clause.CurrentTable, Name: d.VersionField.DBName},
					Value:  v.GetVersion(),
				})
			}
		}
		res := q.Delete(e.Entity)
		if res.Error != nil {
			return 0, nil, &PersistenceError{Op: "delete", Table: table, Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return 0, nil, &PersistenceError{Op: "delete", Table: table, Err: shared.ErrConcurrencyConflict}
		}
		return res.RowsAffected, nil, nil
	}

	return 0, nil, nil
}

// bumpVersion adds the optimistic check and increment to a tombstone update
func (u *UnitOfWork) bumpVersion(e *Entry, q **gorm.DB, values map[string]any) func() {
	d := e.descriptor
	v, ok := e.Entity.(shared.Versioned)
	if !ok || d.VersionField == nil {
		return nil
	}
	expected := v.GetVersion()
	v.IncrementVersion()
	values[d.VersionField.DBName] = expected + 1
	*q = (*q).Where(clause.Eq{Column: clause.Column{Name: d.VersionField.DBName}, Value: expected})
	return func() { _ = d.VersionField.Set(u.ctx, e.value, expected) }
}

// touch stamps the auto-update timestamp of a tombstone, which a map update
// would otherwise leave untouched.
func (u *UnitOfWork) touch(e *Entry, now time.Time, values map[string]any) {
	field := e.descriptor.Schema.LookUpField("updated_at")
	if field == nil || field.AutoUpdateTime == 0 {
		return
	}
	if err := field.Set(u.ctx, e.value, now); err != nil {
		return
	}
	values[field.DBName] = now
}

func primaryKeyClause(ctx context.Context, e *Entry) clause.Expression {
	pk := e.descriptor.Schema.PrioritizedPrimaryField
	v, _ := pk.ValueOf(ctx, e.value)
	return clause.Eq{Column: clause.Column{Name: pk.DBName}, Value: v}
}

func (u *UnitOfWork) dispatch(ctx context.Context, events []shared.DomainEvent) *shared.DispatchError {
	if len(events) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &shared.DispatchError{Undispatched: len(events), Cause: err}
	}
	err := u.gateway.dispatcher.Dispatch(ctx, events...)
	de := shared.AsDispatchError(err)
	if de.Empty() {
		return nil
	}
	return de
}
