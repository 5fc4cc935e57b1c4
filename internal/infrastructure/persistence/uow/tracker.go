package uow

import (
	"context"
	"fmt"
	"reflect"

	"github.com/devicecenter/backend/internal/infrastructure/persistence/filter"
	"gorm.io/gorm/schema"
)

// Entry is one tracked entity
type Entry struct {
	Entity     any
	State      EntityState
	descriptor *filter.Descriptor
	value      reflect.Value
	// original holds persisted column values as of attach time, keyed by DB name
	original map[string]any
	// softDelete is set by the interceptor when a delete became a tombstone update
	softDelete bool
}

// Descriptor returns the registration record of the entity's type
func (e *Entry) Descriptor() *filter.Descriptor {
	return e.descriptor
}

// SoftDeleted reports whether the interceptor rewrote this entry's delete
func (e *Entry) SoftDeleted() bool {
	return e.softDelete
}

// OriginalValue returns a column value as it was when the entity was attached
func (e *Entry) OriginalValue(column string) (any, bool) {
	if e.original == nil {
		return nil, false
	}
	v, ok := e.original[column]
	return v, ok
}

func (e *Entry) persistedFields() []*schema.Field {
	fields := make([]*schema.Field, 0, len(e.descriptor.Schema.Fields))
	for _, f := range e.descriptor.Schema.Fields {
		if f.DBName != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

func (e *Entry) snapshot(ctx context.Context) {
	fields := e.persistedFields()
	e.original = make(map[string]any, len(fields))
	for _, f := range fields {
		v, _ := f.ValueOf(ctx, e.value)
		e.original[f.DBName] = v
	}
}

// changed reports whether any persisted column differs from the snapshot
func (e *Entry) changed(ctx context.Context) bool {
	if e.original == nil {
		return false
	}
	for _, f := range e.persistedFields() {
		v, _ := f.ValueOf(ctx, e.value)
		if !reflect.DeepEqual(v, e.original[f.DBName]) {
			return true
		}
	}
	return false
}

// revert restores persisted columns from the snapshot, leaving the primary
// key and the columns in keep untouched
func (e *Entry) revert(ctx context.Context, keep ...string) error {
	if e.original == nil {
		return nil
	}
	skip := make(map[string]bool, len(keep))
	for _, k := range keep {
		skip[k] = true
	}
	for _, f := range e.persistedFields() {
		if f.PrimaryKey || skip[f.DBName] {
			continue
		}
		orig, ok := e.original[f.DBName]
		if !ok {
			continue
		}
		if err := f.Set(ctx, e.value, orig); err != nil {
			return fmt.Errorf("revert %s.%s: %w", e.descriptor.Table(), f.DBName, err)
		}
	}
	return nil
}

// tracker keeps entries in insertion order, keyed by entity pointer
type tracker struct {
	entries []*Entry
	index   map[any]*Entry
}

func newTracker() *tracker {
	return &tracker{index: make(map[any]*Entry)}
}

func (t *tracker) get(entity any) (*Entry, bool) {
	e, ok := t.index[entity]
	return e, ok
}

func (t *tracker) add(e *Entry) {
	t.entries = append(t.entries, e)
	t.index[e.Entity] = e
}

func (t *tracker) detach(e *Entry) {
	delete(t.index, e.Entity)
	for i, cur := range t.entries {
		if cur == e {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			break
		}
	}
	e.State = EntityDetached
}

// detectChanges promotes unchanged entries whose columns moved to modified
func (t *tracker) detectChanges(ctx context.Context) {
	for _, e := range t.entries {
		if e.State == EntityUnchanged && e.changed(ctx) {
			e.State = EntityModified
		}
	}
}

// pending returns the entries that need a write, in tracking order
func (t *tracker) pending() []*Entry {
	var out []*Entry
	for _, e := range t.entries {
		switch e.State {
		case EntityAdded, EntityModified, EntityDeleted:
			out = append(out, e)
		}
	}
	return out
}

func (t *tracker) all() []*Entry {
	out := make([]*Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// acceptChanges moves committed entries back to unchanged with fresh
// snapshots; physically deleted entries are detached
func (t *tracker) acceptChanges(ctx context.Context, committed []*Entry) {
	for _, e := range committed {
		if e.State == EntityDeleted {
			t.detach(e)
			continue
		}
		e.State = EntityUnchanged
		e.softDelete = false
		e.snapshot(ctx)
	}
}

func (t *tracker) reset() {
	for _, e := range t.entries {
		e.State = EntityDetached
	}
	t.entries = nil
	t.index = make(map[any]*Entry)
}
