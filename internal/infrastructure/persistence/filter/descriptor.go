package filter

import (
	"context"
	"reflect"

	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Descriptor is the registration record of one model type: its parsed
// schema, resolved capabilities and the columns backing them.
// Descriptors are immutable once registered.
type Descriptor struct {
	Type            reflect.Type
	Schema          *schema.Schema
	Capabilities    shared.Capability
	SoftDeleteField *schema.Field
	TenantField     *schema.Field
	VersionField    *schema.Field
}

// Has reports whether the model declares capability c
func (d *Descriptor) Has(c shared.Capability) bool {
	return d.Capabilities.Has(c)
}

// Table returns the model's table name
func (d *Descriptor) Table() string {
	return d.Schema.Table
}

// predicate compiles the row filter for a read issued under ctx.
// The tenant clause is only added when ctx carries a tenant, unless
// requireTenant turns a missing tenant into ErrTenantRequired.
func (d *Descriptor) predicate(ctx context.Context, requireTenant bool) ([]clause.Expression, error) {
	var exprs []clause.Expression

	if d.SoftDeleteField != nil {
		exprs = append(exprs, clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: d.SoftDeleteField.DBName},
			Value:  false,
		})
	}

	if d.TenantField != nil {
		id, ok := tenant.Current(ctx)
		switch {
		case ok:
			exprs = append(exprs, clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: d.TenantField.DBName},
				Value:  id,
			})
		case requireTenant:
			return nil, tenant.ErrTenantRequired
		}
	}

	return exprs, nil
}
