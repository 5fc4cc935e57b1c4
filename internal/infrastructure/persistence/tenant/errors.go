package tenant

import "errors"

// ErrTenantRequired is returned when a tenant is required but not found in context
var ErrTenantRequired = errors.New("tenant_id is required but not found in context")

// ErrInvalidTenantID is returned when tenant_id format is invalid
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// ErrTenantAlreadySet is returned when a scope that already carries a tenant
// is given a different one
var ErrTenantAlreadySet = errors.New("tenant already set for this scope")

// ErrTenantSwitched is returned by a save when the tenant on the save context
// differs from the tenant the unit of work was started with
var ErrTenantSwitched = errors.New("tenant changed within unit of work")
