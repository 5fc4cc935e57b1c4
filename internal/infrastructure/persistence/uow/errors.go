package uow

import (
	"errors"
	"fmt"
)

// ErrEntityNotRegistered is returned when tracking a type the filter registry
// does not know
var ErrEntityNotRegistered = errors.New("entity type not registered")

// ErrInvalidEntity is returned when tracking something that is not a non-nil
// pointer to a struct
var ErrInvalidEntity = errors.New("entity must be a non-nil pointer to struct")

// PersistenceError reports a save that could not commit. Nothing from the
// unit of work is durable and no event was dispatched.
type PersistenceError struct {
	Op    string
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
