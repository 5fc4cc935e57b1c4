package uow

import (
	"context"
	"time"
)

// SaveReport summarizes one SaveChanges call for observability
type SaveReport struct {
	State            SaveState
	Duration         time.Duration
	RowsAffected     int64
	Events           int
	SoftDeletes      int
	DispatchFailures int
	Conflict         bool
}

// Hooks captures gateway-level observability events
type Hooks interface {
	ObserveSave(ctx context.Context, report SaveReport)
}

type noopHooks struct{}

func (noopHooks) ObserveSave(context.Context, SaveReport) {}
