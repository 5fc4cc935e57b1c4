package telemetry

import (
	"context"

	"github.com/devicecenter/backend/internal/infrastructure/persistence/uow"
	"go.opentelemetry.io/otel/metric"
)

// GatewayMeterName is the instrumentation scope of the gateway metrics
const GatewayMeterName = "devicecenter.persistence.gateway"

// GatewayMetrics records one set of measurements per SaveChanges call.
// It implements uow.Hooks.
type GatewayMetrics struct {
	saves            *Counter
	saveDuration     *Histogram
	rowsAffected     *Counter
	events           *Counter
	softDeletes      *Counter
	dispatchFailures *Counter
}

// NewGatewayMetrics creates the gateway instruments on meter
func NewGatewayMetrics(meter metric.Meter) (*GatewayMetrics, error) {
	saves, err := NewCounter(meter, "uow_save_total", "SaveChanges calls by final state", "{save}")
	if err != nil {
		return nil, err
	}
	saveDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "uow_save_duration_seconds",
		Description: "SaveChanges latency including event dispatch",
		Unit:        "s",
		Boundaries:  SaveDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	rowsAffected, err := NewCounter(meter, "uow_rows_affected_total", "Rows written by committed saves", "{row}")
	if err != nil {
		return nil, err
	}
	events, err := NewCounter(meter, "uow_events_total", "Domain events collected by saves", "{event}")
	if err != nil {
		return nil, err
	}
	softDeletes, err := NewCounter(meter, "uow_soft_deletes_total", "Deletes rewritten into tombstone updates", "{entity}")
	if err != nil {
		return nil, err
	}
	dispatchFailures, err := NewCounter(meter, "uow_dispatch_failures_total", "Subscriber failures after commit", "{failure}")
	if err != nil {
		return nil, err
	}

	return &GatewayMetrics{
		saves:            saves,
		saveDuration:     saveDuration,
		rowsAffected:     rowsAffected,
		events:           events,
		softDeletes:      softDeletes,
		dispatchFailures: dispatchFailures,
	}, nil
}

// ObserveSave implements uow.Hooks
func (m *GatewayMetrics) ObserveSave(ctx context.Context, report uow.SaveReport) {
	state := AttrSaveState.String(report.State.String())

	m.saves.Inc(ctx, state, AttrConflict.Bool(report.Conflict))
	m.saveDuration.RecordDuration(ctx, report.Duration, state)

	if report.RowsAffected > 0 {
		m.rowsAffected.Add(ctx, report.RowsAffected)
	}
	if report.Events > 0 {
		m.events.Add(ctx, int64(report.Events), state)
	}
	if report.SoftDeletes > 0 {
		m.softDeletes.Add(ctx, int64(report.SoftDeletes))
	}
	if report.DispatchFailures > 0 {
		m.dispatchFailures.Add(ctx, int64(report.DispatchFailures))
	}
}

var _ uow.Hooks = (*GatewayMetrics)(nil)
