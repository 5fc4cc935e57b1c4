package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/devicecenter/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs a recording global tracer provider for one test
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "device.create")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "device.create", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)
}

func TestStartSpan_WithOptions(t *testing.T) {
	sr := setupTestTracer(t)
	deviceID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "device.rename",
		telemetry.WithSpanKind(trace.SpanKindServer),
		telemetry.WithAttribute(telemetry.SpanAttrDeviceID, deviceID),
		telemetry.WithAttribute("retries", 2),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	attrs := attrMap(spans[0])
	assert.Equal(t, deviceID.String(), attrs[telemetry.SpanAttrDeviceID].AsString())
	assert.Equal(t, int64(2), attrs["retries"].AsInt64())
}

func TestStartServiceSpan_Nested(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, parent := telemetry.StartServiceSpan(context.Background(), "device", "delete")
	_, child := telemetry.StartServiceSpan(ctx, "uow", "SaveChanges")
	child.End()
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "uow.SaveChanges", spans[0].Name())
	assert.Equal(t, "device.delete", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "attrs")
	telemetry.SetAttributes(span,
		"name", "Gateway",
		"count", int64(3),
		"ratio", 0.5,
		"enabled", true,
		"tags", []string{"a", "b"},
		42, "non-string key is skipped",
		"dangling",
	)
	span.End()

	attrs := attrMap(sr.Ended()[0])
	assert.Len(t, attrs, 5)
	assert.Equal(t, "Gateway", attrs["name"].AsString())
	assert.Equal(t, int64(3), attrs["count"].AsInt64())
	assert.Equal(t, 0.5, attrs["ratio"].AsFloat64())
	assert.True(t, attrs["enabled"].AsBool())
	assert.Equal(t, []string{"a", "b"}, attrs["tags"].AsStringSlice())
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "fails")
	telemetry.RecordError(span, errors.New("boom"))
	span.End()

	_, ok := telemetry.StartSpan(context.Background(), "ok")
	telemetry.RecordError(ok, nil)
	ok.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "events")
	telemetry.AddEvent(span, "device_soft_deleted", "version", 3)
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "device_soft_deleted", events[0].Name)
	assert.Equal(t, attribute.Int("version", 3), events[0].Attributes[0])
}

func TestHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.AddEvent(nil, "e")
	})
}
