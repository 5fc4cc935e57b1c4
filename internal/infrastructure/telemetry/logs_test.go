package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/devicecenter/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingExporter struct {
	mu     sync.Mutex
	bodies []string
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range records {
		e.bodies = append(e.bodies, records[i].Body().AsString())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) Bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.bodies...)
}

func TestLogsConfigFromSettings(t *testing.T) {
	cfg := LogsConfigFromSettings(config.TelemetryConfig{
		Enabled:           false,
		LogsEnabled:       true,
		CollectorEndpoint: "collector:4317",
		ServiceName:       "devicecenter",
	})
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.CollectorEndpoint)

	cfg = LogsConfigFromSettings(config.TelemetryConfig{Enabled: true, LogsEnabled: true})
	assert.True(t, cfg.Enabled)
}

func TestLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.ForceFlush(context.Background()))
	assert.NoError(t, lp.Shutdown(context.Background()))

	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base, zapcore.InfoLevel))
}

func TestLoggerProvider_Bridge(t *testing.T) {
	exporter := &recordingExporter{}
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{
		Enabled:     true,
		ServiceName: "devicecenter-test",
	}, zap.NewNop(), WithLogExporter(exporter))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })
	require.True(t, lp.IsEnabled())

	core, logs := observer.New(zapcore.DebugLevel)
	log := lp.Bridge(zap.New(core), zapcore.WarnLevel)

	log.Info("saved")
	log.Warn("dispatch degraded", zap.Int("failures", 1))

	// the base core keeps every entry
	assert.Equal(t, 2, logs.Len())
	// the bridge only exports warn and above
	assert.Equal(t, []string{"dispatch degraded"}, exporter.Bodies())
}

func TestLevelFilterCore(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	filtered := &levelFilterCore{Core: core, minLevel: zapcore.WarnLevel}

	assert.False(t, filtered.Enabled(zapcore.InfoLevel))
	assert.True(t, filtered.Enabled(zapcore.ErrorLevel))

	with := filtered.With([]zapcore.Field{zap.String("k", "v")})
	assert.False(t, with.Enabled(zapcore.DebugLevel))
}
