package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/devicecenter/backend/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds logs bridge configuration.
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// LogsConfigFromSettings maps the loaded application settings. Logs are only
// exported when telemetry itself is enabled.
func LogsConfigFromSettings(cfg config.TelemetryConfig) LogsConfig {
	return LogsConfig{
		Enabled:           cfg.Enabled && cfg.LogsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}
}

// LogOption configures NewLoggerProvider
type LogOption func(*logOptions)

type logOptions struct {
	exporter sdklog.Exporter
	sync     bool
}

// WithLogExporter replaces the OTLP exporter. Records are exported
// synchronously, which keeps tests deterministic.
func WithLogExporter(exporter sdklog.Exporter) LogOption {
	return func(o *logOptions) {
		o.exporter = exporter
		o.sync = true
	}
}

// LoggerProvider wraps the OpenTelemetry LoggerProvider with lifecycle management.
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
	logger   *zap.Logger
	config   LogsConfig
}

// NewLoggerProvider creates the OTLP logs pipeline.
// If logs are disabled, Bridge returns loggers unchanged.
func NewLoggerProvider(ctx context.Context, cfg LogsConfig, logger *zap.Logger, opts ...LogOption) (*LoggerProvider, error) {
	lp := &LoggerProvider{
		logger: logger,
		config: cfg,
	}

	if !cfg.Enabled {
		logger.Info("OTEL Logs disabled, using no-op logger provider")
		return lp, nil
	}

	var o logOptions
	for _, opt := range opts {
		opt(&o)
	}

	exporter := o.exporter
	if exporter == nil {
		exporterOpts := []otlploggrpc.Option{
			otlploggrpc.WithEndpoint(cfg.CollectorEndpoint),
		}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlploggrpc.WithInsecure())
		}
		var err error
		exporter, err = otlploggrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP logs exporter: %w", err)
		}
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	var processor sdklog.Processor = sdklog.NewBatchProcessor(exporter)
	if o.sync {
		processor = sdklog.NewSimpleProcessor(exporter)
	}

	lp.provider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(processor),
	)
	global.SetLoggerProvider(lp.provider)

	logger.Info("OpenTelemetry LoggerProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.String("service_name", cfg.ServiceName),
	)

	return lp, nil
}

// Bridge returns a logger writing to base and, when logs are enabled, to
// OpenTelemetry at or above level.
func (lp *LoggerProvider) Bridge(base *zap.Logger, level zapcore.Level) *zap.Logger {
	if !lp.IsEnabled() {
		return base
	}
	otelCore := &levelFilterCore{
		Core:     otelzap.NewCore(lp.config.ServiceName, otelzap.WithLoggerProvider(lp.provider)),
		minLevel: level,
	}
	return base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, otelCore)
	}))
}

// Shutdown flushes pending records and stops the provider
func (lp *LoggerProvider) Shutdown(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := lp.provider.Shutdown(shutdownCtx); err != nil {
		lp.logger.Error("Error shutting down logger provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown logger provider: %w", err)
	}
	return nil
}

// IsEnabled returns whether OTEL logs are enabled.
func (lp *LoggerProvider) IsEnabled() bool {
	return lp.config.Enabled && lp.provider != nil
}

// ForceFlush exports all records that have not yet been exported.
func (lp *LoggerProvider) ForceFlush(ctx context.Context) error {
	if lp.provider == nil {
		return nil
	}
	return lp.provider.ForceFlush(ctx)
}

// levelFilterCore wraps a zapcore.Core with level filtering.
// The otelzap core accepts every level on its own.
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
}

// Enabled implements zapcore.Core.
func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.minLevel && c.Core.Enabled(lvl)
}

// Check implements zapcore.Core.
func (c *levelFilterCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return c.Core.Check(entry, ce)
}

// With implements zapcore.Core.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core:     c.Core.With(fields),
		minLevel: c.minLevel,
	}
}
