package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/devicecenter/backend/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include query variables in spans; development only
	SlowQueryThresh time.Duration // default: 200ms
	DBSystem        string        // default: "postgresql"
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		LogFullSQL:      false,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingConfigFromSettings maps the loaded application settings
func DBTracingConfigFromSettings(tel config.TelemetryConfig, db config.DatabaseConfig) DBTracingConfig {
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = tel.Enabled && tel.DBTraceEnabled
	cfg.LogFullSQL = tel.DBLogFullSQL
	if tel.DBSlowQueryThresh > 0 {
		cfg.SlowQueryThresh = tel.DBSlowQueryThresh
	}
	if db.Driver == "sqlite" {
		cfg.DBSystem = "sqlite"
	}
	return cfg
}

// DBTracingPlugin is a GORM plugin that installs otelgorm and annotates its
// spans with table, row count, error status and a slow query marker.
type DBTracingPlugin struct {
	config   DBTracingConfig
	logger   *zap.Logger
	provider trace.TracerProvider
}

// DBTracingOption configures a DBTracingPlugin
type DBTracingOption func(*DBTracingPlugin)

// WithDBTracerProvider sets the provider spans are started on. The global
// provider is used otherwise.
func WithDBTracerProvider(tp trace.TracerProvider) DBTracingOption {
	return func(p *DBTracingPlugin) {
		p.provider = tp
	}
}

// NewDBTracingPlugin creates a new database tracing plugin with the given configuration.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger, opts ...DBTracingOption) *DBTracingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThresh == 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	p := &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements gorm.Plugin
func (p *DBTracingPlugin) Name() string {
	return "devicecenter:db-tracing"
}

// Initialize implements gorm.Plugin. A disabled plugin registers nothing.
func (p *DBTracingPlugin) Initialize(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if p.provider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(p.provider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

// registerCallbacks wraps every operation with a start-time callback and an
// annotating callback ordered ahead of otelgorm ending its span.
func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("otel_timing:before_create", markStart); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel_timing:before_query", markStart); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel_timing:before_update", markStart); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel_timing:before_delete", markStart); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel_timing:before_row", markStart); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel_timing:before_raw", markStart); err != nil {
		return err
	}

	if err := cb.Create().After("gorm:create").Before("otel:after:create").Register("otel_timing:after_create", p.annotate); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Before("otel:after:select").Register("otel_timing:after_query", p.annotate); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Before("otel:after:update").Register("otel_timing:after_update", p.annotate); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Before("otel:after:delete").Register("otel_timing:after_delete", p.annotate); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Before("otel:after:row").Register("otel_timing:after_row", p.annotate); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Before("otel:after:raw").Register("otel_timing:after_raw", p.annotate)
}

func markStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// annotate runs after each operation to record table, rows, errors and slow queries.
func (p *DBTracingPlugin) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if startTime, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed := time.Since(startTime)
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

var _ gorm.Plugin = (*DBTracingPlugin)(nil)
