package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds configuration for database metrics collection.
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration // default: 200ms
}

// DefaultDBMetricsConfig returns default configuration for database metrics.
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
	}
}

// DBMetrics holds the query instruments and observes the connection pool.
type DBMetrics struct {
	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter

	config DBMetricsConfig
	logger *zap.Logger
}

// NewDBMetrics creates a new DBMetrics instance with the given meter.
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}

	queryTotal, err := NewCounter(meter, "db_query_total", "Total number of database queries by operation type", "{query}")
	if err != nil {
		return nil, err
	}
	queryDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency distribution in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	slowQueryTotal, err := NewCounter(meter, "db_slow_query_total", "Total number of slow database queries", "{query}")
	if err != nil {
		return nil, err
	}

	return &DBMetrics{
		queryTotal:     queryTotal,
		queryDuration:  queryDuration,
		slowQueryTotal: slowQueryTotal,
		config:         cfg,
		logger:         logger,
	}, nil
}

// ObservePool registers asynchronous gauges reading sqlDB's pool statistics
// on every collection.
func ObservePool(meter metric.Meter, sqlDB *sql.DB) (metric.Registration, error) {
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Number of connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	maxConns, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum number of open connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(conns, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(conns, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(maxConns, int64(stats.MaxOpenConnections))
		return nil
	}, conns, maxConns)
}

// RecordQuery records metrics for a database query.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation string, table string, duration time.Duration) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}

	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))

	if duration > m.config.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// DBMetricsPlugin is a GORM plugin that collects query metrics.
type DBMetricsPlugin struct {
	metrics *DBMetrics
}

// NewDBMetricsPlugin creates a new GORM plugin for database metrics.
func NewDBMetricsPlugin(metrics *DBMetrics) *DBMetricsPlugin {
	return &DBMetricsPlugin{metrics: metrics}
}

// Name implements gorm.Plugin
func (p *DBMetricsPlugin) Name() string {
	return "devicecenter:db-metrics"
}

// Initialize implements gorm.Plugin
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	if !p.metrics.config.Enabled {
		return nil
	}

	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("db_metrics:before_create", startTimer); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("db_metrics:before_query", startTimer); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("db_metrics:before_update", startTimer); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("db_metrics:before_delete", startTimer); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("db_metrics:before_row", startTimer); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("db_metrics:before_raw", startTimer); err != nil {
		return err
	}

	if err := cb.Create().After("gorm:create").Register("db_metrics:after_create", p.record("INSERT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("db_metrics:after_query", p.record("SELECT")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("db_metrics:after_update", p.record("UPDATE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("db_metrics:after_delete", p.record("DELETE")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("db_metrics:after_row", p.record("")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("db_metrics:after_raw", p.record("")); err != nil {
		return err
	}

	p.metrics.logger.Info("Database metrics plugin initialized",
		zap.Duration("slow_query_threshold", p.metrics.config.SlowQueryThreshold))
	return nil
}

func startTimer(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, dbMetricsStartTimeKey, time.Now())
}

// record returns the after callback for operation; an empty operation is
// detected from the SQL text.
func (p *DBMetricsPlugin) record(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		op := operation
		if op == "" {
			op = detectOperationType(db.Statement.SQL.String())
		}
		var duration time.Duration
		if start, ok := ctx.Value(dbMetricsStartTimeKey).(time.Time); ok {
			duration = time.Since(start)
		}
		p.metrics.RecordQuery(ctx, op, db.Statement.Table, duration)
	}
}

func detectOperationType(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))

	switch {
	case strings.HasPrefix(sql, "SELECT"):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	default:
		return "OTHER"
	}
}

type dbMetricsContextKey string

const dbMetricsStartTimeKey dbMetricsContextKey = "db_metrics_start_time"

var _ gorm.Plugin = (*DBMetricsPlugin)(nil)
