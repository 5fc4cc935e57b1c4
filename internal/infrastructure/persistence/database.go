package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/devicecenter/backend/internal/infrastructure/config"
	"github.com/devicecenter/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

type databaseOptions struct {
	logger        *zap.Logger
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
	plugins       []gorm.Plugin
}

// Option configures NewDatabase
type Option func(*databaseOptions)

// WithLogger routes GORM's SQL log through zap at the given level
func WithLogger(l *zap.Logger, level gormlogger.LogLevel) Option {
	return func(o *databaseOptions) {
		o.logger = l
		o.logLevel = level
	}
}

// WithSlowThreshold overrides the slow query threshold of the SQL logger
func WithSlowThreshold(d time.Duration) Option {
	return func(o *databaseOptions) {
		o.slowThreshold = d
	}
}

// WithPlugins registers GORM plugins (tracing, row filters) on the connection
func WithPlugins(plugins ...gorm.Plugin) Option {
	return func(o *databaseOptions) {
		o.plugins = append(o.plugins, plugins...)
	}
}

// NewDatabase opens a connection for the configured driver, applies pool
// settings and verifies it with a ping.
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := databaseOptions{
		logger:   zap.NewNop(),
		logLevel: gormlogger.Silent,
	}
	for _, opt := range opts {
		opt(&o)
	}

	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	gormLogOpts := []logger.GormLoggerOption{}
	if o.slowThreshold > 0 {
		gormLogOpts = append(gormLogOpts, logger.WithSlowThreshold(o.slowThreshold))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(o.logger, o.logLevel, gormLogOpts...),
		SkipDefaultTransaction: true,
		PrepareStmt:            cfg.Driver != "sqlite",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, plugin := range o.plugins {
		if err := db.Use(plugin); err != nil {
			return nil, fmt.Errorf("failed to register plugin %s: %w", plugin.Name(), err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// a single connection keeps ":memory:" databases shared
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

func openDialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		path := cfg.DSN()
		if path == "" {
			path = ":memory:"
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates or updates the tables of the given models
func (d *Database) Migrate(ctx context.Context, models ...any) error {
	if err := d.DB.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns database connection pool statistics and an error if unable to retrieve
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}
