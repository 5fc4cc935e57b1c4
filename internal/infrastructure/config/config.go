package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. DEVICECENTER_DATABASE_PASSWORD
const EnvPrefix = "DEVICECENTER"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Log       LogConfig
	Filter    FilterConfig
	Event     EventConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"oneof=development testing staging production"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string `validate:"oneof=postgres sqlite"`
	Host            string
	Port            int `validate:"gte=0,lte=65535"`
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite database file, ":memory:" for an in-memory store
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	AutoMigrate     bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error dpanic panic fatal"` // debug, info, warn, error
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// FilterConfig holds the row filter settings of the persistence gateway
type FilterConfig struct {
	// RequireTenant denies tenant-scoped reads without a tenant instead of
	// spanning all tenants
	RequireTenant    bool
	TenantColumn     string `validate:"required"`
	SoftDeleteColumn string `validate:"required"`
}

// EventConfig holds post-commit dispatch configuration
type EventConfig struct {
	DispatchTimeout      time.Duration
	IdempotencyEnabled   bool
	IdempotencyBackend   string `validate:"oneof=memory redis"`
	IdempotencyTTL       time.Duration
	IdempotencyKeyPrefix string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int `validate:"gte=0"`
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds settings of the event forwarding subscriber
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	LogsEnabled       bool // Export zap entries through the OTLP logs bridge
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with DEVICECENTER_ prefix (e.g., DEVICECENTER_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Filter: FilterConfig{
			RequireTenant:    v.GetBool("filter.require_tenant"),
			TenantColumn:     v.GetString("filter.tenant_column"),
			SoftDeleteColumn: v.GetString("filter.soft_delete_column"),
		},
		Event: EventConfig{
			DispatchTimeout:      v.GetDuration("event.dispatch_timeout"),
			IdempotencyEnabled:   v.GetBool("event.idempotency_enabled"),
			IdempotencyBackend:   v.GetString("event.idempotency_backend"),
			IdempotencyTTL:       v.GetDuration("event.idempotency_ttl"),
			IdempotencyKeyPrefix: v.GetString("event.idempotency_key_prefix"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Enabled:      v.GetBool("kafka.enabled"),
			Brokers:      splitList(v.GetStringSlice("kafka.brokers")),
			Topic:        v.GetString("kafka.topic"),
			BatchTimeout: v.GetDuration("kafka.batch_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "devicecenter"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "devicecenter"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "devicecenter.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Filter.TenantColumn == "" {
		cfg.Filter.TenantColumn = "tenant_id"
	}
	if cfg.Filter.SoftDeleteColumn == "" {
		cfg.Filter.SoftDeleteColumn = "is_deleted"
	}
	if cfg.Event.DispatchTimeout == 0 {
		cfg.Event.DispatchTimeout = 10 * time.Second
	}
	if cfg.Event.IdempotencyBackend == "" {
		cfg.Event.IdempotencyBackend = "memory"
	}
	if cfg.Event.IdempotencyTTL == 0 {
		cfg.Event.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Event.IdempotencyKeyPrefix == "" {
		cfg.Event.IdempotencyKeyPrefix = "event:processed:"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "devicecenter.domain-events"
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 15 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// splitList accepts both TOML arrays and comma separated env values
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

var validate = validator.New()

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when kafka is enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("database.driver must be postgres in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values.
// For sqlite it is the database path.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
