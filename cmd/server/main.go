package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	deviceapp "github.com/devicecenter/backend/internal/application/device"
	"github.com/devicecenter/backend/internal/domain/catalog"
	"github.com/devicecenter/backend/internal/domain/device"
	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/cache"
	"github.com/devicecenter/backend/internal/infrastructure/config"
	"github.com/devicecenter/backend/internal/infrastructure/event"
	"github.com/devicecenter/backend/internal/infrastructure/logger"
	"github.com/devicecenter/backend/internal/infrastructure/persistence"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/filter"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/uow"
	"github.com/devicecenter/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting device center backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("database", cfg.Database.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFromSettings(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFromSettings(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := meterProvider.Meter(telemetry.GatewayMeterName)
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfigFromSettings(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	log = logsProvider.Bridge(log, level)

	// Row filters. A misdeclared entity type must stop the boot.
	registry := filter.NewRegistry(
		filter.WithRequireTenant(cfg.Filter.RequireTenant),
		filter.WithColumns(cfg.Filter.TenantColumn, cfg.Filter.SoftDeleteColumn),
		filter.WithLogger(log),
	)
	if err := registry.Register(&device.Device{}, &catalog.Product{}); err != nil {
		var cfgErr *filter.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatal("Invalid entity declaration", zap.String("entity", cfgErr.Model), zap.Error(err))
		}
		log.Fatal("Failed to register entity types", zap.Error(err))
	}

	plugins := []persistence.Option{
		persistence.WithLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
		persistence.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		persistence.WithPlugins(registry),
	}
	if cfg.Telemetry.DBTraceEnabled {
		tracing := telemetry.NewDBTracingPlugin(
			telemetry.DBTracingConfigFromSettings(cfg.Telemetry, cfg.Database),
			log,
		)
		plugins = append(plugins, persistence.WithPlugins(tracing))
	}
	dbMetrics, err := telemetry.NewDBMetrics(meter, telemetry.DBMetricsConfig{
		Enabled:            meterProvider.IsEnabled(),
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Fatal("Failed to create database metrics", zap.Error(err))
	}
	plugins = append(plugins, persistence.WithPlugins(telemetry.NewDBMetricsPlugin(dbMetrics)))

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, plugins...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if sqlDB, err := db.DB.DB(); err == nil {
		if reg, err := telemetry.ObservePool(meter, sqlDB); err != nil {
			log.Warn("Failed to observe connection pool", zap.Error(err))
		} else {
			defer func() { _ = reg.Unregister() }()
		}
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, &device.Device{}, &catalog.Product{}); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
		log.Info("Database schema migrated")
	}

	// Post-commit dispatch
	bus := event.NewInMemoryEventBus(log, event.WithDispatchTimeout(cfg.Event.DispatchTimeout))

	gatewayMetrics, err := telemetry.NewGatewayMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create gateway metrics", zap.Error(err))
	}
	gateway := uow.NewGateway(db.DB, registry,
		uow.WithDispatcher(bus),
		uow.WithHooks(gatewayMetrics),
		uow.WithLogger(log),
		uow.WithTracer(tracerProvider.Tracer("devicecenter.persistence.gateway")),
	)
	units := persistence.NewUnitOfWorkFactory(gateway)

	deviceUnits := deviceapp.FactoryFunc(func(ctx context.Context) deviceapp.UnitOfWork {
		return units.Begin(ctx)
	})

	// Subscribers
	subscribers := []shared.EventHandler{
		deviceapp.NewProductDeletedHandler(deviceUnits, log),
	}

	if cfg.Kafka.Enabled {
		serializer := event.NewEventSerializer()
		event.RegisterAllEvents(serializer)
		writer := event.NewKafkaWriter(cfg.Kafka)
		forwarder := event.NewKafkaForwarder(writer, serializer, log)
		defer func() {
			if err := forwarder.Close(); err != nil {
				log.Error("Error closing kafka writer", zap.Error(err))
			}
		}()
		subscribers = append(subscribers, forwarder)
		log.Info("Kafka forwarding enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	if cfg.Event.IdempotencyEnabled {
		store, err := cache.NewIdempotencyStore(ctx, cfg.Event, cfg.Redis, cfg.App.Env != "production", log)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		if closer, ok := store.(interface{ Close() error }); ok {
			defer func() { _ = closer.Close() }()
		}
		subscribers = event.WrapHandlersWithIdempotency(subscribers, store, log,
			event.WithIdempotencyConfig(shared.IdempotencyConfig{
				TTL:     cfg.Event.IdempotencyTTL,
				Enabled: true,
			}),
		)
	}

	for _, subscriber := range subscribers {
		bus.Subscribe(subscriber)
	}
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	log.Info("Persistence gateway ready",
		zap.Bool("require_tenant", registry.RequireTenant()),
		zap.Int("subscribers", len(subscribers)),
	)

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited")
}
