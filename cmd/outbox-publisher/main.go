package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/chronicle/pkg/config"
	"github.com/angelmondragon/chronicle/pkg/db"
	"github.com/angelmondragon/chronicle/pkg/logger"
	"github.com/angelmondragon/chronicle/pkg/metrics"
	"github.com/angelmondragon/chronicle/pkg/migrate"
	"github.com/angelmondragon/chronicle/pkg/nats"
	"github.com/angelmondragon/chronicle/pkg/outbox"
	"github.com/angelmondragon/chronicle/pkg/outbox/idempotency"
	"github.com/angelmondragon/chronicle/pkg/outbox/registry"
	"github.com/angelmondragon/chronicle/pkg/redis"
)

const deliveryRecordTTL = 7 * 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	natsClient, err := nats.NewClient(context.Background(), cfg.NATS, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to connect to nats", err)
		os.Exit(1)
	}
	defer func() {
		if err := natsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing nats connection", err)
		}
	}()

	var guard publishGuard
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		g, err := idempotency.NewGuard(redisClient, deliveryRecordTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create publish guard", err)
			os.Exit(1)
		}
		guard = g
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.NATS)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Bus:           natsClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Guard:         guard,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "outbox-publisher",
		"subjects":    eventRegistry.Subjects(),
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
