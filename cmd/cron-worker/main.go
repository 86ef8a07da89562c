package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/chronicle/api/controllers"
	"github.com/angelmondragon/chronicle/api/routes"
	"github.com/angelmondragon/chronicle/internal/awards"
	"github.com/angelmondragon/chronicle/internal/characters"
	"github.com/angelmondragon/chronicle/internal/cron"
	"github.com/angelmondragon/chronicle/internal/ledger"
	"github.com/angelmondragon/chronicle/internal/spends"
	"github.com/angelmondragon/chronicle/pkg/config"
	"github.com/angelmondragon/chronicle/pkg/db"
	"github.com/angelmondragon/chronicle/pkg/locks"
	"github.com/angelmondragon/chronicle/pkg/logger"
	"github.com/angelmondragon/chronicle/pkg/metrics"
	"github.com/angelmondragon/chronicle/pkg/migrate"
	"github.com/angelmondragon/chronicle/pkg/outbox"
	"github.com/angelmondragon/chronicle/pkg/redis"
)

const (
	lockKeyFormat   = "chronicle:cron-worker:lock:%s"
	shutdownTimeout = 10 * time.Second
)

func main() {
	once := flag.Bool("once", false, "run a single cron cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	deps := map[string]controllers.Pinger{"database": dbClient}

	var (
		lockStore redis.LockStore
		cronLock  cron.Lock
	)
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
		deps["redis"] = redisClient
		lockStore = redisClient
		redisLock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
		cronLock = redisLock
	} else {
		logg.Warn(context.Background(), "redis not configured; cron lock is local to this process")
		cronLock = cron.NewLocalLock()
	}

	locker, err := locks.New(cfg.Ledger, lockStore)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger locker", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	engine, err := ledger.NewEngine(ledger.Params{
		DB:           dbClient,
		Characters:   characters.NewRepository(conn),
		Spends:       spends.NewRepository(conn),
		Awards:       awards.NewRepository(conn),
		Outbox:       outbox.NewService(outboxRepo, logg),
		Locker:       locker,
		Logger:       logg,
		Metrics:      metrics.NewLedgerMetrics(prometheus.DefaultRegisterer),
		DenialPolicy: ledger.DenialPolicy(cfg.Ledger.DenialPolicy),
		LockTimeout:  cfg.Ledger.LockTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger engine", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	if cfg.Cron.WeeklyAutoApprove {
		weeklyJob, err := cron.NewWeeklyAwardJob(cron.WeeklyAwardJobParams{
			Logger:    logg,
			Ledger:    engine,
			Grace:     cfg.Cron.WeeklyGrace,
			BatchSize: cfg.Cron.WeeklyBatchSize,
			Approver:  cfg.Cron.WeeklyApprover,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create weekly award job", err)
			os.Exit(1)
		}
		if err := registry.Register(weeklyJob); err != nil {
			logg.Error(context.Background(), "failed to register weekly award job", err)
			os.Exit(1)
		}
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		Retention:   cfg.Outbox.Retention,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	if err := registry.Register(retentionJob); err != nil {
		logg.Error(context.Background(), "failed to register outbox retention job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     cronLock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        registry.Names(),
	})

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "cron cycle complete")
		return
	}

	opsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           routes.NewOpsRouter(cfg, logg, prometheus.DefaultGatherer, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logg.Info(logg.WithField(ctx, "addr", opsServer.Addr), "ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "ops server stopped", err)
			stop()
		}
	}()

	logg.Info(ctx, "starting cron worker")
	runErr := service.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "ops server shutdown failed", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", runErr)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
