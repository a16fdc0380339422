package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shikshalabs/enrollhub-backend/internal/cron"
	"github.com/shikshalabs/enrollhub-backend/internal/enrollment"
	"github.com/shikshalabs/enrollhub-backend/internal/ledger"
	"github.com/shikshalabs/enrollhub-backend/internal/plans"
	"github.com/shikshalabs/enrollhub-backend/pkg/cache"
	"github.com/shikshalabs/enrollhub-backend/pkg/config"
	"github.com/shikshalabs/enrollhub-backend/pkg/db"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/metrics"
	"github.com/shikshalabs/enrollhub-backend/pkg/migrate"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
	"github.com/shikshalabs/enrollhub-backend/pkg/redis"
)

const (
	lockKeyFormat = "eh:cron-worker:lock:%s"
	planCacheTTL  = 5 * time.Minute
	sweepBatch    = 250
)

func main() {
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

	registry, err := buildJobs(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Plans.ExpirySweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	gormDB := dbClient.DB()

	outboxRepo := outbox.NewRepository(gormDB)
	outboxService := outbox.NewService(outboxRepo, logg)

	enrollmentRepo := enrollment.NewRepository(gormDB)
	enrollmentService, err := enrollment.NewService(enrollment.ServiceParams{Repo: enrollmentRepo, Logger: logg})
	if err != nil {
		return nil, fmt.Errorf("enrollment service: %w", err)
	}

	planCache, err := cache.New(redisClient, planCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("plan cache: %w", err)
	}
	plansService, err := plans.NewService(plans.ServiceParams{
		DB:      dbClient,
		Repo:    plans.NewRepository(gormDB),
		Outbox:  outboxService,
		Entries: enrollmentService,
		Cache:   planCache,
		Config:  cfg.Plans,
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("plan service: %w", err)
	}

	planExpiryJob, err := cron.NewPlanExpiryJob(cron.PlanExpiryJobParams{
		Logger:    logg,
		Plans:     plansService,
		BatchSize: sweepBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("plan expiry job: %w", err)
	}

	cartCleanupJob, err := cron.NewCartCleanupJob(cron.CartCleanupJobParams{
		Logger:    logg,
		DB:        dbClient,
		Ledger:    ledger.NewRepository(gormDB),
		Entries:   enrollmentRepo,
		TTL:       cfg.Checkout.AbandonedCartTTL,
		BatchSize: sweepBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("cart cleanup job: %w", err)
	}

	outboxRetentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionPeriod,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	return cron.NewRegistry(planExpiryJob, cartCleanupJob, outboxRetentionJob), nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
