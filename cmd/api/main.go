package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shikshalabs/enrollhub-backend/api/routes"
	"github.com/shikshalabs/enrollhub-backend/internal/applicants"
	"github.com/shikshalabs/enrollhub-backend/internal/checkout"
	"github.com/shikshalabs/enrollhub-backend/internal/effects"
	"github.com/shikshalabs/enrollhub-backend/internal/enrollment"
	"github.com/shikshalabs/enrollhub-backend/internal/invoices"
	"github.com/shikshalabs/enrollhub-backend/internal/ledger"
	"github.com/shikshalabs/enrollhub-backend/internal/notifications"
	"github.com/shikshalabs/enrollhub-backend/internal/plans"
	"github.com/shikshalabs/enrollhub-backend/internal/referrals"
	"github.com/shikshalabs/enrollhub-backend/internal/statusproc"
	"github.com/shikshalabs/enrollhub-backend/pkg/cache"
	"github.com/shikshalabs/enrollhub-backend/pkg/config"
	"github.com/shikshalabs/enrollhub-backend/pkg/db"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/metrics"
	"github.com/shikshalabs/enrollhub-backend/pkg/migrate"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
	"github.com/shikshalabs/enrollhub-backend/pkg/redis"
)

const planCacheTTL = 5 * time.Minute

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	handler, err := buildHandler(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build api services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildHandler(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (http.Handler, error) {
	gormDB := dbClient.DB()

	outboxRepo := outbox.NewRepository(gormDB)
	outboxService := outbox.NewService(outboxRepo, logg)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	ledgerRepo := ledger.NewRepository(gormDB)
	ledgerService, err := ledger.NewService(ledger.ServiceParams{Repo: ledgerRepo, Logger: logg})
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	enrollmentRepo := enrollment.NewRepository(gormDB)
	enrollmentService, err := enrollment.NewService(enrollment.ServiceParams{Repo: enrollmentRepo, Logger: logg})
	if err != nil {
		return nil, fmt.Errorf("enrollment service: %w", err)
	}

	planCache, err := cache.New(redisClient, planCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("plan cache: %w", err)
	}
	plansRepo := plans.NewRepository(gormDB)
	plansService, err := plans.NewService(plans.ServiceParams{
		DB:      dbClient,
		Repo:    plansRepo,
		Outbox:  outboxService,
		Entries: enrollmentService,
		Cache:   planCache,
		Config:  cfg.Plans,
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("plan service: %w", err)
	}

	contentHandler, err := referrals.NewContentGrantHandler(enrollmentRepo)
	if err != nil {
		return nil, fmt.Errorf("content grant handler: %w", err)
	}
	membershipHandler, err := referrals.NewMembershipExtensionHandler(plansRepo)
	if err != nil {
		return nil, fmt.Errorf("membership extension handler: %w", err)
	}
	handlerRegistry, err := referrals.NewHandlerRegistry(contentHandler, membershipHandler)
	if err != nil {
		return nil, fmt.Errorf("referral handler registry: %w", err)
	}
	referralsService, err := referrals.NewService(referrals.ServiceParams{
		DB:       dbClient,
		Repo:     referrals.NewRepository(gormDB),
		Outbox:   outboxService,
		Handlers: handlerRegistry,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("referral service: %w", err)
	}

	invoicesService, err := invoices.NewService(invoices.ServiceParams{
		Repo:   invoices.NewRepository(gormDB),
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("invoice service: %w", err)
	}

	applicantsService, err := applicants.NewService(applicants.ServiceParams{
		Repo:   applicants.NewRepository(gormDB),
		Logger: logg,
	})
	if err != nil {
		return nil, fmt.Errorf("applicant service: %w", err)
	}

	coordinator, err := effects.NewCoordinator(effects.CoordinatorParams{
		DB:         dbClient,
		Ledger:     ledgerService,
		Plans:      plansService,
		Referrals:  referralsService,
		Enrollment: enrollmentService,
		Invoices:   invoicesService,
		Applicants: applicantsService,
		Outbox:     outboxService,
		Metrics:    paymentMetrics,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("effects coordinator: %w", err)
	}

	// The API dispatches effects inline after each applied verdict; the worker
	// poller picks up anything left behind by a crash.
	dispatcher, err := effects.NewDispatcher(effects.DispatcherParams{
		Repo:        outboxRepo,
		Coordinator: coordinator,
		Metrics:     paymentMetrics,
		Logger:      logg,
		Config:      cfg.Outbox,
	})
	if err != nil {
		return nil, fmt.Errorf("effects dispatcher: %w", err)
	}

	statusService, err := statusproc.NewService(statusproc.ServiceParams{
		DB:      dbClient,
		Ledger:  ledgerRepo,
		Outbox:  outboxService,
		Effects: dispatcher,
		Metrics: paymentMetrics,
		Logger:  logg,
	})
	if err != nil {
		return nil, fmt.Errorf("status processor: %w", err)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		DB:         dbClient,
		Ledger:     ledgerRepo,
		Plans:      plansService,
		Referrals:  referralsService,
		Enrollment: enrollmentService,
		Status:     statusService,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		return nil, fmt.Errorf("notification service: %w", err)
	}

	return routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		statusService,
		checkoutService,
		referralsService,
		ledgerService,
		notificationsService,
		paymentMetrics,
	), nil
}
