package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/minhvodev/storefront-backend/api/controllers"
	"github.com/minhvodev/storefront-backend/api/routes"
	"github.com/minhvodev/storefront-backend/internal/catalog"
	internalcron "github.com/minhvodev/storefront-backend/internal/cron"
	"github.com/minhvodev/storefront-backend/internal/orders"
	"github.com/minhvodev/storefront-backend/internal/payments"
	"github.com/minhvodev/storefront-backend/internal/payments/gateway"
	"github.com/minhvodev/storefront-backend/internal/payments/staging"
	"github.com/minhvodev/storefront-backend/pkg/config"
	"github.com/minhvodev/storefront-backend/pkg/db"
	"github.com/minhvodev/storefront-backend/pkg/logger"
	"github.com/minhvodev/storefront-backend/pkg/metrics"
	"github.com/minhvodev/storefront-backend/pkg/migrate"
	"github.com/minhvodev/storefront-backend/pkg/redis"
)

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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	// Redis only exists when the shared staging backend is configured; the
	// in-memory default has no external dependencies.
	var redisClient *redis.Client
	if cfg.Staging.Backend == config.StagingBackendRedis {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
	}

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)
	jobMetrics := metrics.NewJobMetrics(registry)

	stage, lock, err := buildStaging(cfg, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build staging store", err)
		os.Exit(1)
	}

	gatewayClient, err := gateway.NewClient(cfg.Gateway)
	if err != nil {
		logg.Error(context.Background(), "failed to build gateway client", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	inventoryRepo := catalog.NewRepository(dbClient.DB())

	orderService, err := orders.NewService(ordersRepo, inventoryRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Orders:    ordersRepo,
		Inventory: inventoryRepo,
		Stage:     stage,
		Gateway:   gatewayClient,
		TxRunner:  dbClient,
		Logger:    logg,
		Metrics:   paymentMetrics,
		Config:    cfg.Gateway,
		TTL:       cfg.Staging.TTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	sweepJob, err := internalcron.NewStagingSweepJob(internalcron.StagingSweepJobParams{
		Logger: logg,
		Stage:  stage,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create staging sweep job", err)
		os.Exit(1)
	}
	scheduler, err := internalcron.NewService(internalcron.ServiceParams{
		Logger:   logg,
		Registry: internalcron.NewRegistry(sweepJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Staging.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler", err)
		os.Exit(1)
	}

	var redisPinger controllers.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config:         cfg,
		Logger:         logg,
		DBPinger:       dbClient,
		RedisPinger:    redisPinger,
		PaymentService: paymentService,
		OrderService:   orderService,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"staging_backend": cfg.Staging.Backend,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	go func() {
		if err := scheduler.Run(schedulerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(schedulerCtx, "scheduler stopped unexpectedly", err)
		}
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info(ctx, "shutdown signal received")

	stopScheduler()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if redisClient != nil {
		closeErr = multierr.Append(closeErr, redisClient.Close())
	}
	if closeErr != nil {
		logg.Error(ctx, "shutdown finished with errors", closeErr)
		os.Exit(1)
	}
	logg.Info(ctx, "shutdown complete")
}

// buildStaging selects the staging store and the matching scheduler lock.
func buildStaging(cfg *config.Config, redisClient *redis.Client) (staging.Store, internalcron.Lock, error) {
	switch cfg.Staging.Backend {
	case config.StagingBackendRedis:
		store, err := staging.NewRedisStore(redisClient)
		if err != nil {
			return nil, nil, err
		}
		lock, err := internalcron.NewRedisLock(redisClient, redisClient.LockKey("staging_sweep"), cfg.Staging.SweepInterval)
		if err != nil {
			return nil, nil, err
		}
		return store, lock, nil
	default:
		return staging.NewMemoryStore(), internalcron.NewLocalLock(), nil
	}
}
