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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/codeseek/codeseek-backend/api/routes"
	"github.com/codeseek/codeseek-backend/internal/activations"
	"github.com/codeseek/codeseek-backend/internal/licenses"
	"github.com/codeseek/codeseek-backend/internal/notify"
	"github.com/codeseek/codeseek-backend/internal/products"
	"github.com/codeseek/codeseek-backend/internal/queue"
	"github.com/codeseek/codeseek-backend/internal/subscriptions"
	"github.com/codeseek/codeseek-backend/internal/users"
	"github.com/codeseek/codeseek-backend/internal/webhooks"
	"github.com/codeseek/codeseek-backend/pkg/config"
	"github.com/codeseek/codeseek-backend/pkg/db"
	"github.com/codeseek/codeseek-backend/pkg/logger"
	"github.com/codeseek/codeseek-backend/pkg/mailer"
	"github.com/codeseek/codeseek-backend/pkg/metrics"
	"github.com/codeseek/codeseek-backend/pkg/migrate"
	"github.com/codeseek/codeseek-backend/pkg/redis"
)

const serverShutdownTimeout = 15 * time.Second

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

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(collectors.NewGoCollector())
	dispatchMetrics := metrics.NewDispatchMetrics(metricsRegistry)

	licenseRepo := licenses.NewRepository(dbClient.DB())
	activationRepo := activations.NewRepository(dbClient.DB())
	userRepo := users.NewRepository(dbClient.DB())
	productRepo := products.NewRepository(dbClient.DB())
	subscriptionRepo := subscriptions.NewRepository(dbClient.DB())
	webhookRepo := webhooks.NewRepository(dbClient.DB())

	keygen, err := licenses.NewKeyGenerator(licenseRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create key generator", err)
		os.Exit(1)
	}

	licenseService, err := licenses.NewService(licenseRepo, userRepo, productRepo, keygen, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create license service", err)
		os.Exit(1)
	}
	activationService, err := activations.NewService(activationRepo, licenseRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create activation service", err)
		os.Exit(1)
	}

	sender, err := mailer.NewSMTPSender(cfg.SMTP)
	if err != nil {
		logg.Error(context.Background(), "failed to create smtp sender", err)
		os.Exit(1)
	}
	notifier, err := notify.New(sender, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifier", err)
		os.Exit(1)
	}

	handlers, err := webhooks.NewHandlerSet(userRepo, subscriptionRepo, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook handlers", err)
		os.Exit(1)
	}
	dispatcher, err := webhooks.NewDispatcher(webhookRepo, redisClient, logg, dispatchMetrics, cfg.Webhooks.GuardTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook dispatcher", err)
		os.Exit(1)
	}
	handlers.Register(dispatcher)

	dispatchQueue, err := queue.New(dispatcher, cfg.Webhooks, logg, dispatchMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch queue", err)
		os.Exit(1)
	}

	webhookService, err := webhooks.NewService(webhookRepo, dispatchQueue, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	dispatchQueue.Start(ctx)

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			licenseService,
			activationService,
			webhookService,
			metricsRegistry,
		),
	}

	serverErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	}

	// Stop accepting requests first so no new work lands in the queue,
	// then drain what is buffered.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown error", err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Webhooks.DrainTimeout)
	defer cancelDrain()
	if err := dispatchQueue.Stop(drainCtx); err != nil {
		logg.Error(ctx, "dispatch queue drain error", err)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
