package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fixedspend/internal/amqp"
	"fixedspend/internal/backend"
	"fixedspend/internal/cache"
	"fixedspend/internal/cli"
	apphttp "fixedspend/internal/http"
	"fixedspend/internal/log"
	"fixedspend/internal/services"
	"fixedspend/internal/session"
)

const (
	shutdownTimeout = 30 * time.Second
	sweepInterval   = 5 * time.Minute
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger).Create(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err,
			"auth", bcfg.AuthType, "data", bcfg.DataType)
		os.Exit(1)
	}

	// Event publishing is optional; a nil publisher disables it.
	var events services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(context.Background(), cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without events", log.FieldError, err)
		} else {
			events = amqpClient
		}
	}

	notifier := session.NewNotifier()
	sessions := session.NewStore(cfg.SessionCapacity, cfg.SessionTTL,
		cache.WithEvictionHook(session.EvictionNotifier(notifier, logger)))
	caches := cache.NewManager(logger)
	caches.Register(sessions)
	caches.StartCleanup(sweepInterval)

	gate := session.NewGate(be.Auth, sessions, notifier, session.Config{
		Secure:        cfg.SecureCookies,
		Provider:      cfg.OAuthProvider,
		PublicBaseURL: cfg.PublicBaseURL,
	}, logger)
	if events != nil {
		gate.Subscribe(services.SessionEventForwarder(events, logger))
	}

	expenseSvc := services.NewExpenseService(be.Store, events, logger)
	profileSvc := services.NewProfileService(be.Auth, be.Store, logger)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Gate:               gate,
		Expenses:           expenseSvc,
		Profiles:           profileSvc,
		Ready:              be,
		Logger:             logger,
		Provider:           cfg.OAuthProvider,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("Failed to close AMQP client", log.FieldError, err)
			}
		}
		if err := be.Close(); err != nil {
			logger.Error("Failed to release backend", log.FieldError, err)
		}
	})

	logger.Info("Starting fixedspend server",
		"port", cfg.Port,
		"auth", be.AuthType,
		"data", be.DataType,
		"amqp", events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
