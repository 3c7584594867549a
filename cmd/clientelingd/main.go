package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/harborlane/clienteling-core/api/controllers"
	"github.com/harborlane/clienteling-core/api/routes"
	"github.com/harborlane/clienteling-core/internal/basket"
	"github.com/harborlane/clienteling-core/internal/checkout"
	"github.com/harborlane/clienteling-core/internal/payments"
	"github.com/harborlane/clienteling-core/internal/session"
	"github.com/harborlane/clienteling-core/internal/snapshot"
	"github.com/harborlane/clienteling-core/pkg/config"
	"github.com/harborlane/clienteling-core/pkg/env"
	"github.com/harborlane/clienteling-core/pkg/logger"
	"github.com/harborlane/clienteling-core/pkg/metrics"
	"github.com/harborlane/clienteling-core/pkg/notify"
	"github.com/harborlane/clienteling-core/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "clientelingd"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "clientelingd",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	sourceParams := session.Params{Config: cfg.Commerce, Logger: logg}
	if redisClient != nil {
		sourceParams.Cache = redisClient
		sourceParams.IsMiss = redis.IsMiss
	}
	tokens, err := session.NewSource(sourceParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create token source", err)
		os.Exit(1)
	}

	hub := notify.NewHub()
	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)

	client, err := basket.NewClient(basket.ClientParams{
		Config:  cfg.Commerce,
		Tokens:  tokens,
		Logger:  logg,
		Metrics: engineMetrics,
		Hub:     hub,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create basket client", err)
		os.Exit(1)
	}

	store, err := snapshot.Open(cfg.Snapshot.Path)
	if err != nil {
		logg.Error(context.Background(), "failed to open workflow snapshot store", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logg.Error(context.Background(), "error closing snapshot store", err)
		}
	}()

	handle := basket.NewHandle()

	machine, err := checkout.NewMachine(checkout.Params{
		Config:   cfg.Checkout,
		Commerce: client,
		Handle:   handle,
		Logger:   logg,
		Hub:      hub,
		Store:    store,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout machine", err)
		os.Exit(1)
	}

	ledger, err := payments.NewLedger(payments.Params{
		Config:   cfg.Checkout,
		Commerce: client,
		Handle:   handle,
		Logger:   logg,
		Hub:      hub,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment ledger", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting clienteling server")

	// Assign through a local so a disabled redis stays a nil interface.
	var cache controllers.Pinger
	if redisClient != nil {
		cache = redisClient
	}

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, cache, handle, client, machine, ledger, client),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
