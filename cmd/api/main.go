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
	"go.uber.org/multierr"

	"github.com/angelmondragon/marketplace-checkout/api/routes"
	"github.com/angelmondragon/marketplace-checkout/internal/checkout"
	"github.com/angelmondragon/marketplace-checkout/internal/marketplace"
	"github.com/angelmondragon/marketplace-checkout/internal/persistence"
	"github.com/angelmondragon/marketplace-checkout/internal/sessions"
	"github.com/angelmondragon/marketplace-checkout/pkg/config"
	"github.com/angelmondragon/marketplace-checkout/pkg/db"
	"github.com/angelmondragon/marketplace-checkout/pkg/instance"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
	"github.com/angelmondragon/marketplace-checkout/pkg/metrics"
	"github.com/angelmondragon/marketplace-checkout/pkg/migrate"
	"github.com/angelmondragon/marketplace-checkout/pkg/redis"
)

const (
	shutdownTimeout = 15 * time.Second
	pruneInterval   = time.Minute
)

type pingStore interface {
	persistence.Store
	Ping(ctx context.Context) error
}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openPersistence(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap persistence", err)
		os.Exit(1)
	}

	client, err := marketplace.NewClient(cfg.Marketplace.BaseURL, marketplace.WithTimeout(cfg.Marketplace.Timeout))
	if err != nil {
		logg.Error(ctx, "failed to create marketplace client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	workspaces, err := sessions.NewRegistry(sessions.Params{
		Logger:      logg,
		Persistence: store,
		Gateway:     client,
		Checkout: checkout.Config{
			SuccessURL:         cfg.Checkout.PaymentSuccessURL,
			CancelURL:          cfg.Checkout.PaymentCancelURL,
			NoticeDismissAfter: cfg.Checkout.NoticeDismissAfter,
		},
		Metrics: checkoutMetrics,
		IdleTTL: cfg.Checkout.SessionIdleTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to create session registry", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"persistence": cfg.Persistence.Normalized(),
		"instance":    instance.GetID(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			Store:      store,
			Workspaces: workspaces,
			Catalog:    client,
			Gatherer:   registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := workspaces.Run(ctx, pruneInterval); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "session pruner stopped", err)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = multierr.Combine(server.Shutdown(shutdownCtx), closeStore())
	if err != nil {
		logg.Error(ctx, "shutdown finished with errors", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

// openPersistence builds the snapshot store selected by CHECKOUT_PERSISTENCE_BACKEND
// and returns a func that releases its connections.
func openPersistence(ctx context.Context, cfg *config.Config, logg *logger.Logger) (pingStore, func() error, error) {
	switch cfg.Persistence.Normalized() {
	case config.PersistenceRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, nil, err
		}
		return persistence.NewRedis(client, cfg.Persistence.TTL), client.Close, nil

	case config.PersistenceSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := client.SQL()
		if err != nil {
			return nil, nil, multierr.Append(err, client.Close())
		}
		if err := migrate.Up(ctx, sqlDB, client.Driver()); err != nil {
			return nil, nil, multierr.Append(err, client.Close())
		}
		return persistence.NewSQL(client.DB(), cfg.Persistence.TTL), client.Close, nil
	}

	logg.Warn(ctx, "using in-memory persistence, carts are lost on restart")
	return persistence.NewMemory(), func() error { return nil }, nil
}
