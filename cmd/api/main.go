package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/safar/storefront/internal/api"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/cart"
	"github.com/safar/storefront/internal/catalog"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/dashboard"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/fulfillment"
	"github.com/safar/storefront/internal/inventory"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/metrics"
	"github.com/safar/storefront/internal/migrations"
	"github.com/safar/storefront/internal/orders"
	"github.com/safar/storefront/internal/redisx"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/users"
	"go.uber.org/multierr"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront-api"})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: cfg.App.ServiceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, db.Close())
	}()
	logg.Info(ctx, "database connected")

	if err := migrations.Up(ctx, db); err != nil {
		return err
	}

	rdb, err := redisx.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, rdb.Close())
	}()

	var publisher events.Publisher = events.Noop{}
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		producer := events.NewProducer(brokers, cfg.Kafka.Topic, cfg.Kafka.BufferSize, logg)
		producer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			err = multierr.Append(err, producer.Close(shutdownCtx))
		}()
		publisher = producer
		logg.Info(logg.WithField(ctx, "topic", cfg.Kafka.Topic), "event producer started")
	} else {
		logg.Warn(ctx, "no kafka brokers configured, events are dropped")
	}

	registry := metrics.NewRegistry()
	repos := store.New(db)

	sessions, err := auth.NewManager(rdb, cfg.JWT.RefreshTokenTTL())
	if err != nil {
		return err
	}

	inv := inventory.NewService(db, inventory.Options{
		Publisher: publisher,
		Logger:    logg,
		Producer:  cfg.App.ServiceName,
		Threshold: cfg.Fulfillment.LowStockThreshold,
	})
	products := catalog.NewService(db, inv, logg)
	carts := cart.NewService(rdb, products, cfg.Cart.TTL)

	srv := api.NewServer(api.Deps{
		Logger:    logg,
		Metrics:   registry,
		Auth:      auth.NewService(repos.Users, sessions, cfg.JWT, cfg.Password, logg),
		Users:     users.NewService(repos.Users, logg),
		Catalog:   products,
		Cart:      carts,
		Orders:    orders.NewService(db, carts, publisher, logg, cfg.App.ServiceName),
		Inventory: inv,
		Fulfillment: fulfillment.NewService(db, fulfillment.Options{
			MaxRetries: cfg.Fulfillment.MaxRetries,
			Publisher:  publisher,
			Inventory:  inv,
			Metrics:    registry.Fulfillment,
			Logger:     logg,
			Producer:   cfg.App.ServiceName,
		}),
		Dashboard:   dashboard.NewService(db, cfg.Fulfillment.LowStockThreshold),
		Idempotency: rdb,
		Ready: map[string]api.ReadyCheck{
			"postgres": func(ctx context.Context) error { return database.Ping(ctx, db) },
			"redis":    rdb.Ping,
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(context.Background(), "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
