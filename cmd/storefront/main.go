package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shopmesh/shopmesh-client/api/controllers"
	"github.com/shopmesh/shopmesh-client/api/routes"
	"github.com/shopmesh/shopmesh-client/internal/cartops"
	"github.com/shopmesh/shopmesh-client/internal/cartstore"
	"github.com/shopmesh/shopmesh-client/internal/cartview"
	"github.com/shopmesh/shopmesh-client/internal/directory"
	"github.com/shopmesh/shopmesh-client/internal/shopfront"
	"github.com/shopmesh/shopmesh-client/pkg/config"
	"github.com/shopmesh/shopmesh-client/pkg/logger"
	"github.com/shopmesh/shopmesh-client/pkg/metrics"
	"github.com/shopmesh/shopmesh-client/pkg/migrate"
	"github.com/shopmesh/shopmesh-client/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	notifier := cartstore.NewNotifier()

	store, dbClient, err := cartstore.Open(context.Background(), cfg, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open cart storage", err)
		os.Exit(1)
	}
	if dbClient != nil {
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
			logg.Error(context.Background(), "failed to run dev migrations", err)
			os.Exit(1)
		}
	}

	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	defer stopBridge()

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()

		bridge := cartstore.NewBridge(redisClient, notifier, logg)
		go func() {
			if err := bridge.Start(bridgeCtx); err != nil && bridgeCtx.Err() == nil {
				logg.Error(bridgeCtx, "cart event bridge stopped", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	cartMetrics := metrics.NewCartMetrics(registry)

	resolver := directory.NewClient(cfg.Directory, nil, logg)
	connections := shopfront.NewRegistry(cfg.Shopfront, nil, logg)

	aggregator := cartview.NewAggregator(store, resolver,
		cartview.RegistrySource{Registry: connections}, cartMetrics, logg)
	mutators := cartops.NewFactory(store, resolver,
		cartops.RegistrySource{Registry: connections}, cartMetrics, logg)

	pingers := map[string]controllers.Pinger{}
	if dbClient != nil {
		pingers["db"] = dbClient
	}
	if redisClient != nil {
		pingers["redis"] = redisClient
	}

	handler := routes.NewRouter(routes.Deps{
		Config:     cfg,
		Logger:     logg,
		Pingers:    pingers,
		Directory:  resolver,
		Registry:   connections,
		Store:      store,
		Notifier:   notifier,
		Aggregator: aggregator,
		Mutators:   mutators,
		Metrics:    registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting storefront server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "storefront server stopped unexpectedly", err)
		os.Exit(1)
	}
}
