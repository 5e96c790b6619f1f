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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/pcstore-storefront/api/routes"
	"github.com/angelmondragon/pcstore-storefront/internal/address"
	"github.com/angelmondragon/pcstore-storefront/internal/cron"
	"github.com/angelmondragon/pcstore-storefront/internal/workspace"
	"github.com/angelmondragon/pcstore-storefront/pkg/auth/session"
	"github.com/angelmondragon/pcstore-storefront/pkg/config"
	"github.com/angelmondragon/pcstore-storefront/pkg/logger"
	"github.com/angelmondragon/pcstore-storefront/pkg/maps"
	"github.com/angelmondragon/pcstore-storefront/pkg/metrics"
	"github.com/angelmondragon/pcstore-storefront/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

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
		Format:      cfg.App.LogFormat,
		Fields:      map[string]string{"env": cfg.App.Env},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		redisClient *redis.Client
		tokens      workspace.TokenStore
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()

		sessionManager, err := session.NewManager(redisClient, cfg.Session.TTL)
		if err != nil {
			logg.Error(ctx, "failed to create session manager", err)
			os.Exit(1)
		}
		tokens = sessionManager
	} else {
		logg.Warn(ctx, "redis disabled; sessions will not survive a restart")
	}

	places := address.NewService(nil)
	if cfg.GoogleMaps.APIKey != "" {
		mapsClient, err := maps.NewClient(cfg.GoogleMaps.APIKey,
			maps.WithRegion(cfg.GoogleMaps.Region),
			maps.WithLanguage(cfg.GoogleMaps.Language),
		)
		if err != nil {
			logg.Error(ctx, "failed to create google maps client", err)
			os.Exit(1)
		}
		places = address.NewService(mapsClient)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry, err := workspace.NewRegistry(workspace.Deps{
		Config:         *cfg,
		Logger:         logg,
		Tokens:         tokens,
		Cache:          redisClient,
		Places:         places,
		CartMetrics:    metrics.NewCartMetrics(promRegistry),
		BackendMetrics: metrics.NewBackendMetrics(promRegistry),
		SessionMetrics: metrics.NewSessionMetrics(promRegistry),
	})
	if err != nil {
		logg.Error(ctx, "failed to create session registry", err)
		os.Exit(1)
	}

	sweeper, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{registry.SweepJob()},
		Metrics:  metrics.NewJobMetrics(promRegistry),
		Interval: cfg.Session.SweepInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create session sweeper", err)
		os.Exit(1)
	}
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "session sweeper stopped", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"addr":    addr,
		"backend": cfg.Backend.BaseURL,
		"redis":   redisClient != nil,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, registry, redisClient,
			metrics.NewHTTPMetrics(promRegistry),
			promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting storefront server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "storefront server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	logg.Info(serverCtx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(serverCtx, "http shutdown failed", err)
	}
	if err := registry.CloseAll(shutdownCtx); err != nil {
		logg.Error(serverCtx, "committing open sessions failed", err)
	}
}
