package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/i474232898/climate-sources/internal/api/http"
	"github.com/i474232898/climate-sources/internal/cache"
	"github.com/i474232898/climate-sources/internal/catalog"
	"github.com/i474232898/climate-sources/internal/config"
	"github.com/i474232898/climate-sources/internal/coverage"
	"github.com/i474232898/climate-sources/internal/engine"
	"github.com/i474232898/climate-sources/internal/fusion"
	"github.com/i474232898/climate-sources/internal/logger"
	"github.com/i474232898/climate-sources/internal/metrics"
	"github.com/i474232898/climate-sources/internal/providers"
	"github.com/i474232898/climate-sources/internal/router"
	"github.com/i474232898/climate-sources/internal/scheduler"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.Setup(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Provider and license tables.
	cat, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		logr.Error("failed to load catalog", "file", cfg.CatalogFile, "error", err)
		os.Exit(1)
	}

	// Cache backend.
	checks := map[string]httpapi.HealthCheck{}
	backend, closeBackend := openCacheBackend(cfg, logr, checks)
	defer closeBackend()
	layer := cache.New(backend,
		cache.WithLogger(logr),
		cache.WithMetrics(m),
		cache.WithOpTimeout(cfg.CacheOpTimeout))

	// Upstream clients with resilience (backoff + circuit breaker).
	upstreams := providers.All(providers.Options{
		HTTP: providers.HTTPClientConfig{
			Client: &http.Client{Timeout: cfg.HTTPTimeout},
			Backoff: providers.BackoffConfig{
				MaxRetries:      cfg.UpstreamMaxRetries,
				InitialInterval: cfg.UpstreamInitialBackoff,
				MaxInterval:     cfg.UpstreamMaxBackoff,
			},
			UserAgent: cfg.UserAgent,
		},
		WeatherAPIKey: cfg.WeatherAPIKey,
	})

	rt, err := router.New(cat, upstreams, layer,
		router.WithLogger(logr),
		router.WithMetrics(m),
		router.WithWindowLimits(cfg.WindowMinDays, cfg.WindowMaxDays),
		router.WithFetchTimeout(cfg.FetchTimeout))
	if err != nil {
		logr.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	fe, err := fusion.New(cat,
		fusion.WithWeighting(fusion.Weighting(cfg.FusionWeighting)),
		fusion.WithReliability(cfg.FusionReliability),
		fusion.WithMetrics(m))
	if err != nil {
		logr.Error("failed to build fusion engine", "error", err)
		os.Exit(1)
	}

	// Core service orchestrating resolve, fetch and fuse.
	service := engine.NewService(cat, coverage.NewResolver(cat), rt, fe,
		engine.WithLogger(logr),
		engine.WithMetrics(m))

	// License status monitor.
	sched := scheduler.New(cat.Licenses, cfg.LicenseMonitorInterval, logr, m)
	if err := sched.Start(); err != nil {
		logr.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "climate-sources",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.FetchTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, service, httpapi.Options{Gatherer: reg, Checks: checks})

	go func() {
		logr.Info("listening", "port", cfg.Port, "providers", len(upstreams), "cache", cfg.CacheBackend)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logr.Warn("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logr.Error("error during shutdown", "error", err)
	}
	logr.Info("shutdown complete")
}

// openCacheBackend never fails startup. An unreachable Redis is kept, since the client
// reconnects on demand and /health reports it; an unusable Redis config runs without a cache.
func openCacheBackend(cfg *config.AppConfig, logr *slog.Logger, checks map[string]httpapi.HealthCheck) (cache.Backend, func()) {
	switch cfg.CacheBackend {
	case "redis":
		client, err := cache.NewRedisClient(cache.RedisConfig{
			URL:          cfg.RedisURL,
			PoolSize:     cfg.RedisPoolSize,
			MinIdleConns: cfg.RedisMinIdleConns,
			DialTimeout:  cfg.RedisDialTimeout,
			ReadTimeout:  cfg.RedisReadTimeout,
			WriteTimeout: cfg.RedisWriteTimeout,
		})
		if err != nil {
			logr.Warn("invalid redis config, running without cache", "error", err)
			return nil, func() {}
		}
		rb := cache.NewRedisBackend(client)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rb.Health(ctx); err != nil {
			logr.Warn("redis unreachable at startup, cache degraded until it recovers", "error", err)
		}
		checks["redis"] = rb.Health
		return rb, func() { _ = rb.Close() }
	case "memory":
		return cache.NewMemoryBackend(cfg.CacheMaxEntries), func() {}
	}
	return nil, func() {}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}
