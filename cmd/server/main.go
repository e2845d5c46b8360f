package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/adapters/tvoverlay"
	"github.com/frostdev-ops/pma-tvoverlay/internal/api"
	"github.com/frostdev-ops/pma-tvoverlay/internal/api/handlers"
	"github.com/frostdev-ops/pma-tvoverlay/internal/api/middleware"
	"github.com/frostdev-ops/pma-tvoverlay/internal/config"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/coordinator"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/entities"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/metrics"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/resolver"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/services"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/setup"
	"github.com/frostdev-ops/pma-tvoverlay/internal/database"
	"github.com/frostdev-ops/pma-tvoverlay/internal/websocket"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/logger"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/version"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// A missing .env file is fine; the environment may already be set
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		BatchSize: cfg.Logging.BatchSize,
	})
	defer log.FlushPending()
	log.WithField("version", version.GetFullVersion()).Info("Starting TvOverlay bridge")

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if cfg.Database.Migration.Enabled && cfg.Database.Migration.AutoMigrate {
		if err := database.Migrate(db, log.Logger); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}
	repos := database.NewRepositories(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	var collector metrics.MetricsCollector = metrics.NoopCollector{}
	var prom *metrics.PrometheusCollector
	if cfg.Monitoring.Prometheus.Enabled {
		prom = metrics.NewPrometheusCollector(&metrics.MetricsConfig{Enabled: true, Prefix: "tvoverlay"})
		collector = prom
	}

	// WebSocket hub
	wsHub := websocket.NewHub(websocket.Config{
		PingInterval: time.Duration(cfg.WebSocket.PingInterval) * time.Second,
		PongTimeout:  time.Duration(cfg.WebSocket.PongTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WebSocket.WriteTimeout) * time.Second,
	}, log.Logger, collector)
	go wsHub.Run(ctx)

	// Core services
	reg := registry.New()
	scheduler := coordinator.NewScheduler(cfg.TvOverlay.ScanInterval, log.Logger)
	dispatcher := services.NewDispatcher(resolver.New(reg, repos.Device, log.Logger), log.Logger, collector)

	manager := setup.NewManager(setup.Config{
		DefaultPort: cfg.TvOverlay.DefaultPort,
		DefaultName: cfg.TvOverlay.DefaultName,
	}, setup.Dependencies{
		Registry:      reg,
		Registrations: repos.Registration,
		Devices:       repos.Device,
		IDStorage:     repos.NotificationIDs,
		Scheduler:     scheduler,
		Services:      dispatcher,
		Publisher:     wsHub,
		Metrics:       collector,
		Logger:        log.Logger,
	})

	restored, err := manager.Restore(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to restore registrations")
	}

	seeds := cfg.TvOverlay.Devices
	if cfg.TvOverlay.SeedFile != "" {
		fileSeeds, err := setup.LoadSeedFile(cfg.TvOverlay.SeedFile)
		if err != nil {
			log.WithError(err).WithField("file", cfg.TvOverlay.SeedFile).Warn("Failed to load seed file")
		}
		seeds = append(seeds, fileSeeds...)
	}
	seeded := manager.Seed(ctx, seeds)
	log.WithFields(logrus.Fields{
		"restored": restored,
		"seeded":   seeded,
	}).Info("Registrations started")

	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Health
	health := metrics.NewHealthChecker()
	health.SetDatabaseChecker(func() metrics.HealthStatus {
		if err := database.Ping(db); err != nil {
			return metrics.HealthStatus{Status: metrics.StatusUnhealthy, Message: err.Error(), Timestamp: time.Now()}
		}
		return metrics.HealthStatus{Status: metrics.StatusHealthy, Message: "Database reachable", Timestamp: time.Now()}
	})
	health.SetDeviceChecker(manager.DeviceHealth)

	var discoverer *tvoverlay.Discoverer
	if cfg.TvOverlay.Discovery.Enabled {
		discoverer = tvoverlay.NewDiscoverer(
			cfg.TvOverlay.Discovery.ServiceType,
			cfg.TvOverlay.Discovery.Domain,
			cfg.TvOverlay.Discovery.Timeout,
			log.Logger,
		)
	}

	h := handlers.NewHandlers(cfg, handlers.Dependencies{
		Dispatcher: dispatcher,
		Setup:      manager,
		Controller: entities.NewController(repos.Registration, log.Logger),
		Discoverer: discoverer,
		Health:     health,
		Hub:        wsHub,
	}, log.Logger)

	opts := api.Options{Collector: collector}
	if prom != nil {
		opts.MetricsHandler = prom.Handler()
	}
	if cfg.Security.RateLimit.Enabled {
		opts.RateLimiter = middleware.NewRateLimiter(ctx, cfg.Security.RateLimit.RequestsPerSecond, cfg.Security.RateLimit.Burst)
	}
	router := api.NewRouter(cfg, log, h, opts)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Failed to start server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server forced to shutdown")
	}
	scheduler.Stop()
	manager.Shutdown()

	log.Info("Server exited")
}
