package api

import (
	"net/http"

	"github.com/frostdev-ops/pma-tvoverlay/internal/api/handlers"
	"github.com/frostdev-ops/pma-tvoverlay/internal/api/middleware"
	"github.com/frostdev-ops/pma-tvoverlay/internal/config"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/metrics"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/logger"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/utils"
	"github.com/gin-gonic/gin"
)

// Options carries the optional router collaborators
type Options struct {
	// Collector records HTTP metrics; nil disables request metrics
	Collector metrics.MetricsCollector
	// MetricsHandler is mounted at the configured Prometheus path
	MetricsHandler http.Handler
	// RateLimiter guards the notification services; nil disables it
	RateLimiter *middleware.RateLimiter
}

// NewRouter creates and configures the main HTTP router
func NewRouter(cfg *config.Config, log *logger.BatchLogger, h *handlers.Handlers, opts Options) *gin.Engine {
	// Set gin mode based on config
	switch cfg.Server.Mode {
	case "production", gin.ReleaseMode:
		gin.SetMode(gin.ReleaseMode)
	case gin.TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.ErrorHandlingMiddleware(log.Logger))
	router.Use(middleware.LoggingMiddleware(log))
	if opts.Collector != nil {
		router.Use(middleware.MetricsMiddleware(opts.Collector))
	}
	if cfg.Security.EnableCORS {
		router.Use(middleware.CORSMiddleware(cfg.Security))
	}
	router.Use(middleware.ErrorResponseMiddleware(log.Logger))

	// Public routes
	router.GET("/health", h.Health)
	if opts.MetricsHandler != nil && cfg.Monitoring.Prometheus.Enabled {
		router.GET(cfg.Monitoring.Prometheus.Path, gin.WrapH(opts.MetricsHandler))
	}

	// WebSocket endpoint; clients pick entries with ?entry_id=
	router.GET("/ws", h.WebSocketHandler())

	api := router.Group("/api/v1")
	api.Use(middleware.OptionalAuthMiddleware(cfg.Auth))
	{
		api.GET("/status", h.Health)

		// Notification services
		svc := api.Group("/services")
		if opts.RateLimiter != nil {
			svc.Use(opts.RateLimiter.RateLimitMiddleware())
		}
		{
			svc.GET("", h.ServiceStatus)
			svc.POST("/notify", h.Notify)
			svc.POST("/notify_fixed", h.NotifyFixed)
			svc.POST("/clear_fixed", h.ClearFixed)
		}

		// Registrations
		devices := api.Group("/devices")
		{
			devices.GET("", h.GetDevices)
			devices.POST("", h.CreateDevice)
			devices.GET("/:id", h.GetDevice)
			devices.PUT("/:id", h.UpdateDevice)
			devices.DELETE("/:id", h.DeleteDevice)
			devices.POST("/:id/refresh", h.RefreshDevice)
			devices.GET("/:id/diagnostics", h.GetDiagnostics)

			// Controls and sensors
			devices.GET("/:id/entities", h.GetEntities)
			devices.GET("/:id/entities/:key", h.GetEntity)
			devices.PUT("/:id/entities/:key", h.SetEntity)
		}

		api.GET("/discovery", h.Discover)

		ws := api.Group("/websocket")
		{
			ws.GET("/stats", h.GetWebSocketStats)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		utils.SendError(c, http.StatusNotFound, "Endpoint not found")
	})

	return router
}
