package handlers

import (
	"net/http"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/metrics"
	"github.com/frostdev-ops/pma-tvoverlay/pkg/version"
	"github.com/gin-gonic/gin"
)

// Health returns the health status of the service. Offline devices degrade
// the report; only a failing database makes it unhealthy.
func (h *Handlers) Health(c *gin.Context) {
	health := gin.H{
		"status":     metrics.StatusHealthy,
		"timestamp":  time.Now().Format(time.RFC3339),
		"service":    version.ServiceName,
		"version":    version.GetVersion(),
		"registered": h.dispatcher != nil && h.dispatcher.Registered(),
	}

	status := http.StatusOK
	if h.health != nil {
		report := h.health.GetOverallHealth()
		health["status"] = report.Status
		health["message"] = report.Message
		health["components"] = report.Components
		health["system"] = report.SystemInfo
		if report.Status == metrics.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, gin.H{
		"success":   status == http.StatusOK,
		"data":      health,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
