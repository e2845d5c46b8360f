package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/pkg/version"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health states reported per component
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusUnknown   = "unknown"
)

// HealthStatus represents the health status of a component
type HealthStatus struct {
	Status    string                 `json:"status"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status     string                  `json:"status"`
	Message    string                  `json:"message"`
	Timestamp  time.Time               `json:"timestamp"`
	Duration   time.Duration           `json:"duration"`
	Components map[string]HealthStatus `json:"components"`
	SystemInfo map[string]interface{}  `json:"system_info"`
}

// HealthChecker aggregates the database check and one check per registered
// overlay device.
type HealthChecker struct {
	databaseChecker func() HealthStatus
	deviceChecker   func() map[string]HealthStatus
	startedAt       time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{startedAt: time.Now()}
}

// SetDatabaseChecker sets the database health check function
func (h *HealthChecker) SetDatabaseChecker(checker func() HealthStatus) {
	h.databaseChecker = checker
}

// SetDeviceChecker sets the device health check function
func (h *HealthChecker) SetDeviceChecker(checker func() map[string]HealthStatus) {
	h.deviceChecker = checker
}

// CheckDatabase performs database health check
func (h *HealthChecker) CheckDatabase() HealthStatus {
	start := time.Now()

	if h.databaseChecker == nil {
		return HealthStatus{
			Status:    StatusUnknown,
			Message:   "Database health checker not configured",
			Timestamp: time.Now(),
			Duration:  time.Since(start),
		}
	}

	result := h.databaseChecker()
	result.Duration = time.Since(start)
	return result
}

// GetOverallHealth returns the overall service health. An unreachable device
// degrades the report; only the database can make it unhealthy.
func (h *HealthChecker) GetOverallHealth() HealthReport {
	start := time.Now()

	components := map[string]HealthStatus{
		"database": h.CheckDatabase(),
	}
	if h.deviceChecker != nil {
		for name, status := range h.deviceChecker() {
			components["device_"+name] = status
		}
	}

	status, message := calculateOverallStatus(components)

	return HealthReport{
		Status:     status,
		Message:    message,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
		Components: components,
		SystemInfo: h.gatherSystemInfo(),
	}
}

// gatherSystemInfo collects process and host information. Host figures are
// best effort and left out when the platform does not provide them.
func (h *HealthChecker) gatherSystemInfo() map[string]interface{} {
	info := map[string]interface{}{
		"version":    version.GetVersion(),
		"go_version": runtime.Version(),
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if vmem, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info["memory_used_percent"] = vmem.UsedPercent
	}
	if hostInfo, err := host.InfoWithContext(ctx); err == nil {
		info["hostname"] = hostInfo.Hostname
		info["platform"] = hostInfo.Platform
		info["host_uptime_seconds"] = hostInfo.Uptime
	}
	return info
}

func calculateOverallStatus(components map[string]HealthStatus) (string, string) {
	var unhealthy, degraded []string
	for name, status := range components {
		switch status.Status {
		case StatusUnhealthy:
			unhealthy = append(unhealthy, name)
		case StatusDegraded:
			degraded = append(degraded, name)
		}
	}
	sort.Strings(unhealthy)
	sort.Strings(degraded)

	total := len(components)
	if len(unhealthy) > 0 {
		return StatusUnhealthy, fmt.Sprintf("%d/%d components unhealthy: %v", len(unhealthy), total, unhealthy)
	}
	if len(degraded) > 0 {
		return StatusDegraded, fmt.Sprintf("%d/%d components degraded: %v", len(degraded), total, degraded)
	}
	return StatusHealthy, "All components healthy"
}
