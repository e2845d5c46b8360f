package middleware

import (
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware creates middleware for collecting HTTP metrics. Paths
// are recorded by route template.
func MetricsMiddleware(collector metrics.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		if collector == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		collector.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
