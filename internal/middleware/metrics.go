package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/supervision-portal-api/internal/service"
)

// Metrics records per-route request counts and latencies. The scrape
// endpoint itself is excluded to keep the series clean.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		// Unmatched routes fall back to the raw path so 404 noise stays
		// distinguishable from real handlers.
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
