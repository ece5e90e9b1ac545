package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rollcall-api/internal/service"
)

const (
	unmatchedRoute = "unmatched"
	streamSuffix   = "/stream"
)

// Metrics records each request under its route template. Event streams are
// counted with the requests but timed as connections.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		switch {
		case route == "":
			metricsSvc.ObserveHTTPRequest(c.Request.Method, unmatchedRoute, c.Writer.Status(), time.Since(start))
		case strings.HasSuffix(route, streamSuffix):
			metricsSvc.ObserveStream(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		default:
			metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
		}
	}
}
