package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/provider-admission-api/internal/service"
)

// unmatchedRoute labels requests that hit no registered route, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

// Metrics returns middleware that captures request metrics using the provided service.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		if c.IsWebsocket() {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
