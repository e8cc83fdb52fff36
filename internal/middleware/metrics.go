package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taskroster/internal/service"
)

// UnmatchedRoute labels requests that hit no registered route, keeping the path label
// bounded to the route table.
const UnmatchedRoute = "unmatched"

// Metrics records method, route pattern, status and duration of every request.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = UnmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
