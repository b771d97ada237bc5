package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/reimbursement-portal-api/internal/service"
)

// unmatchedRoute labels requests that hit no route, so probing arbitrary
// case numbers or paths cannot grow the label set.
const unmatchedRoute = "unmatched"

// Metrics observes every request under its route template.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
