package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/timetable-api/internal/service"
)

// Metrics records duration and status for every request. Route templates
// (":id" style) are used as the path label to keep cardinality bounded.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
