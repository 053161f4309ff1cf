package httpserver

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"values-server/services/articulator-api/internal/infrastructure/metrics"
)

// MetricsMiddleware records request counts and latencies per route. The route
// template is used as the endpoint label so path parameters do not explode
// the label cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}
