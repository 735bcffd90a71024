package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"example.com/eazyy/fulfillment/internal/metrics"
)

// Metrics records request counts and latency per route
func Metrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route templates keep path parameters out of the metric keys
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		collector.RecordHTTPRequest(path, c.Writer.Status(), time.Since(start))
	}
}
