package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contextmeet/contextmeet/pkg/metrics"
)

// Metrics observes request latency per route. The registered route pattern
// is preferred over the raw URL so path parameters do not explode the label
// cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
