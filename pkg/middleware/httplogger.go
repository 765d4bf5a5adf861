package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Meesho/BharatMLStack/iris/pkg/api/http"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
)

// HTTPLogger writes an access log line per request and emits count + latency
// metrics. The path tag uses the route template ("/indexes/:name", not the
// resolved URL) to keep metric cardinality bounded.
func HTTPLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := c.Request.Method
		statusCode := c.Writer.Status()
		callerId := c.Request.Header.Get(http.HeaderCallerId)

		metricTags := metric.BuildTag(
			metric.NewTag(metric.TagPath, route),
			metric.NewTag(metric.TagMethod, method),
			metric.NewTag(metric.TagHttpStatusCode, strconv.Itoa(statusCode)),
			metric.NewTag(metric.TagCallerId, callerId),
		)
		metric.Incr(metric.ApiRequestCount, metricTags)
		metric.Timing(metric.ApiRequestLatency, elapsed, metricTags)
		log.Info().Msgf("[access] [%s] %s %s %d %v", c.ClientIP(), method, route, statusCode, elapsed)
	}
}
