package middleware

import (
	"strconv"
	"time"

	"ascend/internal/logger"
	"ascend/internal/metrics"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs each request and records its status and latency.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.HttpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.ResponseTimeHistogram.WithLabelValues(c.Request.Method, path).Observe(elapsed.Seconds())

		switch {
		case status >= 500:
			logger.Error("[http] %s %s %d %s ip=%s", c.Request.Method, c.Request.URL.Path, status, elapsed, c.ClientIP())
		case path != "/healthz" && path != "/metrics":
			logger.Debug("[http] %s %s %d %s", c.Request.Method, c.Request.URL.Path, status, elapsed)
		}
	}
}
