package app

import (
	"strconv"
	"time"

	"projector_reservation/log"
	"projector_reservation/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs each request and counts it by route template.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if s, ok := CurrentSubject(c); ok {
			fields = append(fields, zap.String("userID", s.UserID))
		}
		switch {
		case status >= 500:
			log.Logger.Error("request", fields...)
		case status >= 400:
			log.Logger.Warn("request", fields...)
		default:
			log.Logger.Debug("request", fields...)
		}
	}
}
