package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
)

// requestLogger logs each request at V(1) and server errors at error level.
func requestLogger(logger logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start),
		}
		if status >= 500 {
			logger.Error(nil, "request failed", append(kv, "errors", c.Errors.String())...)
			return
		}
		logger.V(1).Info("request served", kv...)
	}
}
