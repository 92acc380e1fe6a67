package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/seoflow-backend/internal/platform/ctxutil"
	"github.com/yungbote/seoflow-backend/internal/platform/logger"
)

// RequestLogger logs one line per request once the handler chain returns.
// Event streams that closed cleanly are logged at debug.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if log == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		td := ctxutil.GetTraceData(c.Request.Context())
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
		}
		fields = append(fields, td.Fields()...)
		if id := c.Param("id"); id != "" {
			fields = append(fields, "resource_id", id)
		}

		switch {
		case c.GetHeader("Accept") == "text/event-stream" && status < 400:
			log.Debug("HTTP stream closed", fields...)
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
