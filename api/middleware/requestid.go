package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/pagelens/logging"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// Gin context keys set by RequestID.
const (
	RequestIDContextKey = "request_id"
	LoggerContextKey    = "logger"
)

// RequestID tags each request with an id, reusing the caller's
// X-Request-ID when present. A logger carrying the id is stored both in
// the gin context and in the request's context.Context, so code below the
// handler logs with it via logging.FromContext.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		logger := slog.Default().With("request_id", id)

		c.Set(RequestIDContextKey, id)
		c.Set(LoggerContextKey, logger)
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), logger))
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()

		logger.Debug("request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
