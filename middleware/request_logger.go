package middleware

import (
	"slices"
	"time"

	"github.com/AnTengye/contractdesk/pkg/logger"
	"github.com/gin-gonic/gin"
)

// StatusRecorder receives the status code of every response
type StatusRecorder interface {
	RecordHTTPStatus(method string, statusCode int)
}

// RequestLogger logs every request once it completes. Successful requests to
// quietPaths, such as probes, are counted but not logged. rec may be nil.
func RequestLogger(rec StatusRecorder, quietPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		if rec != nil {
			rec.RecordHTTPStatus(c.Request.Method, status)
		}
		if status < 400 && slices.Contains(quietPaths, path) {
			return
		}

		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
		}
		if route := c.FullPath(); route != "" && route != path {
			attrs = append(attrs, "route", route)
		}
		if query != "" {
			attrs = append(attrs, "query", query)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		// the request context carries request and user ids from the earlier middleware
		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.Error(ctx, "request completed", attrs...)
		case status >= 400:
			logger.Warn(ctx, "request completed", attrs...)
		default:
			logger.Info(ctx, "request completed", attrs...)
		}
	}
}
