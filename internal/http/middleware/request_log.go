package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/promptstudy-backend/internal/platform/ctxutil"
	"github.com/yungbote/promptstudy-backend/internal/platform/logger"
)

// RequestLogger writes one access log line per request. Polling and asset routes log at
// debug unless they fail, since a participant's browser hits them every few seconds.
// The participant ID, when the route carries one, is logged under a hashed key.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if o, ok := ctxutil.OriginFrom(c.Request.Context()); ok {
			fields = append(fields, o.LogFields()...)
		}
		if id := c.Param("prolificId"); id != "" {
			fields = append(fields, "prolific_id", id)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("HTTP request", fields...)
		case isChattyRoute(route):
			log.Debug("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func isChattyRoute(route string) bool {
	return route == "/health" ||
		strings.HasPrefix(route, "/static/") ||
		strings.HasPrefix(route, "/api/check-generation-status/")
}
