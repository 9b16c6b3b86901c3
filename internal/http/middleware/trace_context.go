package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/promptstudy-backend/internal/platform/ctxutil"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderTraceID   = "X-Trace-Id"
)

// AttachTraceContext stamps every request with an ctxutil.Origin. An incoming
// X-Request-Id is honoured so a study frontend can correlate its own retries; the trace
// ID prefers the active otel span so log lines and exported traces share one key.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := ctxutil.Origin{RequestID: strings.TrimSpace(c.GetHeader(HeaderRequestID))}
		if origin.RequestID == "" || len(origin.RequestID) > 128 {
			origin.RequestID = uuid.NewString()
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			origin.TraceID = sc.TraceID().String()
		} else {
			origin.TraceID = strings.ReplaceAll(uuid.NewString(), "-", "")
		}

		c.Request = c.Request.WithContext(ctxutil.WithOrigin(c.Request.Context(), origin))
		c.Header(HeaderRequestID, origin.RequestID)
		c.Header(HeaderTraceID, origin.TraceID)
		c.Next()
	}
}
