package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/storykeep-backend/internal/platform/ctxutil"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderTraceID   = "X-Trace-Id"
)

// RequestIDs echoes or mints X-Request-Id and X-Trace-Id. The trace id
// prefers the active OTel span so log lines join up with exported traces.
func RequestIDs() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, rd := ctxutil.EnsureRequestData(c.Request.Context())

		rd.RequestID = strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if rd.RequestID == "" {
			rd.RequestID = uuid.NewString()
		}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			rd.TraceID = sc.TraceID().String()
		} else if rd.TraceID = strings.TrimSpace(c.GetHeader(HeaderTraceID)); rd.TraceID == "" {
			rd.TraceID = rd.RequestID
		}

		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, rd.RequestID)
		c.Header(HeaderTraceID, rd.TraceID)
		c.Next()
	}
}
