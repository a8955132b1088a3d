package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storykeep-backend/internal/observability"
)

// Metrics records in-flight requests and per-route latency. Routes are the
// gin templates (/api/projects/:projectId/search), so project ids never
// become label values. Scrapes and unmatched paths are skipped.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if m == nil || route == "" || route == "/metrics" {
			c.Next()
			return
		}
		m.ApiInflightInc()
		defer m.ApiInflightDec()
		start := time.Now()
		c.Next()
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
