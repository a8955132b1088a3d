package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/storykeep-backend/internal/platform/ctxutil"
)

// HeaderUserID carries the caller identity resolved by the upstream gateway.
const HeaderUserID = "X-User-Id"

// RequireUser attaches the gateway-provided user id to the request context
// and rejects requests without a valid one.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		userID, err := uuid.Parse(raw)
		if raw == "" || err != nil || userID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid user id", "code": "unauthorized"},
			})
			return
		}
		ctx, rd := ctxutil.EnsureRequestData(c.Request.Context())
		rd.UserID = userID
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", userID)
		c.Next()
	}
}
