package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/storykeep-backend/internal/platform/ctxutil"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

func TestRequestIDsEchoAndMint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen *ctxutil.RequestData
	r := gin.New()
	r.Use(RequestIDs(), RequestLogger(logger.Nop()), RequireUser())
	r.GET("/api/wallet", func(c *gin.Context) {
		seen = ctxutil.GetRequestData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	user := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	req.Header.Set(HeaderUserID, user.String())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(HeaderRequestID) != "req-42" || rec.Header().Get(HeaderTraceID) != "req-42" {
		t.Fatalf("headers: %v", rec.Header())
	}
	if seen == nil || seen.RequestID != "req-42" || seen.UserID != user {
		t.Fatalf("request data: %+v", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/wallet", nil)
	req.Header.Set(HeaderUserID, user.String())
	req.Header.Set(HeaderTraceID, "trace-7")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if _, err := uuid.Parse(rec.Header().Get(HeaderRequestID)); err != nil {
		t.Fatalf("minted request id: %q", rec.Header().Get(HeaderRequestID))
	}
	if rec.Header().Get(HeaderTraceID) != "trace-7" {
		t.Fatalf("trace id: %q", rec.Header().Get(HeaderTraceID))
	}
}
