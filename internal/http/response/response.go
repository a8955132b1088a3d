package response

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storykeep-backend/internal/platform/ctxutil"
)

type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes the error envelope and records err on the gin context
// for the request logger. Server-side causes stay out of the body: 5xx
// responses carry publicMsg, or the status text when publicMsg is empty.
func RespondError(c *gin.Context, status int, code string, err error, publicMsg ...string) {
	if err != nil {
		_ = c.Error(err)
	}
	body := APIError{Code: code, Message: strings.ToLower(http.StatusText(status))}
	switch {
	case status >= http.StatusInternalServerError:
		if len(publicMsg) > 0 && publicMsg[0] != "" {
			body.Message = publicMsg[0]
		}
	case err != nil:
		body.Message = err.Error()
	}
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		body.RequestID = rd.RequestID
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
