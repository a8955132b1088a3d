package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/storykeep-backend/internal/domain/aggregates"
	"github.com/yungbote/storykeep-backend/internal/http/response"
	"github.com/yungbote/storykeep-backend/internal/platform/apierr"
	"github.com/yungbote/storykeep-backend/internal/services"
)

// statusForError maps service errors to an HTTP status and a stable code.
func statusForError(err error) (int, string) {
	if ae, ok := apierr.As(err); ok {
		return ae.Status, ae.Code
	}
	if errors.Is(err, services.ErrSearchFailed) {
		return http.StatusInternalServerError, "search_failed"
	}
	switch domainagg.CodeOf(err) {
	case domainagg.CodeValidation:
		return http.StatusBadRequest, "invalid_request"
	case domainagg.CodeNotFound:
		return http.StatusNotFound, "not_found"
	case domainagg.CodeInsufficientResources:
		return http.StatusConflict, "insufficient_resources"
	case domainagg.CodeConflict, domainagg.CodePreconditionFailed:
		return http.StatusConflict, "conflict"
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable, "retryable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondServiceError hides the cause of server-side failures from clients.
func respondServiceError(c *gin.Context, err error) {
	status, code := statusForError(err)
	response.RespondError(c, status, code, err, publicMessage(code))
}

func publicMessage(code string) string {
	switch code {
	case "search_failed":
		return "search failed"
	case "retryable":
		return "temporarily unavailable, retry"
	default:
		return "internal error"
	}
}
