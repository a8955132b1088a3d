package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/ctxutil"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

// ProjectDirectory answers membership questions for a project.
type ProjectDirectory interface {
	HasUserAccess(dbc dbctx.Context, projectID, userID uuid.UUID) (bool, error)
	GetUserRole(dbc dbctx.Context, projectID, userID uuid.UUID) (string, error)
}

type ProjectAccessMiddleware struct {
	log       *logger.Logger
	directory ProjectDirectory
}

func NewProjectAccessMiddleware(log *logger.Logger, directory ProjectDirectory) *ProjectAccessMiddleware {
	return &ProjectAccessMiddleware{log: log.With("Middleware", "ProjectAccessMiddleware"), directory: directory}
}

// RequireMember admits any project member. Must run after RequireUser.
func (m *ProjectAccessMiddleware) RequireMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, userID, ok := m.ids(c)
		if !ok {
			return
		}
		allowed, err := m.directory.HasUserAccess(dbctx.Context{Ctx: c.Request.Context()}, projectID, userID)
		if err != nil {
			m.log.Error("project access lookup failed", "project_id", projectID, "error", err)
			abort(c, http.StatusInternalServerError, "internal", "access check failed")
			return
		}
		if !allowed {
			abort(c, http.StatusForbidden, "forbidden", "no access to project")
			return
		}
		c.Next()
	}
}

// RequireFacilitator admits facilitators only (the owner counts as one).
func (m *ProjectAccessMiddleware) RequireFacilitator() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, userID, ok := m.ids(c)
		if !ok {
			return
		}
		role, err := m.directory.GetUserRole(dbctx.Context{Ctx: c.Request.Context()}, projectID, userID)
		if err != nil {
			m.log.Error("project role lookup failed", "project_id", projectID, "error", err)
			abort(c, http.StatusInternalServerError, "internal", "access check failed")
			return
		}
		if role != types.RoleFacilitator {
			abort(c, http.StatusForbidden, "forbidden", "facilitator role required")
			return
		}
		c.Next()
	}
}

func (m *ProjectAccessMiddleware) ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	projectID, err := uuid.Parse(c.Param("projectId"))
	if err != nil || projectID == uuid.Nil {
		abort(c, http.StatusBadRequest, "invalid_project_id", "invalid project id")
		return uuid.Nil, uuid.Nil, false
	}
	userID := ctxutil.UserID(c.Request.Context())
	if userID == uuid.Nil {
		abort(c, http.StatusUnauthorized, "unauthorized", "missing user id")
		return uuid.Nil, uuid.Nil, false
	}
	return projectID, userID, true
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"message": msg, "code": code}})
}
