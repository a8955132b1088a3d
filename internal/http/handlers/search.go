package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/storykeep-backend/internal/http/response"
	"github.com/yungbote/storykeep-backend/internal/platform/ctxutil"
	"github.com/yungbote/storykeep-backend/internal/services"
)

type SearchHandler struct {
	search services.SearchService
}

func NewSearchHandler(search services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// GET /api/projects/:projectId/search
func (h *SearchHandler) Search(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	opts, err := searchOptionsFromQuery(c)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	query := c.Query("q")
	res, err := h.search.SearchStories(c.Request.Context(), projectID, query, opts)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if services.SanitizeQuery(query) != "" {
		id := h.search.TrackSearchAnalytics(c.Request.Context(), services.SearchEvent{
			Query:        query,
			ProjectID:    projectID,
			UserID:       ctxutil.UserID(c.Request.Context()),
			ResultCount:  int(res.Total),
			SearchTimeMs: res.SearchTime,
		})
		if id != uuid.Nil {
			res.AnalyticsID = &id
		}
	}
	response.RespondOK(c, res)
}

func searchOptionsFromQuery(c *gin.Context) (services.SearchOptions, error) {
	var opts services.SearchOptions
	var err error
	if opts.Page, err = queryInt(c.Query("page"), "page"); err != nil {
		return opts, err
	}
	if opts.Limit, err = queryInt(c.Query("limit"), "limit"); err != nil {
		return opts, err
	}
	if opts.ChapterIDs, err = queryUUIDs(c.Query("chapters"), "chapters"); err != nil {
		return opts, err
	}
	if opts.FacilitatorIDs, err = queryUUIDs(c.Query("facilitators"), "facilitators"); err != nil {
		return opts, err
	}
	if opts.DateFrom, err = queryTime(c.Query("dateFrom"), "dateFrom", false); err != nil {
		return opts, err
	}
	if opts.DateTo, err = queryTime(c.Query("dateTo"), "dateTo", true); err != nil {
		return opts, err
	}
	opts.SortBy = c.Query("sortBy")
	return opts, nil
}

// GET /api/projects/:projectId/search/suggestions
func (h *SearchHandler) Suggestions(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	limit, err := queryInt(c.Query("limit"), "limit")
	if err != nil {
		respondServiceError(c, err)
		return
	}
	words, err := h.search.GetSearchSuggestions(c.Request.Context(), projectID, c.Query("q"), limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"suggestions": words})
}

// GET /api/projects/:projectId/search/analytics
func (h *SearchHandler) Analytics(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	var opts services.AnalyticsOptions
	if opts.DateFrom, err = queryTime(c.Query("dateFrom"), "dateFrom", false); err != nil {
		respondServiceError(c, err)
		return
	}
	if opts.DateTo, err = queryTime(c.Query("dateTo"), "dateTo", true); err != nil {
		respondServiceError(c, err)
		return
	}
	if opts.Limit, err = queryInt(c.Query("limit"), "limit"); err != nil {
		respondServiceError(c, err)
		return
	}
	rep, err := h.search.GetSearchAnalytics(c.Request.Context(), projectID, opts)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, rep)
}

// POST /api/projects/:projectId/search/reindex
func (h *SearchHandler) Reindex(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	n, err := h.search.ReindexProject(c.Request.Context(), projectID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reindexedCount": n})
}

// POST /api/projects/:projectId/search/click
// body: { "analyticsId": "...", "storyId": "..." }
func (h *SearchHandler) Click(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("projectId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	var req struct {
		AnalyticsID uuid.UUID `json:"analyticsId" binding:"required"`
		StoryID     uuid.UUID `json:"storyId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.search.RecordClick(c.Request.Context(), projectID, req.AnalyticsID, req.StoryID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
