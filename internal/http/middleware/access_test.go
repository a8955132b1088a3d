package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/ctxutil"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

type fakeDirectory struct {
	roles map[uuid.UUID]string
	err   error
}

func (d fakeDirectory) HasUserAccess(_ dbctx.Context, _ uuid.UUID, userID uuid.UUID) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.roles[userID] != "", nil
}

func (d fakeDirectory) GetUserRole(_ dbctx.Context, _ uuid.UUID, userID uuid.UUID) (string, error) {
	return d.roles[userID], d.err
}

func newAccessRouter(dir ProjectDirectory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	mw := NewProjectAccessMiddleware(logger.Nop(), dir)
	r := gin.New()
	g := r.Group("/projects/:projectId", RequireUser())
	g.GET("/search", mw.RequireMember(), func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.UserID(c.Request.Context()).String())
	})
	g.POST("/search/reindex", mw.RequireFacilitator(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireUser(t *testing.T) {
	r := newAccessRouter(fakeDirectory{})
	for _, header := range []string{"", "not-a-uuid", uuid.Nil.String()} {
		req := httptest.NewRequest(http.MethodGet, "/projects/"+uuid.NewString()+"/search", nil)
		if header != "" {
			req.Header.Set(HeaderUserID, header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status=%d", header, rec.Code)
		}
	}
}

func TestProjectAccess(t *testing.T) {
	facilitator, storyteller, stranger := uuid.New(), uuid.New(), uuid.New()
	r := newAccessRouter(fakeDirectory{roles: map[uuid.UUID]string{
		facilitator: types.RoleFacilitator,
		storyteller: types.RoleStoryteller,
	}})
	project := uuid.NewString()

	cases := []struct {
		name   string
		method string
		path   string
		user   uuid.UUID
		want   int
	}{
		{"member searches", http.MethodGet, "/projects/" + project + "/search", storyteller, http.StatusOK},
		{"stranger searches", http.MethodGet, "/projects/" + project + "/search", stranger, http.StatusForbidden},
		{"facilitator reindexes", http.MethodPost, "/projects/" + project + "/search/reindex", facilitator, http.StatusOK},
		{"storyteller reindexes", http.MethodPost, "/projects/" + project + "/search/reindex", storyteller, http.StatusForbidden},
		{"bad project id", http.MethodGet, "/projects/nope/search", storyteller, http.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set(HeaderUserID, tc.user.String())
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: status=%d want=%d body=%s", tc.name, rec.Code, tc.want, rec.Body.String())
		}
		if tc.want == http.StatusOK && tc.method == http.MethodGet && rec.Body.String() != tc.user.String() {
			t.Fatalf("%s: user id not propagated: %q", tc.name, rec.Body.String())
		}
	}
}

func TestProjectAccessLookupFailure(t *testing.T) {
	r := newAccessRouter(fakeDirectory{err: errors.New("db down")})
	req := httptest.NewRequest(http.MethodGet, "/projects/"+uuid.NewString()+"/search", nil)
	req.Header.Set(HeaderUserID, uuid.NewString())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
}
