package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/storykeep-backend/internal/data/repos/testutil"
	types "github.com/yungbote/storykeep-backend/internal/domain"
	httpMW "github.com/yungbote/storykeep-backend/internal/http/middleware"
	"github.com/yungbote/storykeep-backend/internal/services"
)

var appSeq atomic.Int64

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := DefaultConfig()
	cfg.LogMode = "test"
	cfg.DBDriver = DriverSQLite
	cfg.SQLitePath = fmt.Sprintf("file:storykeep_app_%d?mode=memory&cache=shared", appSeq.Add(1))
	cfg.ServiceName = ""
	cfg.AnalyticsRetention = 0
	a, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func call(a *App, method, path string, userID uuid.UUID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if userID != uuid.Nil {
		req.Header.Set(httpMW.HeaderUserID, userID.String())
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func TestAppSearchFlow(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	owner, stranger := uuid.New(), uuid.New()
	project := testutil.SeedProject(t, ctx, a.DB, owner)
	testutil.SeedMember(t, ctx, a.DB, project.ID, owner, types.RoleFacilitator)
	testutil.SeedStory(t, ctx, a.DB, project.ID, "The garden", "Grandma kept a vegetable garden behind the house.")
	testutil.SeedStory(t, ctx, a.DB, project.ID, "Moving day", "We packed the truck in one afternoon.")

	if w := call(a, http.MethodGet, "/healthcheck", uuid.Nil); w.Code != http.StatusOK {
		t.Fatalf("healthcheck: %d", w.Code)
	}
	if w := call(a, http.MethodGet, "/readyz", uuid.Nil); w.Code != http.StatusOK {
		t.Fatalf("readyz: %d", w.Code)
	}

	base := "/api/projects/" + project.ID.String() + "/search"
	w := call(a, http.MethodGet, base+"?q=garden", owner)
	if w.Code != http.StatusOK {
		t.Fatalf("search: %d %s", w.Code, w.Body.String())
	}
	var resp services.SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Results) != 1 || resp.Results[0].Story.Title != "The garden" {
		t.Fatalf("unexpected search response: %+v", resp)
	}
	if resp.AnalyticsID == nil {
		t.Fatalf("expected analytics id on tracked search")
	}

	if w := call(a, http.MethodGet, base+"?q=garden", stranger); w.Code != http.StatusForbidden {
		t.Fatalf("non-member search: %d", w.Code)
	}
	if w := call(a, http.MethodGet, base+"?q=garden", uuid.Nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous search: %d", w.Code)
	}

	w = call(a, http.MethodPost, base+"/reindex", owner)
	if w.Code != http.StatusOK {
		t.Fatalf("reindex: %d %s", w.Code, w.Body.String())
	}
	var reindexed struct {
		ReindexedCount int64 `json:"reindexedCount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &reindexed); err != nil {
		t.Fatalf("decode reindex: %v", err)
	}
	if reindexed.ReindexedCount != 2 {
		t.Fatalf("reindexedCount = %d, want 2", reindexed.ReindexedCount)
	}

	w = call(a, http.MethodGet, base+"/analytics", owner)
	if w.Code != http.StatusOK {
		t.Fatalf("analytics: %d %s", w.Code, w.Body.String())
	}
	var report services.SearchAnalyticsReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode analytics: %v", err)
	}
	if report.TotalSearches != 1 {
		t.Fatalf("totalSearches = %d, want 1", report.TotalSearches)
	}
}

func TestAppWalletFlow(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	user := uuid.New()

	if _, err := a.Services.Ledger.CreditResources(ctx, user, types.TransactionPurchase, services.ResourceRequest{
		ResourceType: types.ResourceProjectVoucher,
		Amount:       2,
	}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := a.Services.Ledger.ConsumeResources(ctx, user, services.ResourceRequest{
		ResourceType: types.ResourceProjectVoucher,
		Amount:       1,
	}); err != nil {
		t.Fatalf("consume: %v", err)
	}

	w := call(a, http.MethodGet, "/api/wallet", user)
	if w.Code != http.StatusOK {
		t.Fatalf("wallet: %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Wallet services.Wallet `json:"wallet"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Wallet.ProjectVouchers != 1 {
		t.Fatalf("projectVouchers = %d, want 1", body.Wallet.ProjectVouchers)
	}

	w = call(a, http.MethodGet, "/api/wallet/transactions?sortBy=amount&sortOrder=desc", user)
	if w.Code != http.StatusOK {
		t.Fatalf("transactions: %d %s", w.Code, w.Body.String())
	}
	var page services.TransactionPage
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 2 || page.Transactions[0].Amount != 2 || page.Transactions[1].Amount != -1 {
		t.Fatalf("unexpected history: %+v", page)
	}

	if w := call(a, http.MethodGet, "/api/wallet/transactions?sortBy=bogus", user); w.Code != http.StatusBadRequest {
		t.Fatalf("bad sort: %d", w.Code)
	}
}

func TestAppAnalyticsPurge(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	project := uuid.New()

	id := a.Services.Search.TrackSearchAnalytics(ctx, services.SearchEvent{Query: "garden", ProjectID: project, ResultCount: 1})
	if id == uuid.Nil {
		t.Fatalf("track failed")
	}
	a.Cfg.AnalyticsRetention = time.Hour
	a.purgeAnalyticsOnce(ctx, a.Log)

	report, err := a.Services.Search.GetSearchAnalytics(ctx, project, services.AnalyticsOptions{})
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if report.TotalSearches != 1 {
		t.Fatalf("recent rows must survive purge, got %d", report.TotalSearches)
	}

	a.Cfg.AnalyticsRetention = -time.Hour
	a.purgeAnalyticsOnce(ctx, a.Log)
	report, err = a.Services.Search.GetSearchAnalytics(ctx, project, services.AnalyticsOptions{})
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if report.TotalSearches != 0 {
		t.Fatalf("expired rows should be purged, got %d", report.TotalSearches)
	}
}
