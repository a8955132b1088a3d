package analytics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

// AnalyticsWindow scopes aggregate reads to a project and an inclusive
// created_at range. Nil bounds are open.
type AnalyticsWindow struct {
	ProjectID uuid.UUID
	From      *time.Time
	To        *time.Time
}

type QueryCount struct {
	Query string `gorm:"column:query" json:"query"`
	Count int64  `gorm:"column:search_count" json:"count"`
}

type AnalyticsSummary struct {
	TotalSearches      int64   `gorm:"column:total_searches"`
	AverageResultCount float64 `gorm:"column:average_result_count"`
	AverageSearchTime  float64 `gorm:"column:average_search_time"`
}

type SearchAnalyticsRepo interface {
	Create(dbc dbctx.Context, row *types.SearchAnalytics) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SearchAnalytics, error)

	// AppendClick adds storyID to the event's clicked results once, holding a
	// row lock across the read and the write. It reports false when the event
	// does not exist in projectID.
	AppendClick(dbc dbctx.Context, projectID, id, storyID uuid.UUID) (bool, error)

	TopQueries(dbc dbctx.Context, w AnalyticsWindow, limit int) ([]QueryCount, error)
	Summary(dbc dbctx.Context, w AnalyticsWindow) (AnalyticsSummary, error)

	PurgeBefore(dbc dbctx.Context, before time.Time) (int64, error)
}

type searchAnalyticsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSearchAnalyticsRepo(db *gorm.DB, baseLog *logger.Logger) SearchAnalyticsRepo {
	return &searchAnalyticsRepo{db: db, log: baseLog.With("repo", "SearchAnalyticsRepo")}
}

func (r *searchAnalyticsRepo) Create(dbc dbctx.Context, row *types.SearchAnalytics) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if len(row.ClickedResults) == 0 {
		row.ClickedResults = datatypes.JSON([]byte("[]"))
	}
	return t.WithContext(dbc.Ctx).Create(row).Error
}

func (r *searchAnalyticsRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SearchAnalytics, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.SearchAnalytics
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *searchAnalyticsRepo) AppendClick(dbc dbctx.Context, projectID, id, storyID uuid.UUID) (bool, error) {
	if projectID == uuid.Nil || id == uuid.Nil {
		return false, nil
	}
	if dbc.Tx != nil {
		return r.appendClick(dbc, projectID, id, storyID)
	}
	var ok bool
	err := r.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ok, err = r.appendClick(dbctx.Context{Ctx: dbc.Ctx, Tx: tx}, projectID, id, storyID)
		return err
	})
	return ok, err
}

func (r *searchAnalyticsRepo) appendClick(dbc dbctx.Context, projectID, id, storyID uuid.UUID) (bool, error) {
	var row types.SearchAnalytics
	err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND project_id = ?", id, projectID).
		Limit(1).
		Find(&row).Error
	if err != nil || row.ID == uuid.Nil {
		return false, err
	}
	var clicked []string
	if len(row.ClickedResults) > 0 {
		if err := json.Unmarshal(row.ClickedResults, &clicked); err != nil {
			return false, err
		}
	}
	sid := storyID.String()
	for _, c := range clicked {
		if c == sid {
			return true, nil
		}
	}
	b, err := json.Marshal(append(clicked, sid))
	if err != nil {
		return false, err
	}
	err = dbc.Tx.WithContext(dbc.Ctx).Table("search_analytics").Where("id = ?", id).
		Update("clicked_results", datatypes.JSON(b)).Error
	return err == nil, err
}

func (r *searchAnalyticsRepo) window(dbc dbctx.Context, w AnalyticsWindow) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).Table("search_analytics").Where("project_id = ?", w.ProjectID)
	if w.From != nil {
		q = q.Where("created_at >= ?", w.From.UTC())
	}
	if w.To != nil {
		q = q.Where("created_at <= ?", w.To.UTC())
	}
	return q
}

func (r *searchAnalyticsRepo) TopQueries(dbc dbctx.Context, w AnalyticsWindow, limit int) ([]QueryCount, error) {
	out := []QueryCount{}
	if w.ProjectID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 10
	}
	err := r.window(dbc, w).
		Select("query, COUNT(*) AS search_count").
		Group("query").
		Order("search_count DESC, query ASC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *searchAnalyticsRepo) Summary(dbc dbctx.Context, w AnalyticsWindow) (AnalyticsSummary, error) {
	var out AnalyticsSummary
	if w.ProjectID == uuid.Nil {
		return out, nil
	}
	err := r.window(dbc, w).
		Select("COUNT(*) AS total_searches, " +
			"COALESCE(AVG(result_count), 0) AS average_result_count, " +
			"COALESCE(AVG(search_time_ms), 0) AS average_search_time").
		Scan(&out).Error
	return out, err
}

func (r *searchAnalyticsRepo) PurgeBefore(dbc dbctx.Context, before time.Time) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if before.IsZero() {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).Where("created_at < ?", before.UTC()).Delete(&types.SearchAnalytics{})
	return res.RowsAffected, res.Error
}
