package search

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storykeep-backend/internal/data/db"
	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

const (
	SortRelevance = "relevance"
	SortDate      = "date"
)

// StoryQuery is an already-sanitized search over one project's ready stories.
// Empty ID slices and nil dates do not filter; date bounds are inclusive.
type StoryQuery struct {
	ProjectID      uuid.UUID
	Text           string
	ChapterIDs     []uuid.UUID
	FacilitatorIDs []uuid.UUID
	DateFrom       *time.Time
	DateTo         *time.Time
	SortBy         string
	Limit          int
	Offset         int
}

// Hit is one matched story. Rank is only comparable within one strategy.
// Headline is an HTML fragment whose only markup is <b>.
type Hit struct {
	Story    *types.Story
	Rank     float64
	Headline string
}

// QueryStrategy is the per-deployment search backend. Implementations must
// apply identical filters in Search and Count.
type QueryStrategy interface {
	Name() string
	SupportsRanking() bool

	Search(dbc dbctx.Context, q StoryQuery) ([]Hit, error)
	Count(dbc dbctx.Context, q StoryQuery) (int64, error)

	// ReindexStory and ReindexProject rebuild the derived search columns of
	// ready stories and return the number of rows touched.
	ReindexStory(dbc dbctx.Context, storyID uuid.UUID) (int64, error)
	ReindexProject(dbc dbctx.Context, projectID uuid.UUID) (int64, error)
}

// NewStrategy picks the backend once from the connection's dialect.
func NewStrategy(gdb *gorm.DB, baseLog *logger.Logger) QueryStrategy {
	if db.Dialect(gdb) == db.DialectPostgres {
		return NewNativeRanked(gdb, baseLog)
	}
	return NewSubstringFallback(gdb, baseLog)
}

// scoped returns the story query shared by every strategy: ready rows of one
// project plus the optional filters.
func scoped(t *gorm.DB, q StoryQuery) *gorm.DB {
	tx := t.Table("story").
		Where("story.project_id = ?", q.ProjectID).
		Where("story.status = ?", types.StoryStatusReady)
	if len(q.ChapterIDs) > 0 {
		tx = tx.Where("story.chapter_id IN ?", q.ChapterIDs)
	}
	if len(q.FacilitatorIDs) > 0 {
		tx = tx.Where("story.facilitator_id IN ?", q.FacilitatorIDs)
	}
	if q.DateFrom != nil {
		tx = tx.Where("story.created_at >= ?", q.DateFrom.UTC())
	}
	if q.DateTo != nil {
		tx = tx.Where("story.created_at <= ?", q.DateTo.UTC())
	}
	return tx
}

func page(tx *gorm.DB, q StoryQuery) *gorm.DB {
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	return tx
}

func handle(dbc dbctx.Context, fallback *gorm.DB) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = fallback
	}
	return t.WithContext(dbc.Ctx)
}
