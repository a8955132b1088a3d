package search

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storykeep-backend/internal/data/db"
	"github.com/yungbote/storykeep-backend/internal/data/repos/stories"
	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

const (
	tsQuery         = "plainto_tsquery('english', ?)"
	headlineOptions = "StartSel=<b>, StopSel=</b>, MaxWords=35, MinWords=15, MaxFragments=1"
)

// NativeRanked searches the Postgres search_vector column (title weight A,
// transcript weight B) and ranks with ts_rank.
type NativeRanked struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNativeRanked(db *gorm.DB, baseLog *logger.Logger) *NativeRanked {
	return &NativeRanked{db: db, log: baseLog.With("search", "NativeRanked")}
}

func (s *NativeRanked) Name() string          { return "native" }
func (s *NativeRanked) SupportsRanking() bool { return true }

type rankedRow struct {
	types.Story
	Rank     float64 `gorm:"column:rank"`
	Headline string  `gorm:"column:headline"`
}

func (s *NativeRanked) matching(dbc dbctx.Context, q StoryQuery) *gorm.DB {
	return scoped(handle(dbc, s.db), q).Where("story.search_vector @@ "+tsQuery, q.Text)
}

func (s *NativeRanked) Search(dbc dbctx.Context, q StoryQuery) ([]Hit, error) {
	var rows []rankedRow
	tx := s.matching(dbc, q).Select(
		"story.*, "+
			"ts_rank(story.search_vector, "+tsQuery+") AS rank, "+
			"ts_headline('english', COALESCE(NULLIF(story.transcript, ''), story.title, ''), "+tsQuery+", '"+headlineOptions+"') AS headline",
		q.Text, q.Text,
	)
	if q.SortBy == SortDate {
		tx = tx.Order("story.created_at DESC").Order("story.id ASC")
	} else {
		tx = tx.Order("rank DESC").Order("story.created_at DESC").Order("story.id ASC")
	}
	if err := page(tx, q).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(rows))
	for i := range rows {
		story := rows[i].Story
		out = append(out, Hit{
			Story:    &story,
			Rank:     rows[i].Rank,
			Headline: sanitizeHighlight(rows[i].Headline),
		})
	}
	return out, nil
}

func (s *NativeRanked) Count(dbc dbctx.Context, q StoryQuery) (int64, error) {
	var n int64
	err := s.matching(dbc, q).Count(&n).Error
	return n, err
}

func (s *NativeRanked) reindex(dbc dbctx.Context, where string, id uuid.UUID) (int64, error) {
	res := handle(dbc, s.db).Table("story").
		Where(where, id).
		Where("status = ?", types.StoryStatusReady).
		Updates(map[string]interface{}{
			"search_vector":  gorm.Expr(db.StorySearchVectorExpr("story")),
			"search_content": gorm.Expr(stories.SearchContentExpr),
		})
	return res.RowsAffected, res.Error
}

func (s *NativeRanked) ReindexStory(dbc dbctx.Context, storyID uuid.UUID) (int64, error) {
	if storyID == uuid.Nil {
		return 0, nil
	}
	return s.reindex(dbc, "id = ?", storyID)
}

func (s *NativeRanked) ReindexProject(dbc dbctx.Context, projectID uuid.UUID) (int64, error) {
	if projectID == uuid.Nil {
		return 0, nil
	}
	return s.reindex(dbc, "project_id = ?", projectID)
}
