package search

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storykeep-backend/internal/data/repos/stories"
	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

// FallbackRank is assigned to every substring match.
const FallbackRank = 1.0

// SubstringFallback matches case-insensitive substrings of title, transcript
// and search_content. It has no notion of relevance and always sorts by date.
type SubstringFallback struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubstringFallback(db *gorm.DB, baseLog *logger.Logger) *SubstringFallback {
	return &SubstringFallback{db: db, log: baseLog.With("search", "SubstringFallback")}
}

func (s *SubstringFallback) Name() string          { return "substring" }
func (s *SubstringFallback) SupportsRanking() bool { return false }

func (s *SubstringFallback) matching(dbc dbctx.Context, q StoryQuery) *gorm.DB {
	pattern := "%" + stories.EscapeLike(strings.ToLower(q.Text)) + "%"
	return scoped(handle(dbc, s.db), q).Where(
		"(LOWER(COALESCE(story.title, '')) LIKE ? ESCAPE '\\' OR "+
			"LOWER(COALESCE(story.transcript, '')) LIKE ? ESCAPE '\\' OR "+
			"COALESCE(story.search_content, '') LIKE ? ESCAPE '\\')",
		pattern, pattern, pattern,
	)
}

func (s *SubstringFallback) Search(dbc dbctx.Context, q StoryQuery) ([]Hit, error) {
	var rows []*types.Story
	tx := s.matching(dbc, q).Select("story.*").
		Order("story.created_at DESC").
		Order("story.id ASC")
	if err := page(tx, q).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(rows))
	for _, row := range rows {
		out = append(out, Hit{
			Story:    row,
			Rank:     FallbackRank,
			Headline: prefixHeadline(row.Title, row.Transcript),
		})
	}
	return out, nil
}

func (s *SubstringFallback) Count(dbc dbctx.Context, q StoryQuery) (int64, error) {
	var n int64
	err := s.matching(dbc, q).Count(&n).Error
	return n, err
}

func (s *SubstringFallback) reindex(dbc dbctx.Context, where string, id uuid.UUID) (int64, error) {
	res := handle(dbc, s.db).Table("story").
		Where(where, id).
		Where("status = ?", types.StoryStatusReady).
		Update("search_content", gorm.Expr(stories.SearchContentExpr))
	return res.RowsAffected, res.Error
}

func (s *SubstringFallback) ReindexStory(dbc dbctx.Context, storyID uuid.UUID) (int64, error) {
	if storyID == uuid.Nil {
		return 0, nil
	}
	return s.reindex(dbc, "id = ?", storyID)
}

func (s *SubstringFallback) ReindexProject(dbc dbctx.Context, projectID uuid.UUID) (int64, error) {
	if projectID == uuid.Nil {
		return 0, nil
	}
	return s.reindex(dbc, "project_id = ?", projectID)
}
