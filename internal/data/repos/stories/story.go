package stories

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

type StoryRepo interface {
	Create(dbc dbctx.Context, rows []*types.Story) ([]*types.Story, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Story, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Story, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	// EachReadyTranscript streams every transcript of a ready story in the
	// project that contains needle (case-insensitive). Iteration stops at the
	// first error fn returns.
	EachReadyTranscript(dbc dbctx.Context, projectID uuid.UUID, needle string, fn func(transcript string) error) error
}

type storyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoryRepo(db *gorm.DB, baseLog *logger.Logger) StoryRepo {
	return &storyRepo{db: db, log: baseLog.With("repo", "StoryRepo")}
}

func (r *storyRepo) Create(dbc dbctx.Context, rows []*types.Story) ([]*types.Story, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Story{}, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row == nil {
			continue
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = row.CreatedAt
		}
		if row.Status == "" {
			row.Status = types.StoryStatusProcessing
		}
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *storyRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Story, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Story
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *storyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Story, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpdateFields writes through the table, bypassing model hooks, so a title or
// transcript change is followed by a search_content refresh from the stored row.
func (r *storyRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	if err := t.WithContext(dbc.Ctx).Table("story").Where("id = ?", id).Updates(updates).Error; err != nil {
		return err
	}
	_, title := updates["title"]
	_, transcript := updates["transcript"]
	if !title && !transcript {
		return nil
	}
	return t.WithContext(dbc.Ctx).Table("story").Where("id = ?", id).
		Update("search_content", gorm.Expr(SearchContentExpr)).Error
}

// SearchContentExpr recomputes the substring-search column from the row.
const SearchContentExpr = "LOWER(COALESCE(title, '') || ' ' || COALESCE(transcript, ''))"

func (r *storyRepo) EachReadyTranscript(dbc dbctx.Context, projectID uuid.UUID, needle string, fn func(transcript string) error) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if projectID == uuid.Nil || fn == nil {
		return nil
	}
	q := t.WithContext(dbc.Ctx).Table("story").Select("transcript").
		Where("project_id = ? AND status = ?", projectID, types.StoryStatusReady).
		Where("transcript IS NOT NULL AND transcript <> ''")
	if needle = strings.ToLower(strings.TrimSpace(needle)); needle != "" {
		q = q.Where("LOWER(transcript) LIKE ? ESCAPE '\\'", "%"+EscapeLike(needle)+"%")
	}
	rows, err := q.Rows()
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var transcript string
		if err := rows.Scan(&transcript); err != nil {
			return err
		}
		if err := fn(transcript); err != nil {
			return err
		}
	}
	return rows.Err()
}

// EscapeLike escapes LIKE wildcards so user text matches literally under
// ESCAPE '\'.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
