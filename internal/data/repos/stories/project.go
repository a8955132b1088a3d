package stories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

type ProjectRepo interface {
	Create(dbc dbctx.Context, rows []*types.Project) ([]*types.Project, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error)
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return &projectRepo{db: db, log: baseLog.With("repo", "ProjectRepo")}
}

func (r *projectRepo) Create(dbc dbctx.Context, rows []*types.Project) ([]*types.Project, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Project{}, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row != nil && row.CreatedAt.IsZero() {
			row.CreatedAt = now
			row.UpdatedAt = now
		}
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *projectRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Project, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.Project
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// ProjectMemberRepo is the project directory: membership and role lookups.
type ProjectMemberRepo interface {
	Upsert(dbc dbctx.Context, row *types.ProjectMember) error
	HasUserAccess(dbc dbctx.Context, projectID, userID uuid.UUID) (bool, error)
	// GetUserRole returns "" when the user has no role in the project. The
	// project owner is always a facilitator.
	GetUserRole(dbc dbctx.Context, projectID, userID uuid.UUID) (string, error)
}

type projectMemberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectMemberRepo(db *gorm.DB, baseLog *logger.Logger) ProjectMemberRepo {
	return &projectMemberRepo{db: db, log: baseLog.With("repo", "ProjectMemberRepo")}
}

func (r *projectMemberRepo) Upsert(dbc dbctx.Context, row *types.ProjectMember) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.ProjectID == uuid.Nil || row.UserID == uuid.Nil {
		return nil
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(row).Error
}

func (r *projectMemberRepo) HasUserAccess(dbc dbctx.Context, projectID, userID uuid.UUID) (bool, error) {
	role, err := r.GetUserRole(dbc, projectID, userID)
	if err != nil {
		return false, err
	}
	return role != "", nil
}

func (r *projectMemberRepo) GetUserRole(dbc dbctx.Context, projectID, userID uuid.UUID) (string, error) {
	if projectID == uuid.Nil || userID == uuid.Nil {
		return "", nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var owners int64
	if err := t.WithContext(dbc.Ctx).Model(&types.Project{}).
		Where("id = ? AND owner_user_id = ?", projectID, userID).
		Count(&owners).Error; err != nil {
		return "", err
	}
	if owners > 0 {
		return types.RoleFacilitator, nil
	}
	var row types.ProjectMember
	if err := t.WithContext(dbc.Ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Limit(1).Find(&row).Error; err != nil {
		return "", err
	}
	return row.Role, nil
}
