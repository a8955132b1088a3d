package aggregates

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
)

// CASGuard performs compare-and-set updates on tables that carry an integer
// version column.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

// UpdateByVersion writes updates to row id only while it still holds
// expectedVersion, bumping version in the same statement. It reports false
// when another writer got there first.
func (g CASGuard) UpdateByVersion(dbc dbctx.Context, table string, id uuid.UUID, expectedVersion int, updates map[string]any) (bool, error) {
	switch {
	case table == "" || id == uuid.Nil:
		return false, ValidationError("cas update needs a table and row id")
	case expectedVersion < 0:
		return false, ValidationError("cas update needs a non-negative version")
	case len(updates) == 0:
		return false, ValidationError("cas update has no columns")
	}
	db := dbc.Tx
	if db == nil {
		db = g.db
	}
	if db == nil {
		return false, ValidationError("cas update has no database handle")
	}

	cols := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		cols[k] = v
	}
	cols["version"] = expectedVersion + 1

	res := db.WithContext(dbc.Ctx).Table(table).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RequireCASSuccess turns a lost compare-and-set into a conflict so the
// write is replayed.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(message)
}
