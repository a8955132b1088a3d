package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

// TransactionFilter narrows a ledger listing. Empty slices and nil pointers
// do not filter.
type TransactionFilter struct {
	UserID           uuid.UUID
	ResourceTypes    []string
	TransactionTypes []string
	ProjectID        *uuid.UUID
	From             *time.Time
	To               *time.Time

	// created_at|amount
	SortBy string
	// asc|desc
	SortOrder string

	Limit  int
	Offset int
}

// GroupTotal is one (transaction_type, resource_type) bucket.
type GroupTotal struct {
	TransactionType string `gorm:"column:transaction_type"`
	ResourceType    string `gorm:"column:resource_type"`
	Count           int64  `gorm:"column:tx_count"`
	Spent           int64  `gorm:"column:spent"`
	Earned          int64  `gorm:"column:earned"`
}

type SeatTransactionRepo interface {
	Create(dbc dbctx.Context, rows []*types.SeatTransaction) ([]*types.SeatTransaction, error)

	List(dbc dbctx.Context, f TransactionFilter) ([]*types.SeatTransaction, int64, error)

	// SumByResource returns the signed ledger sum per resource type.
	SumByResource(dbc dbctx.Context, userID uuid.UUID) (map[string]int64, error)

	// GroupedTotals aggregates every row, or one user's rows when userID is set.
	GroupedTotals(dbc dbctx.Context, userID *uuid.UUID) ([]GroupTotal, error)

	DistinctUsers(dbc dbctx.Context) (int64, error)
}

type seatTransactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSeatTransactionRepo(db *gorm.DB, baseLog *logger.Logger) SeatTransactionRepo {
	return &seatTransactionRepo{db: db, log: baseLog.With("repo", "SeatTransactionRepo")}
}

func (r *seatTransactionRepo) Create(dbc dbctx.Context, rows []*types.SeatTransaction) ([]*types.SeatTransaction, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.SeatTransaction{}, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row != nil && row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *seatTransactionRepo) List(dbc dbctx.Context, f TransactionFilter) ([]*types.SeatTransaction, int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*types.SeatTransaction{}
	if f.UserID == uuid.Nil {
		return out, 0, nil
	}
	q := t.WithContext(dbc.Ctx).Model(&types.SeatTransaction{}).Where("user_id = ?", f.UserID)
	if len(f.ResourceTypes) > 0 {
		q = q.Where("resource_type IN ?", f.ResourceTypes)
	}
	if len(f.TransactionTypes) > 0 {
		q = q.Where("transaction_type IN ?", f.TransactionTypes)
	}
	if f.ProjectID != nil && *f.ProjectID != uuid.Nil {
		q = q.Where("project_id = ?", *f.ProjectID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", f.To.UTC())
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	col := "created_at"
	if f.SortBy == "amount" {
		col = "amount"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	err := q.Order(col + " " + dir).Order("id " + dir).
		Limit(limit).Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *seatTransactionRepo) SumByResource(dbc dbctx.Context, userID uuid.UUID) (map[string]int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := map[string]int64{}
	if userID == uuid.Nil {
		return out, nil
	}
	var rows []struct {
		ResourceType string `gorm:"column:resource_type"`
		Total        int64  `gorm:"column:total"`
	}
	err := t.WithContext(dbc.Ctx).Table("seat_transaction").
		Select("resource_type, COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ?", userID).
		Group("resource_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ResourceType] = row.Total
	}
	return out, nil
}

func (r *seatTransactionRepo) GroupedTotals(dbc dbctx.Context, userID *uuid.UUID) ([]GroupTotal, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []GroupTotal{}
	q := t.WithContext(dbc.Ctx).Table("seat_transaction").
		Select("transaction_type, resource_type, COUNT(*) AS tx_count, " +
			"COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0) AS spent, " +
			"COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS earned")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if err := q.Group("transaction_type, resource_type").Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *seatTransactionRepo) DistinctUsers(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	err := t.WithContext(dbc.Ctx).Table("seat_transaction").
		Distinct("user_id").
		Count(&n).Error
	return n, err
}
