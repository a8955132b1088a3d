package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/storykeep-backend/internal/domain"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

type WalletTotals struct {
	Wallets          int64 `gorm:"column:wallets" json:"wallets"`
	ProjectVouchers  int64 `gorm:"column:project_vouchers" json:"projectVouchers"`
	FacilitatorSeats int64 `gorm:"column:facilitator_seats" json:"facilitatorSeats"`
	StorytellerSeats int64 `gorm:"column:storyteller_seats" json:"storytellerSeats"`
}

type ResourceWalletRepo interface {
	GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.ResourceWallet, error)

	// LockByUserID takes a row lock where the dialect supports one. SQLite
	// drops the clause and relies on its single writer.
	LockByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.ResourceWallet, error)

	// CreateIfMissing inserts a zeroed wallet unless one exists and returns
	// the stored row.
	CreateIfMissing(dbc dbctx.Context, userID uuid.UUID) (*types.ResourceWallet, error)

	Totals(dbc dbctx.Context) (WalletTotals, error)
}

type resourceWalletRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResourceWalletRepo(db *gorm.DB, baseLog *logger.Logger) ResourceWalletRepo {
	return &resourceWalletRepo{db: db, log: baseLog.With("repo", "ResourceWalletRepo")}
}

func (r *resourceWalletRepo) GetByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.ResourceWallet, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.ResourceWallet
	if err := t.WithContext(dbc.Ctx).Where("user_id = ?", userID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *resourceWalletRepo) LockByUserID(dbc dbctx.Context, userID uuid.UUID) (*types.ResourceWallet, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.ResourceWallet
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *resourceWalletRepo) CreateIfMissing(dbc dbctx.Context, userID uuid.UUID) (*types.ResourceWallet, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	now := time.Now().UTC()
	row := &types.ResourceWallet{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.GetByUserID(dbctx.Context{Ctx: dbc.Ctx, Tx: t}, userID)
}

func (r *resourceWalletRepo) Totals(dbc dbctx.Context) (WalletTotals, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out WalletTotals
	err := t.WithContext(dbc.Ctx).Table("resource_wallet").
		Select("COUNT(*) AS wallets, " +
			"COALESCE(SUM(project_vouchers), 0) AS project_vouchers, " +
			"COALESCE(SUM(facilitator_seats), 0) AS facilitator_seats, " +
			"COALESCE(SUM(storyteller_seats), 0) AS storyteller_seats").
		Scan(&out).Error
	return out, err
}
