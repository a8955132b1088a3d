package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ResourceProjectVoucher  = "project_voucher"
	ResourceFacilitatorSeat = "facilitator_seat"
	ResourceStorytellerSeat = "storyteller_seat"
)

const (
	TransactionPurchase = "purchase"
	TransactionConsume  = "consume"
	TransactionRefund   = "refund"
	TransactionGrant    = "grant"
	TransactionExpire   = "expire"
)

// ResourceTypes lists every wallet resource in column order.
var ResourceTypes = []string{ResourceProjectVoucher, ResourceFacilitatorSeat, ResourceStorytellerSeat}

// ResourceWallet holds one user's prepaid balances. Rows are created lazily
// and never deleted. Version increments on every balance change.
type ResourceWallet struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	ProjectVouchers  int `gorm:"column:project_vouchers;not null;default:0;check:chk_wallet_project_vouchers,project_vouchers >= 0" json:"project_vouchers"`
	FacilitatorSeats int `gorm:"column:facilitator_seats;not null;default:0;check:chk_wallet_facilitator_seats,facilitator_seats >= 0" json:"facilitator_seats"`
	StorytellerSeats int `gorm:"column:storyteller_seats;not null;default:0;check:chk_wallet_storyteller_seats,storyteller_seats >= 0" json:"storyteller_seats"`

	Version int `gorm:"column:version;not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ResourceWallet) TableName() string { return "resource_wallet" }

func (w *ResourceWallet) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// Balance returns the balance for resourceType, or 0 for unknown types.
func (w *ResourceWallet) Balance(resourceType string) int {
	if w == nil {
		return 0
	}
	switch resourceType {
	case ResourceProjectVoucher:
		return w.ProjectVouchers
	case ResourceFacilitatorSeat:
		return w.FacilitatorSeats
	case ResourceStorytellerSeat:
		return w.StorytellerSeats
	default:
		return 0
	}
}

func (w *ResourceWallet) SetBalance(resourceType string, v int) {
	switch resourceType {
	case ResourceProjectVoucher:
		w.ProjectVouchers = v
	case ResourceFacilitatorSeat:
		w.FacilitatorSeats = v
	case ResourceStorytellerSeat:
		w.StorytellerSeats = v
	}
}

// BalanceColumn maps a resource type to its wallet column.
func BalanceColumn(resourceType string) (string, bool) {
	switch resourceType {
	case ResourceProjectVoucher:
		return "project_vouchers", true
	case ResourceFacilitatorSeat:
		return "facilitator_seats", true
	case ResourceStorytellerSeat:
		return "storyteller_seats", true
	default:
		return "", false
	}
}

// SeatTransaction is an immutable ledger row. Amount is negative for
// consumption and positive for credit.
type SeatTransaction struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_seat_tx_user_created,priority:1" json:"user_id"`

	// purchase|consume|refund|grant|expire
	TransactionType string `gorm:"column:transaction_type;not null;index" json:"transaction_type"`
	// project_voucher|facilitator_seat|storyteller_seat
	ResourceType string `gorm:"column:resource_type;not null;index" json:"resource_type"`
	Amount       int    `gorm:"column:amount;not null" json:"amount"`

	ProjectID   *uuid.UUID     `gorm:"type:uuid;index" json:"project_id,omitempty"`
	Description string         `gorm:"column:description" json:"description,omitempty"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_seat_tx_user_created,priority:2" json:"created_at"`
}

func (SeatTransaction) TableName() string { return "seat_transaction" }

func (t *SeatTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
