package aggregates

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operation names reported to hooks, logs and error values.
const (
	OpEnsureWallet = "Billing.Wallet.EnsureWallet"
	OpDebit        = "Billing.Wallet.Debit"
	OpCredit       = "Billing.Wallet.Credit"
)

// WalletAggregate owns per-user balance invariants: balances never go
// negative and each balance equals the signed sum of its ledger rows.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeInsufficientResources, CodeConflict, CodeRetryable, CodeInternal.
// Every write runs in its own transaction and appends exactly one
// seat_transaction row per balance change.
type WalletAggregate interface {
	// EnsureWallet creates the user's zeroed wallet when absent and returns it.
	EnsureWallet(ctx context.Context, userID uuid.UUID) (WalletSnapshot, error)

	// Debit locks the wallet, re-validates the balance and appends a negative ledger row.
	// The wallet must already exist.
	Debit(ctx context.Context, in DebitInput) (DebitResult, error)

	// Credit creates the wallet when absent, then increments one or more balances,
	// appending one positive ledger row per line.
	Credit(ctx context.Context, in CreditInput) (CreditResult, error)
}

type WalletSnapshot struct {
	WalletID         uuid.UUID
	UserID           uuid.UUID
	ProjectVouchers  int
	FacilitatorSeats int
	StorytellerSeats int
	Version          int
	UpdatedAt        time.Time
}

type DebitInput struct {
	UserID uuid.UUID
	// consume|expire
	TransactionType string
	ResourceType    string
	// Sign is ignored; the absolute value is debited.
	Amount      int
	ProjectID   *uuid.UUID
	Description string
	Metadata    json.RawMessage
	OccurredAt  time.Time
}

type DebitResult struct {
	Wallet        WalletSnapshot
	TransactionID uuid.UUID
}

type CreditLine struct {
	ResourceType string
	Amount       int
}

type CreditInput struct {
	UserID uuid.UUID
	// purchase|refund|grant
	TransactionType string
	Lines           []CreditLine
	ProjectID       *uuid.UUID
	Description     string
	Metadata        json.RawMessage
	OccurredAt      time.Time
}

type CreditResult struct {
	Wallet         WalletSnapshot
	TransactionIDs []uuid.UUID
}
