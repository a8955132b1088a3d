package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/storykeep-backend/internal/data/repos"
	types "github.com/yungbote/storykeep-backend/internal/domain"
	domainagg "github.com/yungbote/storykeep-backend/internal/domain/aggregates"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
)

const walletTable = "resource_wallet"

type WalletAggregateDeps struct {
	Base BaseDeps

	Wallets      repos.ResourceWalletRepo
	Transactions repos.SeatTransactionRepo
}

type walletAggregate struct {
	deps WalletAggregateDeps
}

func NewWalletAggregate(deps WalletAggregateDeps) domainagg.WalletAggregate {
	deps.Base = deps.Base.withDefaults()
	return &walletAggregate{deps: deps}
}

func (a *walletAggregate) configured(op string) error {
	if a.deps.Wallets == nil || a.deps.Transactions == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "wallet aggregate repos not configured", nil)
	}
	return nil
}

func (a *walletAggregate) EnsureWallet(ctx context.Context, userID uuid.UUID) (domainagg.WalletSnapshot, error) {
	const op = domainagg.OpEnsureWallet
	var out domainagg.WalletSnapshot
	if userID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if err := a.configured(op); err != nil {
		return out, err
	}
	err := executeWriteWithRetry(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		w, err := a.deps.Wallets.CreateIfMissing(dbc, userID)
		if err != nil {
			return err
		}
		if w == nil {
			return InvariantError("wallet missing after create")
		}
		out = snapshotOf(w)
		return nil
	})
	return out, err
}

func (a *walletAggregate) Debit(ctx context.Context, in domainagg.DebitInput) (domainagg.DebitResult, error) {
	const op = domainagg.OpDebit
	var out domainagg.DebitResult
	if in.UserID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if !types.IsDebitType(in.TransactionType) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid debit transaction type %q", in.TransactionType), nil)
	}
	col, ok := types.BalanceColumn(in.ResourceType)
	if !ok {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid resource type %q", in.ResourceType), nil)
	}
	amount := abs(in.Amount)
	if amount == 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "amount must be a positive integer", nil)
	}
	if len(in.Metadata) > 0 && !json.Valid(in.Metadata) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "metadata must be valid JSON", nil)
	}
	if err := a.configured(op); err != nil {
		return out, err
	}

	err := executeWriteWithRetry(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		w, err := a.deps.Wallets.LockByUserID(dbc, in.UserID)
		if err != nil {
			return err
		}
		if w == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "wallet not found", nil)
		}
		// Balance is re-checked under the lock; any earlier read is advisory.
		have := w.Balance(in.ResourceType)
		if have < amount {
			return domainagg.NewError(
				domainagg.CodeInsufficientResources, op,
				fmt.Sprintf("insufficient %s: have %d, need %d", in.ResourceType, have, amount), nil,
			)
		}

		now := occurredAt(in.OccurredAt)
		changed, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, walletTable, w.ID, w.Version, map[string]any{
			col:          have - amount,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(changed, "wallet changed concurrently"); err != nil {
			return err
		}

		rows, err := a.deps.Transactions.Create(dbc, []*types.SeatTransaction{{
			ID:              uuid.New(),
			UserID:          in.UserID,
			TransactionType: in.TransactionType,
			ResourceType:    in.ResourceType,
			Amount:          -amount,
			ProjectID:       in.ProjectID,
			Description:     in.Description,
			Metadata:        metadataJSON(in.Metadata),
			CreatedAt:       now,
		}})
		if err != nil {
			return err
		}

		w.SetBalance(in.ResourceType, have-amount)
		w.Version++
		w.UpdatedAt = now
		out = domainagg.DebitResult{Wallet: snapshotOf(w), TransactionID: rows[0].ID}
		return nil
	})
	return out, err
}

func (a *walletAggregate) Credit(ctx context.Context, in domainagg.CreditInput) (domainagg.CreditResult, error) {
	const op = domainagg.OpCredit
	var out domainagg.CreditResult
	if in.UserID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if !types.IsCreditType(in.TransactionType) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid credit transaction type %q", in.TransactionType), nil)
	}
	lines, err := mergeCreditLines(in.Lines)
	if err != nil {
		return out, domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	if len(in.Metadata) > 0 && !json.Valid(in.Metadata) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "metadata must be valid JSON", nil)
	}
	if err := a.configured(op); err != nil {
		return out, err
	}

	err = executeWriteWithRetry(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if _, err := a.deps.Wallets.CreateIfMissing(dbc, in.UserID); err != nil {
			return err
		}
		w, err := a.deps.Wallets.LockByUserID(dbc, in.UserID)
		if err != nil {
			return err
		}
		if w == nil {
			return InvariantError("wallet missing after create")
		}

		now := occurredAt(in.OccurredAt)
		updates := map[string]any{"updated_at": now}
		txRows := make([]*types.SeatTransaction, 0, len(lines))
		for _, line := range lines {
			col, _ := types.BalanceColumn(line.ResourceType)
			next := w.Balance(line.ResourceType) + line.Amount
			updates[col] = next
			w.SetBalance(line.ResourceType, next)
			txRows = append(txRows, &types.SeatTransaction{
				ID:              uuid.New(),
				UserID:          in.UserID,
				TransactionType: in.TransactionType,
				ResourceType:    line.ResourceType,
				Amount:          line.Amount,
				ProjectID:       in.ProjectID,
				Description:     in.Description,
				Metadata:        metadataJSON(in.Metadata),
				CreatedAt:       now,
			})
		}

		changed, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, walletTable, w.ID, w.Version, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(changed, "wallet changed concurrently"); err != nil {
			return err
		}
		rows, err := a.deps.Transactions.Create(dbc, txRows)
		if err != nil {
			return err
		}

		w.Version++
		w.UpdatedAt = now
		ids := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		out = domainagg.CreditResult{Wallet: snapshotOf(w), TransactionIDs: ids}
		return nil
	})
	return out, err
}

// mergeCreditLines validates lines and folds repeated resource types into one
// line, keeping first-seen order.
func mergeCreditLines(lines []domainagg.CreditLine) ([]domainagg.CreditLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("at least one credit line is required")
	}
	idx := map[string]int{}
	out := make([]domainagg.CreditLine, 0, len(lines))
	for _, line := range lines {
		if !types.ValidateResourceType(line.ResourceType) {
			return nil, fmt.Errorf("invalid resource type %q", line.ResourceType)
		}
		amount := abs(line.Amount)
		if amount == 0 {
			return nil, fmt.Errorf("amount for %s must be a positive integer", line.ResourceType)
		}
		if i, ok := idx[line.ResourceType]; ok {
			out[i].Amount += amount
			continue
		}
		idx[line.ResourceType] = len(out)
		out = append(out, domainagg.CreditLine{ResourceType: line.ResourceType, Amount: amount})
	}
	return out, nil
}

func snapshotOf(w *types.ResourceWallet) domainagg.WalletSnapshot {
	return domainagg.WalletSnapshot{
		WalletID:         w.ID,
		UserID:           w.UserID,
		ProjectVouchers:  w.ProjectVouchers,
		FacilitatorSeats: w.FacilitatorSeats,
		StorytellerSeats: w.StorytellerSeats,
		Version:          w.Version,
		UpdatedAt:        w.UpdatedAt,
	}
}

func metadataJSON(raw []byte) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

func occurredAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
