package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/storykeep-backend/internal/data/repos"
	"github.com/yungbote/storykeep-backend/internal/data/repos/billing"
	types "github.com/yungbote/storykeep-backend/internal/domain"
	domainagg "github.com/yungbote/storykeep-backend/internal/domain/aggregates"
	"github.com/yungbote/storykeep-backend/internal/observability"
	"github.com/yungbote/storykeep-backend/internal/platform/dbctx"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type WalletBalances struct {
	ProjectVouchers  int `json:"projectVouchers"`
	FacilitatorSeats int `json:"facilitatorSeats"`
	StorytellerSeats int `json:"storytellerSeats"`
}

type Wallet struct {
	UserID uuid.UUID `json:"userId"`
	WalletBalances
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ResourceRequest asks for Amount units of one resource. The sign of Amount
// is ignored.
type ResourceRequest struct {
	ResourceType string
	Amount       int
	ProjectID    *uuid.UUID
	Description  string
	Metadata     json.RawMessage
}

type ResourceCredit struct {
	ResourceType string `json:"resourceType"`
	Amount       int    `json:"amount"`
}

type HistoryFilters struct {
	ResourceTypes    []string
	TransactionTypes []string
	ProjectID        *uuid.UUID
	DateFrom         *time.Time
	DateTo           *time.Time
	// created_at|amount
	SortBy string
	// asc|desc
	SortOrder string
	Page      int
	Limit     int
}

type TransactionPage struct {
	Transactions []*types.SeatTransaction `json:"transactions"`
	Total        int64                    `json:"total"`
	Page         int                      `json:"page"`
	Limit        int                      `json:"limit"`
	HasMore      bool                     `json:"hasMore"`
}

type TotalsBucket struct {
	Count  int64 `json:"count"`
	Spent  int64 `json:"spent"`
	Earned int64 `json:"earned"`
}

type TransactionStats struct {
	TotalTransactions int64                   `json:"totalTransactions"`
	TotalSpent        int64                   `json:"totalSpent"`
	TotalEarned       int64                   `json:"totalEarned"`
	ByTransactionType map[string]TotalsBucket `json:"byTransactionType"`
	ByResourceType    map[string]TotalsBucket `json:"byResourceType"`
}

type SystemStats struct {
	TotalWallets      int64            `json:"totalWallets"`
	ActiveUsers       int64            `json:"activeUsers"`
	OutstandingTotals map[string]int64 `json:"outstandingTotals"`
	Transactions      TransactionStats `json:"transactions"`
}

type ReconcileLine struct {
	ResourceType string `json:"resourceType"`
	Balance      int    `json:"balance"`
	LedgerSum    int64  `json:"ledgerSum"`
	Drift        int64  `json:"drift"`
}

type Reconciliation struct {
	UserID   uuid.UUID       `json:"userId"`
	Balanced bool            `json:"balanced"`
	Lines    []ReconcileLine `json:"lines"`
}

type LedgerService interface {
	// HasResources is an advisory read; ConsumeResources re-checks under lock.
	HasResources(ctx context.Context, userID uuid.UUID, resourceType string, amount int) (bool, error)
	ConsumeResources(ctx context.Context, userID uuid.UUID, req ResourceRequest) (*Wallet, error)
	ExpireResources(ctx context.Context, userID uuid.UUID, req ResourceRequest) (*Wallet, error)
	CreditResources(ctx context.Context, userID uuid.UUID, transactionType string, req ResourceRequest) (*Wallet, error)
	CreditBundle(ctx context.Context, userID uuid.UUID, transactionType string, credits []ResourceCredit, description string) (*Wallet, error)

	GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	GetTransactionHistory(ctx context.Context, userID uuid.UUID, f HistoryFilters) (*TransactionPage, error)
	GetUserTransactionStats(ctx context.Context, userID uuid.UUID) (*TransactionStats, error)
	GetSystemStats(ctx context.Context) (*SystemStats, error)
	ReconcileWallet(ctx context.Context, userID uuid.UUID) (*Reconciliation, error)
}

type ledgerService struct {
	log          *logger.Logger
	wallet       domainagg.WalletAggregate
	wallets      repos.ResourceWalletRepo
	transactions repos.SeatTransactionRepo
	notifier     *WalletNotifier
	metrics      *observability.Metrics
}

func NewLedgerService(
	log *logger.Logger,
	wallet domainagg.WalletAggregate,
	wallets repos.ResourceWalletRepo,
	transactions repos.SeatTransactionRepo,
	notifier *WalletNotifier,
	metrics *observability.Metrics,
) LedgerService {
	return &ledgerService{
		log:          log.With("service", "LedgerService"),
		wallet:       wallet,
		wallets:      wallets,
		transactions: transactions,
		notifier:     notifier,
		metrics:      metrics,
	}
}

func walletFromSnapshot(s domainagg.WalletSnapshot) *Wallet {
	return &Wallet{
		UserID: s.UserID,
		WalletBalances: WalletBalances{
			ProjectVouchers:  s.ProjectVouchers,
			FacilitatorSeats: s.FacilitatorSeats,
			StorytellerSeats: s.StorytellerSeats,
		},
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
	}
}

func validateRequest(op, resourceType string, amount int) error {
	if !types.ValidateResourceType(resourceType) {
		return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid resource type %q", resourceType), nil)
	}
	if !types.ValidateAmount(float64(absInt(amount))) {
		return domainagg.NewError(domainagg.CodeValidation, op, "amount must be a positive integer", nil)
	}
	return nil
}

func (s *ledgerService) HasResources(ctx context.Context, userID uuid.UUID, resourceType string, amount int) (bool, error) {
	const op = "Ledger.HasResources"
	if !types.ValidateResourceType(resourceType) {
		return false, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid resource type %q", resourceType), nil)
	}
	w, err := s.wallets.GetByUserID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return false, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if w == nil {
		return false, nil
	}
	return w.Balance(resourceType) >= absInt(amount), nil
}

func (s *ledgerService) ConsumeResources(ctx context.Context, userID uuid.UUID, req ResourceRequest) (*Wallet, error) {
	return s.debit(ctx, "Ledger.ConsumeResources", types.TransactionConsume, WalletEventConsumed, userID, req)
}

func (s *ledgerService) ExpireResources(ctx context.Context, userID uuid.UUID, req ResourceRequest) (*Wallet, error) {
	return s.debit(ctx, "Ledger.ExpireResources", types.TransactionExpire, WalletEventExpired, userID, req)
}

func (s *ledgerService) debit(ctx context.Context, op, txType, eventType string, userID uuid.UUID, req ResourceRequest) (*Wallet, error) {
	ctx, span := observability.Tracer("storykeep/ledger").Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("ledger.resource_type", req.ResourceType))

	if err := validateRequest(op, req.ResourceType, req.Amount); err != nil {
		return nil, err
	}
	res, err := s.wallet.Debit(ctx, domainagg.DebitInput{
		UserID:          userID,
		TransactionType: txType,
		ResourceType:    req.ResourceType,
		Amount:          req.Amount,
		ProjectID:       req.ProjectID,
		Description:     req.Description,
		Metadata:        req.Metadata,
	})
	if err != nil {
		s.log.Warn("ledger debit refused",
			"op", op,
			"user_id", userID,
			"resource_type", req.ResourceType,
			"amount", absInt(req.Amount),
			"code", domainagg.CodeOf(err),
			"error", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domainagg.CodeOf(err)))
		return nil, err
	}

	amount := absInt(req.Amount)
	s.metrics.AddLedgerUnits(req.ResourceType, "debit", amount)
	wallet := walletFromSnapshot(res.Wallet)
	s.notifier.Dispatch(ctx, WalletEvent{
		Type:            eventType,
		UserID:          userID,
		TransactionType: txType,
		Changes:         map[string]int{req.ResourceType: -amount},
		Balances:        wallet.WalletBalances,
		ProjectID:       req.ProjectID,
		TransactionIDs:  []uuid.UUID{res.TransactionID},
		OccurredAt:      res.Wallet.UpdatedAt,
	})
	return wallet, nil
}

func (s *ledgerService) CreditResources(ctx context.Context, userID uuid.UUID, transactionType string, req ResourceRequest) (*Wallet, error) {
	const op = "Ledger.CreditResources"
	if err := validateRequest(op, req.ResourceType, req.Amount); err != nil {
		return nil, err
	}
	return s.credit(ctx, op, userID, domainagg.CreditInput{
		UserID:          userID,
		TransactionType: transactionType,
		Lines:           []domainagg.CreditLine{{ResourceType: req.ResourceType, Amount: req.Amount}},
		ProjectID:       req.ProjectID,
		Description:     req.Description,
		Metadata:        req.Metadata,
	})
}

func (s *ledgerService) CreditBundle(ctx context.Context, userID uuid.UUID, transactionType string, credits []ResourceCredit, description string) (*Wallet, error) {
	const op = "Ledger.CreditBundle"
	if len(credits) == 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "bundle has no credits", nil)
	}
	lines := make([]domainagg.CreditLine, 0, len(credits))
	for _, c := range credits {
		if err := validateRequest(op, c.ResourceType, c.Amount); err != nil {
			return nil, err
		}
		lines = append(lines, domainagg.CreditLine{ResourceType: c.ResourceType, Amount: c.Amount})
	}
	return s.credit(ctx, op, userID, domainagg.CreditInput{
		UserID:          userID,
		TransactionType: transactionType,
		Lines:           lines,
		Description:     description,
	})
}

func (s *ledgerService) credit(ctx context.Context, op string, userID uuid.UUID, in domainagg.CreditInput) (*Wallet, error) {
	ctx, span := observability.Tracer("storykeep/ledger").Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("ledger.transaction_type", in.TransactionType))

	if !types.IsCreditType(in.TransactionType) {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid credit transaction type %q", in.TransactionType), nil)
	}
	res, err := s.wallet.Credit(ctx, in)
	if err != nil {
		s.log.Warn("ledger credit failed", "op", op, "user_id", userID, "code", domainagg.CodeOf(err), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domainagg.CodeOf(err)))
		return nil, err
	}

	changes := make(map[string]int, len(in.Lines))
	for _, line := range in.Lines {
		changes[line.ResourceType] += absInt(line.Amount)
	}
	for rt, n := range changes {
		s.metrics.AddLedgerUnits(rt, "credit", n)
	}
	wallet := walletFromSnapshot(res.Wallet)
	s.notifier.Dispatch(ctx, WalletEvent{
		Type:            WalletEventCredited,
		UserID:          userID,
		TransactionType: in.TransactionType,
		Changes:         changes,
		Balances:        wallet.WalletBalances,
		ProjectID:       in.ProjectID,
		TransactionIDs:  res.TransactionIDs,
		OccurredAt:      res.Wallet.UpdatedAt,
	})
	return wallet, nil
}

func (s *ledgerService) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	snap, err := s.wallet.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return walletFromSnapshot(snap), nil
}

func (s *ledgerService) GetTransactionHistory(ctx context.Context, userID uuid.UUID, f HistoryFilters) (*TransactionPage, error) {
	const op = "Ledger.GetTransactionHistory"
	if userID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	for _, rt := range f.ResourceTypes {
		if !types.ValidateResourceType(rt) {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid resource type %q", rt), nil)
		}
	}
	for _, tt := range f.TransactionTypes {
		if !types.ValidateTransactionType(tt) {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid transaction type %q", tt), nil)
		}
	}
	sortBy := strings.ToLower(strings.TrimSpace(f.SortBy))
	switch sortBy {
	case "":
		sortBy = "created_at"
	case "created_at", "amount":
	default:
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid sortBy %q", f.SortBy), nil)
	}
	order := strings.ToLower(strings.TrimSpace(f.SortOrder))
	switch order {
	case "":
		order = "desc"
	case "asc", "desc":
	default:
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid sortOrder %q", f.SortOrder), nil)
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "dateFrom is after dateTo", nil)
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, total, err := s.transactions.List(dbctx.Context{Ctx: ctx}, billing.TransactionFilter{
		UserID:           userID,
		ResourceTypes:    f.ResourceTypes,
		TransactionTypes: f.TransactionTypes,
		ProjectID:        f.ProjectID,
		From:             f.DateFrom,
		To:               f.DateTo,
		SortBy:           sortBy,
		SortOrder:        order,
		Limit:            limit,
		Offset:           (page - 1) * limit,
	})
	if err != nil {
		s.log.Error("transaction history query failed", "user_id", userID, "error", err)
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if rows == nil {
		rows = []*types.SeatTransaction{}
	}
	return &TransactionPage{
		Transactions: rows,
		Total:        total,
		Page:         page,
		Limit:        limit,
		HasMore:      int64((page-1)*limit+len(rows)) < total,
	}, nil
}

func (s *ledgerService) GetUserTransactionStats(ctx context.Context, userID uuid.UUID) (*TransactionStats, error) {
	const op = "Ledger.GetUserTransactionStats"
	if userID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	groups, err := s.transactions.GroupedTotals(dbctx.Context{Ctx: ctx}, &userID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	stats := foldGroupTotals(groups)
	return &stats, nil
}

func (s *ledgerService) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	const op = "Ledger.GetSystemStats"
	var (
		totals billing.WalletTotals
		users  int64
		groups []billing.GroupTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.wallets.Totals(dbctx.Context{Ctx: gctx})
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.transactions.DistinctUsers(dbctx.Context{Ctx: gctx})
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = s.transactions.GroupedTotals(dbctx.Context{Ctx: gctx}, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error("system stats query failed", "error", err)
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return &SystemStats{
		TotalWallets: totals.Wallets,
		ActiveUsers:  users,
		OutstandingTotals: map[string]int64{
			types.ResourceProjectVoucher:  totals.ProjectVouchers,
			types.ResourceFacilitatorSeat: totals.FacilitatorSeats,
			types.ResourceStorytellerSeat: totals.StorytellerSeats,
		},
		Transactions: foldGroupTotals(groups),
	}, nil
}

func foldGroupTotals(groups []billing.GroupTotal) TransactionStats {
	out := TransactionStats{
		ByTransactionType: map[string]TotalsBucket{},
		ByResourceType:    map[string]TotalsBucket{},
	}
	for _, g := range groups {
		out.TotalTransactions += g.Count
		out.TotalSpent += g.Spent
		out.TotalEarned += g.Earned

		tt := out.ByTransactionType[g.TransactionType]
		tt.Count += g.Count
		tt.Spent += g.Spent
		tt.Earned += g.Earned
		out.ByTransactionType[g.TransactionType] = tt

		rt := out.ByResourceType[g.ResourceType]
		rt.Count += g.Count
		rt.Spent += g.Spent
		rt.Earned += g.Earned
		out.ByResourceType[g.ResourceType] = rt
	}
	return out
}

func (s *ledgerService) ReconcileWallet(ctx context.Context, userID uuid.UUID) (*Reconciliation, error) {
	const op = "Ledger.ReconcileWallet"
	if userID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	dbc := dbctx.Context{Ctx: ctx}
	w, err := s.wallets.GetByUserID(dbc, userID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if w == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "wallet not found", nil)
	}
	sums, err := s.transactions.SumByResource(dbc, userID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	out := &Reconciliation{UserID: userID, Balanced: true}
	for _, rt := range types.ResourceTypes {
		line := ReconcileLine{ResourceType: rt, Balance: w.Balance(rt), LedgerSum: sums[rt]}
		line.Drift = int64(line.Balance) - line.LedgerSum
		if line.Drift != 0 {
			out.Balanced = false
		}
		out.Lines = append(out.Lines, line)
	}
	if !out.Balanced {
		s.log.Error("wallet out of balance with ledger", "user_id", userID, "lines", out.Lines)
	}
	return out, nil
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
