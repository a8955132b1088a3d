package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storykeep-backend/internal/data/aggregates"
	"github.com/yungbote/storykeep-backend/internal/data/repos"
	"github.com/yungbote/storykeep-backend/internal/data/repos/testutil"
	types "github.com/yungbote/storykeep-backend/internal/domain"
	domainagg "github.com/yungbote/storykeep-backend/internal/domain/aggregates"
	"github.com/yungbote/storykeep-backend/internal/observability"
)

type recordingHandler struct {
	mu     sync.Mutex
	name   string
	err    error
	events []WalletEvent
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) HandleWalletEvent(_ context.Context, ev WalletEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

type ledgerFixture struct {
	db      *gorm.DB
	svc     LedgerService
	events  *recordingHandler
	metrics *observability.Metrics
}

func newLedgerFixture(t *testing.T) ledgerFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.New()
	wallets := repos.NewResourceWalletRepo(db, log)
	txs := repos.NewSeatTransactionRepo(db, log)
	agg := aggregates.NewWalletAggregate(aggregates.WalletAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
			Retry: aggregates.RetryPolicy{MaxAttempts: 5},
		},
		Wallets:      wallets,
		Transactions: txs,
	})
	events := &recordingHandler{name: "recording"}
	notifier := NewWalletNotifier(log, metrics, events)
	return ledgerFixture{
		db:      db,
		svc:     NewLedgerService(log, agg, wallets, txs, notifier, metrics),
		events:  events,
		metrics: metrics,
	}
}

func (f ledgerFixture) assertReconciled(t *testing.T, userID uuid.UUID) {
	t.Helper()
	rec, err := f.svc.ReconcileWallet(context.Background(), userID)
	if err != nil {
		t.Fatalf("ReconcileWallet: %v", err)
	}
	if !rec.Balanced {
		t.Fatalf("wallet out of balance: %+v", rec.Lines)
	}
}

func TestHasResources(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	user := uuid.New()

	ok, err := f.svc.HasResources(ctx, user, types.ResourceProjectVoucher, 1)
	if err != nil || ok {
		t.Fatalf("no wallet: ok=%v err=%v", ok, err)
	}
	testutil.SeedWallet(t, ctx, f.db, user, 2, 0, 0)
	for _, amt := range []int{1, 2, -2} {
		ok, err = f.svc.HasResources(ctx, user, types.ResourceProjectVoucher, amt)
		if err != nil || !ok {
			t.Fatalf("amount %d: ok=%v err=%v", amt, ok, err)
		}
	}
	if ok, _ = f.svc.HasResources(ctx, user, types.ResourceProjectVoucher, 3); ok {
		t.Fatalf("3 vouchers reported available")
	}
	if _, err = f.svc.HasResources(ctx, user, "gold", 1); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("unknown resource: %v", err)
	}
}

func TestConsumeResources(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	user := uuid.New()
	project := uuid.New()
	testutil.SeedWallet(t, ctx, f.db, user, 3, 1, 0)

	w, err := f.svc.ConsumeResources(ctx, user, ResourceRequest{
		ResourceType: types.ResourceProjectVoucher,
		Amount:       -2,
		ProjectID:    &project,
	})
	if err != nil {
		t.Fatalf("ConsumeResources: %v", err)
	}
	if w.ProjectVouchers != 1 || w.FacilitatorSeats != 1 {
		t.Fatalf("wallet after consume = %+v", w)
	}
	f.assertReconciled(t, user)

	if f.events.count() != 1 {
		t.Fatalf("events = %d", f.events.count())
	}
	ev := f.events.events[0]
	if ev.Type != WalletEventConsumed || ev.Changes[types.ResourceProjectVoucher] != -2 || ev.ProjectID == nil || *ev.ProjectID != project {
		t.Fatalf("event = %+v", ev)
	}
	if got := f.metrics.LedgerOps("Billing.Wallet.Debit", "success"); got != 1 {
		t.Fatalf("ledger ok metric = %v", got)
	}
}

func TestConsumeResourcesFailuresLeaveStateUntouched(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := f.svc.ConsumeResources(ctx, user, ResourceRequest{ResourceType: types.ResourceStorytellerSeat, Amount: 1})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("missing wallet: %v", err)
	}

	testutil.SeedWallet(t, ctx, f.db, user, 0, 0, 1)
	_, err = f.svc.ConsumeResources(ctx, user, ResourceRequest{ResourceType: types.ResourceStorytellerSeat, Amount: 2})
	if !domainagg.IsCode(err, domainagg.CodeInsufficientResources) {
		t.Fatalf("insufficient: %v", err)
	}
	if !strings.Contains(err.Error(), types.ResourceStorytellerSeat) {
		t.Fatalf("error does not name the resource: %v", err)
	}

	_, err = f.svc.ConsumeResources(ctx, user, ResourceRequest{ResourceType: types.ResourceStorytellerSeat, Amount: 0})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("zero amount: %v", err)
	}
	_, err = f.svc.ConsumeResources(ctx, user, ResourceRequest{ResourceType: "gold", Amount: 1})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("bad resource: %v", err)
	}

	w, err := f.svc.GetWallet(ctx, user)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if w.StorytellerSeats != 1 || w.Version != 0 {
		t.Fatalf("wallet changed: %+v", w)
	}
	if f.events.count() != 0 {
		t.Fatalf("failed debits dispatched %d events", f.events.count())
	}
	f.assertReconciled(t, user)
}

func TestConsumeResourcesConcurrent(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	user := uuid.New()
	testutil.SeedWallet(t, ctx, f.db, user, 5, 0, 0)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, short  int
		unexpected []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ConsumeResources(ctx, user, ResourceRequest{ResourceType: types.ResourceProjectVoucher, Amount: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case domainagg.IsCode(err, domainagg.CodeInsufficientResources):
				short++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	if len(unexpected) > 0 {
		t.Fatalf("unexpected errors: %v", unexpected)
	}
	if ok != 5 || short != 3 {
		t.Fatalf("ok=%d insufficient=%d", ok, short)
	}
	w, err := f.svc.GetWallet(ctx, user)
	if err != nil || w.ProjectVouchers != 0 {
		t.Fatalf("final wallet %+v err=%v", w, err)
	}
	f.assertReconciled(t, user)
}

func TestCreditResourcesCreatesWallet(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	user := uuid.New()

	w, err := f.svc.CreditResources(ctx, user, types.TransactionPurchase, ResourceRequest{
		ResourceType: types.ResourceFacilitatorSeat,
		Amount:       4,
		Description:  "starter pack",
	})
	if err != nil {
		t.Fatalf("CreditResources: %v", err)
	}
	if w.FacilitatorSeats != 4 || w.ProjectVouchers != 0 {
		t.Fatalf("wallet = %+v", w)
	}
	if _, err := f.svc.CreditResources(ctx, user, types.TransactionConsume, ResourceRequest{ResourceType: types.ResourceFacilitatorSeat, Amount: 1}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("consume as credit type: %v", err)
	}
	f.assertReconciled(t, user)
}

func TestCreditBundleAndExpire(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	user := uuid.New()

	w, err := f.svc.CreditBundle(ctx, user, types.TransactionPurchase, []ResourceCredit{
		{ResourceType: types.ResourceProjectVoucher, Amount: 1},
		{ResourceType: types.ResourceFacilitatorSeat, Amount: 2},
		{ResourceType: types.ResourceStorytellerSeat, Amount: 3},
	}, "family bundle")
	if err != nil {
		t.Fatalf("CreditBundle: %v", err)
	}
	if w.ProjectVouchers != 1 || w.FacilitatorSeats != 2 || w.StorytellerSeats != 3 {
		t.Fatalf("wallet = %+v", w)
	}
	if n := f.events.count(); n != 1 || len(f.events.events[0].TransactionIDs) != 3 {
		t.Fatalf("bundle events = %d", n)
	}

	if _, err := f.svc.CreditBundle(ctx, user, types.TransactionPurchase, nil, ""); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("empty bundle: %v", err)
	}

	w, err = f.svc.ExpireResources(ctx, user, ResourceRequest{ResourceType: types.ResourceStorytellerSeat, Amount: 2})
	if err != nil {
		t.Fatalf("ExpireResources: %v", err)
	}
	if w.StorytellerSeats != 1 {
		t.Fatalf("after expire = %+v", w)
	}
	f.assertReconciled(t, user)

	page, err := f.svc.GetTransactionHistory(ctx, user, HistoryFilters{TransactionTypes: []string{types.TransactionExpire}})
	if err != nil {
		t.Fatalf("GetTransactionHistory: %v", err)
	}
	if page.Total != 1 || page.Transactions[0].Amount != -2 {
		t.Fatalf("expire history = %+v", page)
	}
}

func TestGetTransactionHistoryPaging(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	user := uuid.New()
	for i := 0; i < 5; i++ {
		if _, err := f.svc.CreditResources(ctx, user, types.TransactionGrant, ResourceRequest{ResourceType: types.ResourceProjectVoucher, Amount: i + 1}); err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
	}

	page, err := f.svc.GetTransactionHistory(ctx, user, HistoryFilters{SortBy: "amount", SortOrder: "asc", Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("GetTransactionHistory: %v", err)
	}
	if page.Total != 5 || len(page.Transactions) != 2 || !page.HasMore {
		t.Fatalf("page = %+v", page)
	}
	if page.Transactions[0].Amount != 3 || page.Transactions[1].Amount != 4 {
		t.Fatalf("amounts = %d, %d", page.Transactions[0].Amount, page.Transactions[1].Amount)
	}

	bad := []HistoryFilters{
		{SortBy: "user_id"},
		{SortOrder: "sideways"},
		{ResourceTypes: []string{"gold"}},
		{TransactionTypes: []string{"steal"}},
	}
	for _, hf := range bad {
		if _, err := f.svc.GetTransactionHistory(ctx, user, hf); !domainagg.IsCode(err, domainagg.CodeValidation) {
			t.Fatalf("filters %+v: %v", hf, err)
		}
	}
}

func TestTransactionStats(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	if _, err := f.svc.CreditResources(ctx, alice, types.TransactionPurchase, ResourceRequest{ResourceType: types.ResourceProjectVoucher, Amount: 3}); err != nil {
		t.Fatalf("credit alice: %v", err)
	}
	if _, err := f.svc.ConsumeResources(ctx, alice, ResourceRequest{ResourceType: types.ResourceProjectVoucher, Amount: 1}); err != nil {
		t.Fatalf("consume alice: %v", err)
	}
	if _, err := f.svc.CreditResources(ctx, bob, types.TransactionGrant, ResourceRequest{ResourceType: types.ResourceStorytellerSeat, Amount: 2}); err != nil {
		t.Fatalf("credit bob: %v", err)
	}

	stats, err := f.svc.GetUserTransactionStats(ctx, alice)
	if err != nil {
		t.Fatalf("GetUserTransactionStats: %v", err)
	}
	if stats.TotalTransactions != 2 || stats.TotalSpent != 1 || stats.TotalEarned != 3 {
		t.Fatalf("alice stats = %+v", stats)
	}
	if b := stats.ByTransactionType[types.TransactionConsume]; b.Count != 1 || b.Spent != 1 {
		t.Fatalf("consume bucket = %+v", b)
	}

	sys, err := f.svc.GetSystemStats(ctx)
	if err != nil {
		t.Fatalf("GetSystemStats: %v", err)
	}
	if sys.TotalWallets != 2 || sys.ActiveUsers != 2 {
		t.Fatalf("system stats = %+v", sys)
	}
	if sys.OutstandingTotals[types.ResourceProjectVoucher] != 2 || sys.OutstandingTotals[types.ResourceStorytellerSeat] != 2 {
		t.Fatalf("outstanding = %+v", sys.OutstandingTotals)
	}
	if sys.Transactions.TotalEarned != 5 || sys.Transactions.TotalSpent != 1 {
		t.Fatalf("system totals = %+v", sys.Transactions)
	}
}

func TestReconcileWalletDetectsDrift(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	user := uuid.New()
	testutil.SeedWallet(t, ctx, f.db, user, 2, 0, 0)
	if err := f.db.Model(&types.ResourceWallet{}).Where("user_id = ?", user).Update("project_vouchers", 7).Error; err != nil {
		t.Fatalf("corrupt wallet: %v", err)
	}

	rec, err := f.svc.ReconcileWallet(ctx, user)
	if err != nil {
		t.Fatalf("ReconcileWallet: %v", err)
	}
	if rec.Balanced {
		t.Fatalf("drift not detected")
	}
	for _, line := range rec.Lines {
		if line.ResourceType == types.ResourceProjectVoucher && line.Drift != 5 {
			t.Fatalf("voucher drift = %d", line.Drift)
		}
	}
	if _, err := f.svc.ReconcileWallet(ctx, uuid.New()); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("unknown wallet: %v", err)
	}
}

func TestWalletNotifierIsolatesHandlerErrors(t *testing.T) {
	log := testutil.Logger(t)
	metrics := observability.New()
	bad := &recordingHandler{name: "bad", err: errors.New("boom")}
	good := &recordingHandler{name: "good"}
	n := NewWalletNotifier(log, metrics, bad, nil, good)

	if got := n.Handlers(); len(got) != 2 || got[0] != "bad" || got[1] != "good" {
		t.Fatalf("handlers = %v", got)
	}
	n.Dispatch(context.Background(), WalletEvent{Type: WalletEventCredited, UserID: uuid.New()})
	if bad.count() != 1 || good.count() != 1 {
		t.Fatalf("bad=%d good=%d", bad.count(), good.count())
	}

	var nilNotifier *WalletNotifier
	nilNotifier.Dispatch(context.Background(), WalletEvent{})
}

type spyPublisher struct {
	got []any
}

func (p *spyPublisher) PublishJSON(_ context.Context, v any) error {
	p.got = append(p.got, v)
	return nil
}

func TestRedisWalletEventHandlerPublishes(t *testing.T) {
	pub := &spyPublisher{}
	h := NewRedisWalletEventHandler(pub)
	ev := WalletEvent{Type: WalletEventConsumed, UserID: uuid.New()}
	if err := h.HandleWalletEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleWalletEvent: %v", err)
	}
	if len(pub.got) != 1 || pub.got[0].(WalletEvent).UserID != ev.UserID {
		t.Fatalf("published = %+v", pub.got)
	}
}
