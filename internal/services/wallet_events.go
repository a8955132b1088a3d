package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/storykeep-backend/internal/observability"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

const (
	WalletEventConsumed = "wallet.consumed"
	WalletEventCredited = "wallet.credited"
	WalletEventExpired  = "wallet.expired"
)

// WalletEvent describes one committed balance change.
type WalletEvent struct {
	Type            string         `json:"type"`
	UserID          uuid.UUID      `json:"userId"`
	TransactionType string         `json:"transactionType"`
	Changes         map[string]int `json:"changes"`
	Balances        WalletBalances `json:"balances"`
	ProjectID       *uuid.UUID     `json:"projectId,omitempty"`
	TransactionIDs  []uuid.UUID    `json:"transactionIds"`
	OccurredAt      time.Time      `json:"occurredAt"`
}

type WalletEventHandler interface {
	Name() string
	HandleWalletEvent(ctx context.Context, ev WalletEvent) error
}

// WalletNotifier fans committed wallet events out to a fixed handler list.
// Handler errors are logged and counted; they never reach the ledger caller.
type WalletNotifier struct {
	log      *logger.Logger
	metrics  *observability.Metrics
	handlers []WalletEventHandler
}

func NewWalletNotifier(log *logger.Logger, metrics *observability.Metrics, handlers ...WalletEventHandler) *WalletNotifier {
	hs := make([]WalletEventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return &WalletNotifier{
		log:      log.With("component", "WalletNotifier"),
		metrics:  metrics,
		handlers: hs,
	}
}

func (n *WalletNotifier) Handlers() []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.handlers))
	for _, h := range n.handlers {
		out = append(out, h.Name())
	}
	return out
}

func (n *WalletNotifier) Dispatch(ctx context.Context, ev WalletEvent) {
	if n == nil {
		return
	}
	for _, h := range n.handlers {
		if err := h.HandleWalletEvent(ctx, ev); err != nil {
			n.log.Warn("wallet event handler failed", "handler", h.Name(), "type", ev.Type, "user_id", ev.UserID, "error", err)
			n.metrics.IncWalletEvent(h.Name(), "error")
			continue
		}
		n.metrics.IncWalletEvent(h.Name(), "ok")
	}
}

type LogWalletEventHandler struct {
	log *logger.Logger
}

func NewLogWalletEventHandler(log *logger.Logger) *LogWalletEventHandler {
	return &LogWalletEventHandler{log: log.With("handler", "wallet_log")}
}

func (h *LogWalletEventHandler) Name() string { return "log" }

func (h *LogWalletEventHandler) HandleWalletEvent(_ context.Context, ev WalletEvent) error {
	h.log.Info("wallet changed",
		"type", ev.Type,
		"user_id", ev.UserID,
		"transaction_type", ev.TransactionType,
		"changes", ev.Changes,
	)
	return nil
}

// JSONPublisher is satisfied by the redis client.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, v any) error
}

type RedisWalletEventHandler struct {
	pub     JSONPublisher
	timeout time.Duration
}

func NewRedisWalletEventHandler(pub JSONPublisher) *RedisWalletEventHandler {
	return &RedisWalletEventHandler{pub: pub, timeout: 2 * time.Second}
}

func (h *RedisWalletEventHandler) Name() string { return "redis" }

func (h *RedisWalletEventHandler) HandleWalletEvent(ctx context.Context, ev WalletEvent) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	defer cancel()
	return h.pub.PublishJSON(ctx, ev)
}
