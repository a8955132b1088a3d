package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/storykeep-backend/internal/data/aggregates"
	"github.com/yungbote/storykeep-backend/internal/data/search"
	"github.com/yungbote/storykeep-backend/internal/observability"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
	"github.com/yungbote/storykeep-backend/internal/services"
)

type Services struct {
	Search services.SearchService
	Ledger services.LedgerService

	WalletNotifier *services.WalletNotifier
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repoSet Repos, clients Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	strategy := search.NewStrategy(db, log)
	log.Info("search backend selected", "backend", strategy.Name())

	var cache services.SuggestionCache
	handlers := []services.WalletEventHandler{services.NewLogWalletEventHandler(log)}
	if clients.Redis != nil {
		cache = services.NewRedisSuggestionCache(log, clients.Redis.Raw(), cfg.SuggestionCacheTTL)
		handlers = append(handlers, services.NewRedisWalletEventHandler(clients.Redis))
	}

	searchSvc := services.NewSearchService(
		log,
		services.SearchConfig{DefaultLimit: cfg.SearchDefaultLimit, MaxLimit: cfg.SearchMaxLimit},
		strategy,
		repoSet.Story,
		repoSet.SearchAnalytics,
		cache,
		metrics,
	)

	walletAgg := aggregates.NewWalletAggregate(aggregates.WalletAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
			Retry: aggregates.RetryPolicy{
				MaxAttempts: cfg.LedgerMaxAttempts,
				Backoff:     cfg.LedgerRetryBackoff,
			},
		},
		Wallets:      repoSet.Wallet,
		Transactions: repoSet.SeatTransaction,
	})
	notifier := services.NewWalletNotifier(log, metrics, handlers...)
	ledgerSvc := services.NewLedgerService(log, walletAgg, repoSet.Wallet, repoSet.SeatTransaction, notifier, metrics)

	return Services{
		Search:         searchSvc,
		Ledger:         ledgerSvc,
		WalletNotifier: notifier,
	}
}
