package observability

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	searchRequests *CounterVec
	searchLatency  *HistogramVec
	searchResults  *HistogramVec
	reindexed      *CounterVec

	ledgerOps      *CounterVec
	ledgerLatency  *HistogramVec
	ledgerAmount   *CounterVec
	aggConflicts   *CounterVec
	aggRetries     *CounterVec
	walletEvents   *CounterVec
	analyticsDrops *Counter

	dbStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry once. It returns nil when metrics
// are disabled; every Metrics method is nil-safe.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

// New returns a standalone registry, independent of the global instance.
func New() *Metrics {
	latency := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	return &Metrics{
		apiRequests: NewCounterVec("sk_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("sk_api_request_duration_seconds", "API request latency in seconds.", []string{"method", "route", "status"}, latency),
		apiInflight: NewGauge("sk_api_inflight_requests", "In-flight API requests."),

		searchRequests: NewCounterVec("sk_search_requests_total", "Story searches by backend and status.", []string{"backend", "status"}),
		searchLatency:  NewHistogramVec("sk_search_duration_seconds", "Story search latency in seconds.", []string{"backend"}, latency),
		searchResults:  NewHistogramVec("sk_search_result_count", "Total matches per search.", []string{"backend"}, []float64{0, 1, 5, 10, 20, 50, 100, 500}),
		reindexed:      NewCounterVec("sk_search_reindexed_stories_total", "Stories reindexed by scope.", []string{"scope"}),

		ledgerOps:      NewCounterVec("sk_ledger_operations_total", "Ledger operations by op and status.", []string{"op", "status"}),
		ledgerLatency:  NewHistogramVec("sk_ledger_operation_duration_seconds", "Ledger operation latency in seconds.", []string{"op"}, latency),
		ledgerAmount:   NewCounterVec("sk_ledger_units_total", "Resource units moved by resource type and direction.", []string{"resource_type", "direction"}),
		aggConflicts:   NewCounterVec("sk_aggregate_conflicts_total", "Optimistic concurrency conflicts by aggregate operation.", []string{"op"}),
		aggRetries:     NewCounterVec("sk_aggregate_retries_total", "Retried aggregate operations.", []string{"op"}),
		walletEvents:   NewCounterVec("sk_wallet_events_total", "Wallet events dispatched by handler and status.", []string{"handler", "status"}),
		analyticsDrops: NewCounter("sk_search_analytics_dropped_total", "Search analytics rows that failed to persist."),

		dbStats:   NewGaugeVec("sk_db_stats", "Database connection pool stats.", []string{"metric"}),
		redisUp:   NewGauge("sk_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPing: NewGauge("sk_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.searchRequests, m.searchLatency, m.searchResults, m.reindexed,
		m.ledgerOps, m.ledgerLatency, m.ledgerAmount,
		m.aggConflicts, m.aggRetries, m.walletEvents, m.analyticsDrops,
		m.dbStats, m.redisUp, m.redisPing,
	}
	for _, c := range all {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

func (m *Metrics) ObserveSearch(backend, status string, total int64, dur time.Duration) {
	if m == nil {
		return
	}
	m.searchRequests.Inc(backend, status)
	m.searchLatency.Observe(dur.Seconds(), backend)
	if status == "ok" {
		m.searchResults.Observe(float64(total), backend)
	}
}

func (m *Metrics) SearchRequests(backend, status string) float64 {
	if m == nil {
		return 0
	}
	return m.searchRequests.Value(backend, status)
}

func (m *Metrics) ObserveReindex(scope string, n int64) {
	if m == nil {
		return
	}
	m.reindexed.Add(float64(n), scope)
}

func (m *Metrics) ObserveLedger(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.ledgerOps.Inc(op, status)
	m.ledgerLatency.Observe(dur.Seconds(), op)
}

func (m *Metrics) LedgerOps(op, status string) float64 {
	if m == nil {
		return 0
	}
	return m.ledgerOps.Value(op, status)
}

func (m *Metrics) AddLedgerUnits(resourceType, direction string, amount int) {
	if m == nil || amount == 0 {
		return
	}
	if amount < 0 {
		amount = -amount
	}
	m.ledgerAmount.Add(float64(amount), resourceType, direction)
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m == nil {
		return
	}
	m.aggConflicts.Inc(op)
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m == nil {
		return
	}
	m.aggRetries.Inc(op)
}

func (m *Metrics) IncWalletEvent(handler, status string) {
	if m == nil {
		return
	}
	m.walletEvents.Inc(handler, status)
}

func (m *Metrics) IncAnalyticsDropped() {
	if m == nil {
		return
	}
	m.analyticsDrops.Add(1)
}

// DefaultScrapeInterval is used when a collector is started with a
// non-positive interval.
const DefaultScrapeInterval = 10 * time.Second

// poll runs fn every interval until ctx ends.
func poll(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		interval = DefaultScrapeInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// StartDBCollector samples connection pool stats into sk_db_stats.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if log == nil {
		log = logger.Nop()
	}
	poll(ctx, interval, func() {
		sqlDB, err := db.DB()
		if err != nil {
			log.Warn("metrics: db stats unavailable", "error", err)
			return
		}
		m.recordPoolStats(sqlDB.Stats())
	})
}

func (m *Metrics) recordPoolStats(st sql.DBStats) {
	for name, v := range map[string]float64{
		"open_connections":      float64(st.OpenConnections),
		"in_use":                float64(st.InUse),
		"idle":                  float64(st.Idle),
		"wait_count":            float64(st.WaitCount),
		"wait_duration_seconds": st.WaitDuration.Seconds(),
		"max_open_connections":  float64(st.MaxOpenConnections),
	} {
		m.dbStats.Set(v, name)
	}
}

// StartRedisCollector pings through the caller's client; it never closes it.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if log == nil {
		log = logger.Nop()
	}
	poll(ctx, interval, func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			log.Warn("metrics: redis ping failed", "error", err)
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}
