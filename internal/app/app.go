package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	httpserver "github.com/yungbote/storykeep-backend/internal/http"
	"github.com/yungbote/storykeep-backend/internal/observability"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

// New loads configuration from the environment and builds the app.
func New() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := logger.New(cfg.LogMode, logger.WithRedaction(cfg.LogRedaction, cfg.LogHashSalt))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	theDB, err := openDatabase(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	clientSet, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	metrics := observability.Init(log, cfg.MetricsEnabled)

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clientSet, metrics)
	handlerset := wireHandlers(log, theDB, serviceset)
	middleware := wireMiddleware(log, reposet)
	router := wireRouter(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Metrics:  metrics,
		Clients:  clientSet,
		Repos:    reposet,
		Services: serviceset,
	}, nil
}

// Start launches background loops: tracing, pool collectors and the
// analytics retention purge. Calling it twice is a no-op.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.otelShutdown = observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		Enabled:     a.Cfg.Tracing.Enabled,
		ServiceName: a.Cfg.ServiceName,
		Environment: a.Cfg.Environment,
		Version:     a.Cfg.Version,
		Endpoint:    a.Cfg.Tracing.Endpoint,
		Insecure:    a.Cfg.Tracing.Insecure,
		Headers:     a.Cfg.Tracing.Headers,
		SampleRatio: a.Cfg.Tracing.SampleRatio,
	})

	if a.Metrics != nil {
		a.Metrics.StartDBCollector(ctx, a.Log, a.DB, a.Cfg.MetricsScrapeInterval)
		if a.Clients.Redis != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis.Raw(), a.Cfg.MetricsScrapeInterval)
		}
	}

	if a.Cfg.AnalyticsRetention > 0 {
		go a.runAnalyticsPurge(ctx)
	}
}

func (a *App) runAnalyticsPurge(ctx context.Context) {
	log := a.Log.With("worker", "analytics_purge")
	ticker := time.NewTicker(a.Cfg.AnalyticsPurgeEvery)
	defer ticker.Stop()
	for {
		a.purgeAnalyticsOnce(ctx, log)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) purgeAnalyticsOnce(ctx context.Context, log *logger.Logger) {
	cutoff := time.Now().UTC().Add(-a.Cfg.AnalyticsRetention)
	n, err := a.Services.Search.PurgeAnalytics(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("analytics purge failed", "error", err)
		}
		return
	}
	if n > 0 {
		log.Info("analytics purged", "deleted", n, "before", cutoff)
	}
}

// Run serves HTTP until ctx is cancelled. An empty addr uses the configured port.
func (a *App) Run(ctx context.Context, addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	if addr == "" {
		addr = net.JoinHostPort("", a.Cfg.Port)
	}
	a.Log.Info("listening", "addr", addr)
	return httpserver.NewServer(a.Router).Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
		a.otelShutdown = nil
	}
	a.Clients.Close()
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
