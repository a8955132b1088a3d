package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/storykeep-backend/internal/http/handlers"
	httpMW "github.com/yungbote/storykeep-backend/internal/http/middleware"
	"github.com/yungbote/storykeep-backend/internal/observability"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	ProjectAccess *httpMW.ProjectAccessMiddleware

	SearchHandler *httpH.SearchHandler
	WalletHandler *httpH.WalletHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.RequestIDs())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	api.Use(httpMW.RequireUser())
	{
		// Search (project scoped)
		if cfg.SearchHandler != nil && cfg.ProjectAccess != nil {
			project := api.Group("/projects/:projectId/search")
			member := cfg.ProjectAccess.RequireMember()
			facilitator := cfg.ProjectAccess.RequireFacilitator()

			project.GET("", member, cfg.SearchHandler.Search)
			project.GET("/suggestions", member, cfg.SearchHandler.Suggestions)
			project.POST("/click", member, cfg.SearchHandler.Click)
			project.GET("/analytics", facilitator, cfg.SearchHandler.Analytics)
			project.POST("/reindex", facilitator, cfg.SearchHandler.Reindex)
		}

		// Wallet (caller's own)
		if cfg.WalletHandler != nil {
			api.GET("/wallet", cfg.WalletHandler.GetWallet)
			api.GET("/wallet/transactions", cfg.WalletHandler.ListTransactions)
			api.GET("/wallet/stats", cfg.WalletHandler.Stats)
		}
	}

	return r
}
