package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	httpserver "github.com/yungbote/storykeep-backend/internal/http"
	httpH "github.com/yungbote/storykeep-backend/internal/http/handlers"
	httpMW "github.com/yungbote/storykeep-backend/internal/http/middleware"
	"github.com/yungbote/storykeep-backend/internal/observability"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

type Handlers struct {
	Search *httpH.SearchHandler
	Wallet *httpH.WalletHandler
	Health *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, serviceSet Services) Handlers {
	log.Info("Wiring handlers...")
	var pinger httpH.Pinger
	if sqlDB, err := db.DB(); err == nil {
		pinger = sqlDB
	} else {
		log.Warn("readiness probe without db handle", "error", err)
	}
	return Handlers{
		Search: httpH.NewSearchHandler(serviceSet.Search),
		Wallet: httpH.NewWalletHandler(serviceSet.Ledger),
		Health: httpH.NewHealthHandler(pinger),
	}
}

type Middleware struct {
	ProjectAccess *httpMW.ProjectAccessMiddleware
}

func wireMiddleware(log *logger.Logger, repoSet Repos) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		ProjectAccess: httpMW.NewProjectAccessMiddleware(log, repoSet.ProjectMember),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlerSet Handlers, mw Middleware) *gin.Engine {
	log.Info("Wiring router...")
	return httpserver.NewRouter(httpserver.RouterConfig{
		Log:           log,
		Metrics:       metrics,
		ServiceName:   cfg.ServiceName,
		CORSOrigins:   cfg.CORSOrigins,
		ProjectAccess: mw.ProjectAccess,
		SearchHandler: handlerSet.Search,
		WalletHandler: handlerSet.Wallet,
		HealthHandler: handlerSet.Health,
	})
}
