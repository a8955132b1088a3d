package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/storykeep-backend/internal/data/repos"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

type Repos struct {
	Story           repos.StoryRepo
	Project         repos.ProjectRepo
	ProjectMember   repos.ProjectMemberRepo
	SearchAnalytics repos.SearchAnalyticsRepo
	Wallet          repos.ResourceWalletRepo
	SeatTransaction repos.SeatTransactionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Story:           repos.NewStoryRepo(db, log),
		Project:         repos.NewProjectRepo(db, log),
		ProjectMember:   repos.NewProjectMemberRepo(db, log),
		SearchAnalytics: repos.NewSearchAnalyticsRepo(db, log),
		Wallet:          repos.NewResourceWalletRepo(db, log),
		SeatTransaction: repos.NewSeatTransactionRepo(db, log),
	}
}
