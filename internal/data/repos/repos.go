package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/storykeep-backend/internal/data/repos/analytics"
	"github.com/yungbote/storykeep-backend/internal/data/repos/billing"
	"github.com/yungbote/storykeep-backend/internal/data/repos/stories"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

type StoryRepo = stories.StoryRepo
type ProjectRepo = stories.ProjectRepo
type ProjectMemberRepo = stories.ProjectMemberRepo

type SearchAnalyticsRepo = analytics.SearchAnalyticsRepo

type ResourceWalletRepo = billing.ResourceWalletRepo
type SeatTransactionRepo = billing.SeatTransactionRepo

func NewStoryRepo(db *gorm.DB, baseLog *logger.Logger) StoryRepo {
	return stories.NewStoryRepo(db, baseLog)
}
func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	return stories.NewProjectRepo(db, baseLog)
}
func NewProjectMemberRepo(db *gorm.DB, baseLog *logger.Logger) ProjectMemberRepo {
	return stories.NewProjectMemberRepo(db, baseLog)
}

func NewSearchAnalyticsRepo(db *gorm.DB, baseLog *logger.Logger) SearchAnalyticsRepo {
	return analytics.NewSearchAnalyticsRepo(db, baseLog)
}

func NewResourceWalletRepo(db *gorm.DB, baseLog *logger.Logger) ResourceWalletRepo {
	return billing.NewResourceWalletRepo(db, baseLog)
}
func NewSeatTransactionRepo(db *gorm.DB, baseLog *logger.Logger) SeatTransactionRepo {
	return billing.NewSeatTransactionRepo(db, baseLog)
}
