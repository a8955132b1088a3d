package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SearchAnalytics is one append-only row per search call.
type SearchAnalytics struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Query     string    `gorm:"column:query;not null;index" json:"query"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index:idx_search_analytics_project_created,priority:1" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	ResultCount  int   `gorm:"column:result_count;not null" json:"result_count"`
	SearchTimeMs int64 `gorm:"column:search_time_ms;not null" json:"search_time_ms"`

	// JSON array of story ids opened from the result list.
	ClickedResults datatypes.JSON `gorm:"column:clicked_results" json:"clicked_results,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_search_analytics_project_created,priority:2" json:"created_at"`
}

func (SearchAnalytics) TableName() string { return "search_analytics" }

func (a *SearchAnalytics) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
