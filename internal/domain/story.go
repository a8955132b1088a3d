package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StoryStatusProcessing = "processing"
	StoryStatusReady      = "ready"
	StoryStatusFailed     = "failed"
)

// Story is a recorded audio story. Only ready stories are searchable.
//
// SearchContent is the fallback search representation. On Postgres the
// search_vector column is maintained outside the struct (see data/db).
type Story struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_story_project_status,priority:1" json:"project_id"`
	ChapterID     *uuid.UUID `gorm:"type:uuid;index" json:"chapter_id,omitempty"`
	FacilitatorID *uuid.UUID `gorm:"type:uuid;index" json:"facilitator_id,omitempty"`
	StorytellerID *uuid.UUID `gorm:"type:uuid;index" json:"storyteller_id,omitempty"`

	Title      string `gorm:"column:title" json:"title,omitempty"`
	Transcript string `gorm:"column:transcript;type:text" json:"transcript,omitempty"`

	// processing|ready|failed
	Status string `gorm:"column:status;not null;index:idx_story_project_status,priority:2" json:"status"`

	SearchContent string `gorm:"column:search_content;type:text" json:"-"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Story) TableName() string { return "story" }

func (s *Story) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Story) BeforeSave(*gorm.DB) error {
	s.SearchContent = BuildSearchContent(s.Title, s.Transcript)
	return nil
}

// BuildSearchContent is the plain concatenation used by the substring backend.
// It matches the SQL expression used by reindexing.
func BuildSearchContent(title, transcript string) string {
	return strings.ToLower(title + " " + transcript)
}

func IsKnownStoryStatus(status string) bool {
	switch status {
	case StoryStatusProcessing, StoryStatusReady, StoryStatusFailed:
		return true
	default:
		return false
	}
}
