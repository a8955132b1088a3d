package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleFacilitator = "facilitator"
	RoleStoryteller = "storyteller"
)

// Project groups the stories a family records together.
type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Project) TableName() string { return "project" }

func (p *Project) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProjectMember is a user's role inside a project.
type ProjectMember struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index:idx_project_member_project_user,unique,priority:1" json:"project_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_project_member_project_user,unique,priority:2;index" json:"user_id"`

	// facilitator|storyteller
	Role string `gorm:"column:role;not null" json:"role"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ProjectMember) TableName() string { return "project_member" }

func (m *ProjectMember) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
