package model

import "time"

// Project statuses. The set is flat: any status may move to any other.
const (
	ProjectStatusActive    = "active"
	ProjectStatusArchived  = "archived"
	ProjectStatusCompleted = "completed"
)

// Project belongs to a tenant and is counted against the tenant's
// max_projects quota. Deleting a project deletes its tasks.
type Project struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	TenantID    uint      `json:"tenant_id" gorm:"index;not null"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null"`
	Description string    `json:"description" gorm:"type:text"`
	Status      string    `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	CreatedBy   uint      `json:"created_by" gorm:"index;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Creator User `json:"-" gorm:"foreignKey:CreatedBy"`
}

// ValidProjectStatus reports whether s is a member of the project status enum
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusArchived, ProjectStatusCompleted:
		return true
	}
	return false
}
