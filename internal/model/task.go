package model

import "time"

// Task statuses and priorities. Flat sets, no transition graph.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"

	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

// Task belongs to a project. TenantID is a denormalized copy of the
// project's tenant so scope checks stay a single-row lookup. AssignedTo,
// when set, must reference a user of the same tenant.
type Task struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	ProjectID   uint       `json:"project_id" gorm:"index;not null"`
	TenantID    uint       `json:"tenant_id" gorm:"index;not null"`
	Title       string     `json:"title" gorm:"type:varchar(200);not null"`
	Description string     `json:"description" gorm:"type:text"`
	Status      string     `json:"status" gorm:"type:varchar(20);not null;default:'todo'"`
	Priority    string     `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	AssignedTo  *uint      `json:"assigned_to" gorm:"index"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Assignee *User `json:"assignee,omitempty" gorm:"foreignKey:AssignedTo"`
}

// ValidTaskStatus reports whether s is a member of the task status enum
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// ValidTaskPriority reports whether p is a member of the priority enum
func ValidTaskPriority(p string) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}
