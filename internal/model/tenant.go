package model

import "time"

// Tenant subscription defaults applied at registration time
const (
	DefaultSubscriptionPlan = "free"
	DefaultMaxUsers         = 5
	DefaultMaxProjects      = 3
)

// Tenant represents an isolated customer account. Every other row in the
// system is partitioned by tenant_id. Tenants are never hard-deleted.
type Tenant struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Name             string    `json:"name" gorm:"type:varchar(100);not null"`
	Subdomain        string    `json:"subdomain" gorm:"type:varchar(63);uniqueIndex;not null"`
	Status           string    `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	SubscriptionPlan string    `json:"subscription_plan" gorm:"type:varchar(20);not null;default:'free'"`
	MaxUsers         int       `json:"max_users" gorm:"not null;default:5"`
	MaxProjects      int       `json:"max_projects" gorm:"not null;default:3"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
