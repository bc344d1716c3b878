package model

import "time"

// User roles
const (
	RoleSuperAdmin  = "super_admin"
	RoleTenantAdmin = "tenant_admin"
	RoleUser        = "user"
)

// User represents a user account within a tenant. Email uniqueness is
// scoped to the owning tenant, not global.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TenantID     uint      `json:"tenant_id" gorm:"not null;uniqueIndex:idx_users_tenant_email"`
	Email        string    `json:"email" gorm:"type:varchar(100);not null;uniqueIndex:idx_users_tenant_email"`
	FullName     string    `json:"full_name" gorm:"type:varchar(100)"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"`
	Role         string    `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	IsActive     bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AssignableRole reports whether a role may be granted through the API.
// super_admin is seeded, never assigned.
func AssignableRole(role string) bool {
	return role == RoleTenantAdmin || role == RoleUser
}
