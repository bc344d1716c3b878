package model

import "time"

// AuditLog is an append-only record of mutating actions. Writes are
// best-effort: a failed insert never fails the primary operation, and no
// endpoint reads these rows back.
type AuditLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TenantID   uint      `json:"tenant_id" gorm:"index;not null"`
	UserID     uint      `json:"user_id" gorm:"not null"`
	Action     string    `json:"action" gorm:"type:varchar(50);not null"`
	EntityType string    `json:"entity_type" gorm:"type:varchar(50)"`
	EntityID   uint      `json:"entity_id"`
	IPAddress  string    `json:"ip_address" gorm:"type:varchar(45)"`
	CreatedAt  time.Time `json:"created_at"`
}
