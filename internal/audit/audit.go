// Package audit appends best-effort audit log rows for mutating actions.
// A failed write is logged and swallowed: it must never fail the primary
// operation, and it shares no transaction with it.
package audit

import (
	"backoffice-service/internal/model"
	"backoffice-service/internal/policy"
	"backoffice-service/pkg/database"
	"backoffice-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Record appends an audit log entry for the given action
func Record(c echo.Context, ident *policy.Identity, action, entityType string, entityID uint) {
	entry := model.AuditLog{
		TenantID:   ident.TenantID,
		UserID:     ident.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  c.RealIP(),
	}

	if err := database.GetDB().Create(&entry).Error; err != nil {
		logger.FromContext(c).Warn("Failed to write audit log entry",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.Uint("entity_id", entityID),
			zap.Error(err))
	}
}
