package handler

import (
	"errors"
	"net/http"
	"time"

	"backoffice-service/internal/audit"
	"backoffice-service/internal/model"
	"backoffice-service/internal/policy"
	"backoffice-service/pkg/database"
	"backoffice-service/pkg/logger"
	"backoffice-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListUsers lists the users of the caller's own tenant
func ListUsers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("user", "list")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var users []model.User
	if err := database.GetDB().Where("tenant_id = ?", ident.TenantID).Order("created_at desc").Find(&users).Error; err != nil {
		log.Error("Failed to list users", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	return respondData(c, http.StatusOK, echo.Map{"users": users})
}

// UpdateUser applies the user field policy: self may change full_name,
// an admin of the target's tenant may change full_name, role and
// is_active, with role changes between tenant admins blocked
func UpdateUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("user", "update")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid user ID")
	}

	var req policy.UserUpdate
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	var user model.User
	if err := database.GetDB().First(&user, id).Error; err != nil {
		return respondError(c, http.StatusNotFound, "User not found")
	}

	updates, err := policy.UserUpdates(ident, &user, &req)
	if err != nil {
		switch {
		case errors.Is(err, policy.ErrCrossTenant):
			prometheus.RecordAuthError("user_access_denied")
			return respondError(c, http.StatusForbidden, "Unauthorized")
		case errors.Is(err, policy.ErrPeerAdminRole):
			prometheus.RecordAuthError("peer_admin_role_change")
			return respondError(c, http.StatusForbidden, "Cannot change role of another tenant admin")
		case errors.Is(err, policy.ErrSelfRoleChange):
			prometheus.RecordAuthError("self_role_change")
			return respondError(c, http.StatusForbidden, "Cannot change own role")
		case errors.Is(err, policy.ErrInvalidRole):
			return respondError(c, http.StatusBadRequest, "Invalid role")
		case errors.Is(err, policy.ErrNoFields):
			return respondError(c, http.StatusForbidden, "No fields allowed to update")
		default:
			prometheus.RecordAuthError("user_field_denied")
			return respondError(c, http.StatusForbidden, "Unauthorized")
		}
	}

	if err := database.GetDB().Model(&user).Updates(updates).Error; err != nil {
		log.Error("Failed to update user", zap.Uint("user_id", user.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	audit.Record(c, ident, "Update User", "User", user.ID)

	log.Info("User updated", zap.Uint("user_id", user.ID))
	return respondMessage(c, http.StatusOK, "User updated successfully", user)
}

// DeleteUser removes a user. Their task assignments are nulled out, never
// deleted with them. Tenant admins cannot delete themselves.
func DeleteUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("user", "delete")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid user ID")
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	var user model.User
	if err := database.GetDB().First(&user, id).Error; err != nil {
		return respondError(c, http.StatusNotFound, "User not found")
	}

	if !policy.CanAccessTenant(ident, user.TenantID) {
		prometheus.RecordAuthError("user_access_denied")
		return respondError(c, http.StatusForbidden, "Not authorized for this tenant")
	}

	if ident.UserID == user.ID {
		prometheus.RecordAuthError("self_delete")
		return respondError(c, http.StatusForbidden, "Cannot delete self")
	}

	if !policy.CanDeleteUser(ident, &user) {
		prometheus.RecordAuthError("user_delete_denied")
		return respondError(c, http.StatusForbidden, "Not authorized")
	}

	if err := database.GetDB().Model(&model.Task{}).Where("assigned_to = ?", user.ID).Update("assigned_to", nil).Error; err != nil {
		log.Error("Failed to unassign tasks", zap.Uint("user_id", user.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	if err := database.GetDB().Delete(&user).Error; err != nil {
		log.Error("Failed to delete user", zap.Uint("user_id", user.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	audit.Record(c, ident, "Delete User", "User", user.ID)

	log.Info("User deleted", zap.Uint("user_id", user.ID), zap.Uint("tenant_id", user.TenantID))
	return respondMessage(c, http.StatusOK, "User deleted successfully", nil)
}
