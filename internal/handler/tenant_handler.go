package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"backoffice-service/internal/audit"
	"backoffice-service/internal/model"
	"backoffice-service/internal/policy"
	"backoffice-service/pkg/database"
	"backoffice-service/pkg/logger"
	"backoffice-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	return uint(id), err
}

// GetTenant returns tenant details plus row-count stats
func GetTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("tenant", "get")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid tenant ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, id).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Tenant not found")
	}

	if !policy.CanAccessTenant(ident, tenant.ID) {
		log.Warn("Cross-tenant tenant access attempt",
			zap.Uint("user_id", ident.UserID),
			zap.Uint("tenant_id", tenant.ID))
		prometheus.RecordAuthError("tenant_access_denied")
		return respondError(c, http.StatusForbidden, "Unauthorized access")
	}

	var totalUsers, totalProjects, totalTasks int64
	if err := database.GetDB().Model(&model.User{}).Where("tenant_id = ?", tenant.ID).Count(&totalUsers).Error; err != nil {
		log.Error("Failed to count tenant users", zap.Uint("tenant_id", tenant.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}
	if err := database.GetDB().Model(&model.Project{}).Where("tenant_id = ?", tenant.ID).Count(&totalProjects).Error; err != nil {
		log.Error("Failed to count tenant projects", zap.Uint("tenant_id", tenant.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}
	if err := database.GetDB().Model(&model.Task{}).Where("tenant_id = ?", tenant.ID).Count(&totalTasks).Error; err != nil {
		log.Error("Failed to count tenant tasks", zap.Uint("tenant_id", tenant.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	return respondData(c, http.StatusOK, echo.Map{
		"tenant": tenant,
		"stats": echo.Map{
			"total_users":    totalUsers,
			"total_projects": totalProjects,
			"total_tasks":    totalTasks,
		},
	})
}

// UpdateTenant applies the tenant field policy: name for the owning
// tenant_admin, subscription fields for super_admin only
func UpdateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("tenant", "update")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid tenant ID")
	}

	var req policy.TenantUpdate
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request")
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, id).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Tenant not found")
	}

	updates, err := policy.TenantUpdates(ident, tenant.ID, &req)
	if err != nil {
		switch {
		case errors.Is(err, policy.ErrCrossTenant):
			prometheus.RecordAuthError("tenant_access_denied")
			return respondError(c, http.StatusForbidden, "Unauthorized")
		case errors.Is(err, policy.ErrForbiddenField):
			log.Warn("Restricted tenant field update attempt",
				zap.Uint("user_id", ident.UserID),
				zap.Uint("tenant_id", tenant.ID))
			prometheus.RecordAuthError("restricted_field")
			return respondError(c, http.StatusForbidden, "Cannot update restricted fields")
		default:
			return respondError(c, http.StatusBadRequest, "No valid fields to update")
		}
	}

	if err := database.GetDB().Model(&tenant).Updates(updates).Error; err != nil {
		log.Error("Failed to update tenant", zap.Uint("tenant_id", tenant.ID), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	audit.Record(c, ident, "Update Tenant", "Tenant", tenant.ID)

	log.Info("Tenant updated", zap.Uint("tenant_id", tenant.ID))
	return respondMessage(c, http.StatusOK, "Tenant updated successfully", tenant)
}

// ListTenants lists every tenant; super_admin only
func ListTenants(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("tenant", "list")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	if !ident.IsSuperAdmin() {
		prometheus.RecordAuthError("tenant_list_denied")
		return respondError(c, http.StatusForbidden, "Not authorized")
	}

	page, limit, offset := paging(c, 10)
	status := c.QueryParam("status")
	plan := c.QueryParam("subscription_plan")

	filtered := func() *gorm.DB {
		q := database.GetDB().Model(&model.Tenant{})
		if status != "" {
			q = q.Where("status = ?", status)
		}
		if plan != "" {
			q = q.Where("subscription_plan = ?", plan)
		}
		return q
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		log.Error("Failed to count tenants", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	var tenants []model.Tenant
	if err := filtered().Order("created_at desc").Limit(limit).Offset(offset).Find(&tenants).Error; err != nil {
		log.Error("Failed to list tenants", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	return respondData(c, http.StatusOK, echo.Map{
		"tenants":    tenants,
		"pagination": newPagination(page, limit, total),
	})
}

// AddTenantUser creates a user inside the tenant, subject to the
// max_users quota. The quota is count-then-compare; concurrent requests
// may overshoot it slightly, which is accepted.
func AddTenantUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("user", "create")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid tenant ID")
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, id).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Tenant not found")
	}

	if !policy.CanManageTenantUsers(ident, tenant.ID) {
		log.Warn("Unauthorized user creation attempt",
			zap.Uint("user_id", ident.UserID),
			zap.Uint("tenant_id", tenant.ID))
		prometheus.RecordAuthError("user_create_denied")
		return respondError(c, http.StatusForbidden, "Not authorized")
	}

	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return respondError(c, http.StatusBadRequest, "Email, password and full_name are required")
	}
	if len(req.Password) < 8 {
		return respondError(c, http.StatusBadRequest, "Password must be at least 8 characters")
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	if !model.AssignableRole(req.Role) {
		return respondError(c, http.StatusBadRequest, "Invalid role")
	}

	var userCount int64
	if err := database.GetDB().Model(&model.User{}).Where("tenant_id = ?", tenant.ID).Count(&userCount).Error; err != nil {
		log.Error("Failed to count tenant users", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}
	if userCount >= int64(tenant.MaxUsers) {
		log.Warn("User quota reached",
			zap.Uint("tenant_id", tenant.ID),
			zap.Int64("count", userCount),
			zap.Int("max_users", tenant.MaxUsers))
		prometheus.RecordQuotaRejection("users")
		return respondError(c, http.StatusForbidden, "Subscription user limit reached")
	}

	var emailCount int64
	database.GetDB().Model(&model.User{}).Where("tenant_id = ? AND email = ?", tenant.ID, req.Email).Count(&emailCount)
	if emailCount > 0 {
		return respondError(c, http.StatusConflict, "Email already exists in this tenant")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	user := model.User{
		TenantID:     tenant.ID,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(hash),
		Role:         req.Role,
		IsActive:     true,
	}
	if err := database.GetDB().Create(&user).Error; err != nil {
		// lost a race with a concurrent insert past the pre-check
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return respondError(c, http.StatusConflict, "Email already exists in this tenant")
		}
		log.Error("Failed to create user", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	audit.Record(c, ident, "Add User", "User", user.ID)

	log.Info("User created",
		zap.Uint("user_id", user.ID),
		zap.Uint("tenant_id", tenant.ID),
		zap.String("role", user.Role))

	return respondMessage(c, http.StatusCreated, "User created successfully", user)
}

// ListTenantUsers lists the tenant's users with optional search and role
// filters
func ListTenantUsers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("user", "list")

	ident, ok := policy.FromContext(c)
	if !ok {
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid tenant ID")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, id).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Tenant not found")
	}

	if !policy.CanAccessTenant(ident, tenant.ID) {
		prometheus.RecordAuthError("tenant_access_denied")
		return respondError(c, http.StatusForbidden, "Unauthorized")
	}

	page, limit, offset := paging(c, 50)
	search := c.QueryParam("search")
	role := c.QueryParam("role")

	filtered := func() *gorm.DB {
		q := database.GetDB().Model(&model.User{}).Where("tenant_id = ?", tenant.ID)
		if search != "" {
			pattern := "%" + strings.ToLower(search) + "%"
			q = q.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", pattern, pattern)
		}
		if role != "" {
			q = q.Where("role = ?", role)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		log.Error("Failed to count tenant users", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	var users []model.User
	if err := filtered().Order("created_at desc").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		log.Error("Failed to list tenant users", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	return respondData(c, http.StatusOK, echo.Map{
		"users":      users,
		"total":      total,
		"pagination": newPagination(page, limit, total),
	})
}
