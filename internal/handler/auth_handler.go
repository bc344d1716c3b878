package handler

import (
	"errors"
	"net/http"
	"time"

	"backoffice-service/internal/audit"
	"backoffice-service/internal/model"
	"backoffice-service/internal/policy"
	"backoffice-service/pkg/database"
	"backoffice-service/pkg/jwtutil"
	"backoffice-service/pkg/logger"
	"backoffice-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Login failures share one message so the response never reveals whether
// the subdomain, the email or the password was wrong.
const invalidCredentials = "Invalid credentials"

// RegisterTenant handles tenant registration: the tenant and its first
// admin user are created atomically, both rows or neither.
func RegisterTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.TenantRegistrationCounter.Inc()

	var req struct {
		TenantName    string `json:"tenant_name"`
		Subdomain     string `json:"subdomain"`
		AdminEmail    string `json:"admin_email"`
		AdminPassword string `json:"admin_password"`
		AdminFullName string `json:"admin_full_name"`
	}

	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse tenant registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return respondError(c, http.StatusBadRequest, "Invalid request")
	}

	if req.TenantName == "" || req.Subdomain == "" || req.AdminEmail == "" || req.AdminPassword == "" || req.AdminFullName == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return respondError(c, http.StatusBadRequest, "All fields are required")
	}

	if len(req.AdminPassword) < 8 {
		prometheus.RecordAuthError("weak_password")
		return respondError(c, http.StatusBadRequest, "Password must be at least 8 characters")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	hash, err := bcrypt.GenerateFromPassword([]byte(req.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	tenant := model.Tenant{
		Name:             req.TenantName,
		Subdomain:        req.Subdomain,
		Status:           "active",
		SubscriptionPlan: model.DefaultSubscriptionPlan,
		MaxUsers:         model.DefaultMaxUsers,
		MaxProjects:      model.DefaultMaxProjects,
	}
	admin := model.User{
		Email:        req.AdminEmail,
		FullName:     req.AdminFullName,
		PasswordHash: string(hash),
		Role:         model.RoleTenantAdmin,
		IsActive:     true,
	}

	// Subdomain uniqueness rests on the unique index alone: a pre-check
	// would still race with a concurrent registration.
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}
		admin.TenantID = tenant.ID
		return tx.Create(&admin).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Warn("Subdomain already exists", zap.String("subdomain", req.Subdomain))
			return respondError(c, http.StatusConflict, "Subdomain already exists")
		}
		log.Error("Tenant registration failed", zap.String("subdomain", req.Subdomain), zap.Error(err))
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	log.Info("Tenant registered",
		zap.Uint("tenant_id", tenant.ID),
		zap.String("subdomain", tenant.Subdomain),
		zap.String("admin_email", admin.Email))

	return respondMessage(c, http.StatusCreated, "Tenant registered successfully", echo.Map{
		"tenant_id":  tenant.ID,
		"subdomain":  tenant.Subdomain,
		"admin_user": admin,
	})
}

// Login authenticates email+password against a tenant chosen by subdomain
// and issues a token carrying {user_id, tenant_id, role}
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		TenantSubdomain string `json:"tenant_subdomain"`
	}

	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return respondError(c, http.StatusBadRequest, "Invalid request")
	}

	if req.Email == "" || req.Password == "" || req.TenantSubdomain == "" {
		prometheus.RecordAuthError("incomplete_login")
		return respondError(c, http.StatusBadRequest, "Email, password and tenant_subdomain are required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var tenant model.Tenant
	if err := database.GetDB().Where("subdomain = ?", req.TenantSubdomain).First(&tenant).Error; err != nil {
		log.Warn("Login against unknown subdomain", zap.String("subdomain", req.TenantSubdomain))
		prometheus.RecordAuthError("tenant_not_found")
		return respondError(c, http.StatusUnauthorized, invalidCredentials)
	}

	var user model.User
	if err := database.GetDB().Where("email = ? AND tenant_id = ?", req.Email, tenant.ID).First(&user).Error; err != nil {
		log.Warn("Login for unknown user", zap.String("email", req.Email), zap.Uint("tenant_id", tenant.ID))
		prometheus.RecordAuthError("user_not_found")
		return respondError(c, http.StatusUnauthorized, invalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn("Login with invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return respondError(c, http.StatusUnauthorized, invalidCredentials)
	}

	if !user.IsActive {
		log.Warn("Login for deactivated user", zap.Uint("user_id", user.ID))
		prometheus.RecordAuthError("user_inactive")
		return respondError(c, http.StatusUnauthorized, invalidCredentials)
	}

	token, err := jwtutil.GenerateToken(user.ID, user.TenantID, user.Role, user.Email)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return respondError(c, http.StatusInternalServerError, "Internal server error")
	}

	prometheus.IncreaseActiveTokens()

	log.Info("User logged in",
		zap.Uint("user_id", user.ID),
		zap.Uint("tenant_id", user.TenantID),
		zap.String("role", user.Role))

	return respondData(c, http.StatusOK, echo.Map{
		"user":       user,
		"token":      token,
		"expires_in": jwtutil.ExpiresIn(),
	})
}

// CurrentUser returns the profile of the authenticated caller
func CurrentUser(c echo.Context) error {
	log := logger.FromContext(c)

	ident, ok := policy.FromContext(c)
	if !ok {
		prometheus.RecordAuthError("missing_identity")
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := database.GetDB().First(&user, ident.UserID).Error; err != nil {
		log.Warn("Current user no longer exists", zap.Uint("user_id", ident.UserID))
		return respondError(c, http.StatusNotFound, "User not found")
	}

	return respondData(c, http.StatusOK, user)
}

// Logout is stateless; it only records the action in the audit log
func Logout(c echo.Context) error {
	ident, ok := policy.FromContext(c)
	if !ok {
		prometheus.RecordAuthError("missing_identity")
		return respondError(c, http.StatusUnauthorized, "Authentication required")
	}

	audit.Record(c, ident, "logout", "User", ident.UserID)
	prometheus.DecreaseActiveTokens()

	return respondMessage(c, http.StatusOK, "Logged out successfully", nil)
}
