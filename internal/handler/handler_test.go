package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"backoffice-service/internal/model"
	"backoffice-service/internal/router"
	"backoffice-service/pkg/config"
	"backoffice-service/pkg/database"
	"backoffice-service/pkg/jwtutil"
	"backoffice-service/prometheus"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testPassword = "password123"

// setupTest wires a fresh sqlite store into the global database handle and
// returns the fully assembled router
func setupTest(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db

	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
	prometheus.InitMetrics(&config.Config{Metrics: config.MetricsConfig{Prefix: "backoffice"}})

	return db
}

func newRouter() http.Handler {
	return router.New(&config.Config{
		Server: config.ServerConfig{AllowOrigin: "http://localhost:3000"},
	})
}

func createTenant(t *testing.T, subdomain string, maxUsers, maxProjects int) *model.Tenant {
	t.Helper()
	tenant := model.Tenant{
		Name:             subdomain,
		Subdomain:        subdomain,
		Status:           "active",
		SubscriptionPlan: model.DefaultSubscriptionPlan,
		MaxUsers:         maxUsers,
		MaxProjects:      maxProjects,
	}
	require.NoError(t, database.GetDB().Create(&tenant).Error)
	return &tenant
}

func createUser(t *testing.T, tenantID uint, email, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := model.User{
		TenantID:     tenantID,
		Email:        email,
		FullName:     email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, database.GetDB().Create(&user).Error)
	return &user
}

func createProject(t *testing.T, tenantID, createdBy uint, name string) *model.Project {
	t.Helper()
	project := model.Project{
		TenantID:  tenantID,
		Name:      name,
		Status:    model.ProjectStatusActive,
		CreatedBy: createdBy,
	}
	require.NoError(t, database.GetDB().Create(&project).Error)
	return &project
}

func createTask(t *testing.T, project *model.Project, title, status, priority string) *model.Task {
	t.Helper()
	task := model.Task{
		ProjectID: project.ID,
		TenantID:  project.TenantID,
		Title:     title,
		Status:    status,
		Priority:  priority,
	}
	require.NoError(t, database.GetDB().Create(&task).Error)
	return &task
}

func tokenFor(t *testing.T, user *model.User) string {
	t.Helper()
	token, err := jwtutil.GenerateToken(user.ID, user.TenantID, user.Role, user.Email)
	require.NoError(t, err)
	return token
}

// doRequest performs a JSON request against a fresh router instance and
// returns the recorded response
func doRequest(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, req)
	return rec
}

// envelope decodes the standard response body
type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
