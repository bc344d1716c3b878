package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"backoffice-service/internal/model"
	"backoffice-service/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTenant(t *testing.T) {
	setupTest(t)
	acme := createTenant(t, "acme", 5, 3)
	beta := createTenant(t, "beta", 5, 3)
	admin := createUser(t, acme.ID, "admin@acme.test", model.RoleTenantAdmin)
	createProject(t, acme.ID, admin.ID, "Alpha")

	t.Run("own tenant with stats", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, fmt.Sprintf("/tenants/%d", acme.ID), tokenFor(t, admin), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		env := decode(t, rec)
		stats := env.Data["stats"].(map[string]interface{})
		assert.Equal(t, float64(1), stats["total_users"])
		assert.Equal(t, float64(1), stats["total_projects"])
		assert.Equal(t, float64(0), stats["total_tasks"])
	})

	t.Run("other tenant is forbidden", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, fmt.Sprintf("/tenants/%d", beta.ID), tokenFor(t, admin), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown tenant is not found, even cross-tenant", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, "/tenants/9999", tokenFor(t, admin), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("super admin reads any tenant", func(t *testing.T) {
		system := createTenant(t, "system", 5, 3)
		super := createUser(t, system.ID, "root@system.test", model.RoleSuperAdmin)
		rec := doRequest(t, http.MethodGet, fmt.Sprintf("/tenants/%d", beta.ID), tokenFor(t, super), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("failing stats query is an error, not zeros", func(t *testing.T) {
		require.NoError(t, database.GetDB().Migrator().DropTable(&model.Task{}))

		rec := doRequest(t, http.MethodGet, fmt.Sprintf("/tenants/%d", acme.ID), tokenFor(t, admin), nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestUpdateTenant(t *testing.T) {
	setupTest(t)
	acme := createTenant(t, "acme", 5, 3)
	admin := createUser(t, acme.ID, "admin@acme.test", model.RoleTenantAdmin)
	member := createUser(t, acme.ID, "user@acme.test", model.RoleUser)
	system := createTenant(t, "system", 5, 3)
	super := createUser(t, system.ID, "root@system.test", model.RoleSuperAdmin)

	t.Run("admin renames own tenant", func(t *testing.T) {
		rec := doRequest(t, http.MethodPut, fmt.Sprintf("/tenants/%d", acme.ID), tokenFor(t, admin),
			map[string]interface{}{"name": "Acme Renamed"})
		require.Equal(t, http.StatusOK, rec.Code)

		var tenant model.Tenant
		require.NoError(t, database.GetDB().First(&tenant, acme.ID).Error)
		assert.Equal(t, "Acme Renamed", tenant.Name)
	})

	t.Run("restricted field rejects the whole request", func(t *testing.T) {
		rec := doRequest(t, http.MethodPut, fmt.Sprintf("/tenants/%d", acme.ID), tokenFor(t, admin),
			map[string]interface{}{"name": "Should Not Apply", "max_users": 100})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Cannot update restricted fields", decode(t, rec).Message)

		var tenant model.Tenant
		require.NoError(t, database.GetDB().First(&tenant, acme.ID).Error)
		assert.NotEqual(t, "Should Not Apply", tenant.Name)
		assert.Equal(t, 5, tenant.MaxUsers)
	})

	t.Run("member cannot rename", func(t *testing.T) {
		rec := doRequest(t, http.MethodPut, fmt.Sprintf("/tenants/%d", acme.ID), tokenFor(t, member),
			map[string]interface{}{"name": "Nope"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("super admin sets subscription fields", func(t *testing.T) {
		rec := doRequest(t, http.MethodPut, fmt.Sprintf("/tenants/%d", acme.ID), tokenFor(t, super),
			map[string]interface{}{"subscription_plan": "pro", "max_users": 50, "max_projects": 20})
		require.Equal(t, http.StatusOK, rec.Code)

		var tenant model.Tenant
		require.NoError(t, database.GetDB().First(&tenant, acme.ID).Error)
		assert.Equal(t, "pro", tenant.SubscriptionPlan)
		assert.Equal(t, 50, tenant.MaxUsers)
		assert.Equal(t, 20, tenant.MaxProjects)
	})

	t.Run("empty update", func(t *testing.T) {
		rec := doRequest(t, http.MethodPut, fmt.Sprintf("/tenants/%d", acme.ID), tokenFor(t, admin),
			map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListTenants(t *testing.T) {
	setupTest(t)
	acme := createTenant(t, "acme", 5, 3)
	createTenant(t, "beta", 5, 3)
	admin := createUser(t, acme.ID, "admin@acme.test", model.RoleTenantAdmin)
	system := createTenant(t, "system", 5, 3)
	super := createUser(t, system.ID, "root@system.test", model.RoleSuperAdmin)

	t.Run("super admin lists all", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, "/tenants", tokenFor(t, super), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		env := decode(t, rec)
		tenants := env.Data["tenants"].([]interface{})
		assert.Len(t, tenants, 3)

		pagination := env.Data["pagination"].(map[string]interface{})
		assert.Equal(t, float64(1), pagination["current_page"])
		assert.Equal(t, float64(3), pagination["total"])
	})

	t.Run("filter by subscription plan", func(t *testing.T) {
		require.NoError(t, database.GetDB().Model(&model.Tenant{}).Where("subdomain = ?", "beta").
			Update("subscription_plan", "pro").Error)

		rec := doRequest(t, http.MethodGet, "/tenants?subscription_plan=pro", tokenFor(t, super), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode(t, rec).Data["tenants"].([]interface{}), 1)
	})

	t.Run("tenant admin is refused", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, "/tenants", tokenFor(t, admin), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAddTenantUser(t *testing.T) {
	setupTest(t)
	acme := createTenant(t, "acme", 3, 3)
	beta := createTenant(t, "beta", 5, 3)
	admin := createUser(t, acme.ID, "admin@acme.test", model.RoleTenantAdmin)
	member := createUser(t, acme.ID, "user@acme.test", model.RoleUser)

	newUser := func(email string) map[string]interface{} {
		return map[string]interface{}{
			"email":     email,
			"password":  "password123",
			"full_name": "New User",
		}
	}
	path := fmt.Sprintf("/tenants/%d/users", acme.ID)

	t.Run("admin adds a user with the default role", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, admin), newUser("third@acme.test"))
		require.Equal(t, http.StatusCreated, rec.Code)

		var user model.User
		require.NoError(t, database.GetDB().Where("email = ?", "third@acme.test").First(&user).Error)
		assert.Equal(t, model.RoleUser, user.Role)
		assert.Equal(t, acme.ID, user.TenantID)
	})

	t.Run("duplicate email within the tenant", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, admin), newUser("user@acme.test"))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Email already exists in this tenant", decode(t, rec).Message)
	})

	t.Run("same email allowed in another tenant", func(t *testing.T) {
		betaAdmin := createUser(t, beta.ID, "admin@beta.test", model.RoleTenantAdmin)
		rec := doRequest(t, http.MethodPost, fmt.Sprintf("/tenants/%d/users", beta.ID),
			tokenFor(t, betaAdmin), newUser("user@acme.test"))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("quota boundary", func(t *testing.T) {
		// acme now holds admin, member and third: exactly max_users
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, admin), newUser("fourth@acme.test"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Subscription user limit reached", decode(t, rec).Message)
	})

	t.Run("quota opens after raise", func(t *testing.T) {
		require.NoError(t, database.GetDB().Model(acme).Update("max_users", 4).Error)
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, admin), newUser("fourth@acme.test"))
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("member cannot add users", func(t *testing.T) {
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, member), newUser("fifth@acme.test"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("super_admin role is not assignable", func(t *testing.T) {
		body := newUser("sixth@acme.test")
		body["role"] = model.RoleSuperAdmin
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, admin), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("short password", func(t *testing.T) {
		body := newUser("seventh@acme.test")
		body["password"] = "short"
		rec := doRequest(t, http.MethodPost, path, tokenFor(t, admin), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListTenantUsers(t *testing.T) {
	setupTest(t)
	acme := createTenant(t, "acme", 10, 3)
	beta := createTenant(t, "beta", 5, 3)
	admin := createUser(t, acme.ID, "admin@acme.test", model.RoleTenantAdmin)
	createUser(t, acme.ID, "alice@acme.test", model.RoleUser)
	createUser(t, acme.ID, "bob@acme.test", model.RoleUser)
	outsider := createUser(t, beta.ID, "admin@beta.test", model.RoleTenantAdmin)

	path := fmt.Sprintf("/tenants/%d/users", acme.ID)

	t.Run("lists tenant members", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, path, tokenFor(t, admin), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode(t, rec).Data["users"].([]interface{}), 3)
	})

	t.Run("search matches email case-insensitively", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, path+"?search=ALICE", tokenFor(t, admin), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		users := decode(t, rec).Data["users"].([]interface{})
		require.Len(t, users, 1)
		assert.Equal(t, "alice@acme.test", users[0].(map[string]interface{})["email"])
	})

	t.Run("role filter", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, path+"?role=tenant_admin", tokenFor(t, admin), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode(t, rec).Data["users"].([]interface{}), 1)
	})

	t.Run("cross tenant is forbidden", func(t *testing.T) {
		rec := doRequest(t, http.MethodGet, path, tokenFor(t, outsider), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
