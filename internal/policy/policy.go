// Package policy holds the two rules every handler composes: tenant
// isolation (a row may only be touched by its own tenant, super_admin
// excepted) and the per-entity field-level authorization tables.
package policy

import (
	"errors"

	"backoffice-service/internal/model"
)

var (
	// ErrCrossTenant means the resource exists but belongs to another tenant
	ErrCrossTenant = errors.New("resource belongs to another tenant")
	// ErrForbiddenField means the caller's role may not touch a requested field
	ErrForbiddenField = errors.New("field not permitted for this role")
	// ErrPeerAdminRole means a tenant_admin tried to change another tenant_admin's role
	ErrPeerAdminRole = errors.New("cannot change role of another tenant admin")
	// ErrSelfRoleChange means a caller tried to change their own role
	ErrSelfRoleChange = errors.New("cannot change own role")
	// ErrInvalidRole means the requested role is not assignable
	ErrInvalidRole = errors.New("invalid role")
	// ErrNoFields means the request carried nothing the caller may update
	ErrNoFields = errors.New("no permitted fields to update")
)

// CanAccessTenant is the tenant isolation predicate applied before every
// read or write of a tenant-scoped row. The existence check (404) always
// runs before this check (403) so the two stay distinguishable in a
// uniform order.
func CanAccessTenant(ident *Identity, resourceTenantID uint) bool {
	return ident.IsSuperAdmin() || ident.TenantID == resourceTenantID
}

// CanManageTenantUsers reports whether the caller may create or delete
// users of the given tenant
func CanManageTenantUsers(ident *Identity, tenantID uint) bool {
	return ident.IsSuperAdmin() || (ident.IsTenantAdmin() && ident.TenantID == tenantID)
}

// TenantUpdate carries the mutable tenant fields of an update request.
// Pointers distinguish absent fields from zero values.
type TenantUpdate struct {
	Name             *string `json:"name"`
	Status           *string `json:"status"`
	SubscriptionPlan *string `json:"subscription_plan"`
	MaxUsers         *int    `json:"max_users"`
	MaxProjects      *int    `json:"max_projects"`
}

// TenantUpdates returns the column updates the caller may apply to the
// tenant. name is open to the owning tenant_admin or super_admin; the
// subscription fields are super_admin only, and their mere presence fails
// the whole request for anyone else.
func TenantUpdates(ident *Identity, tenantID uint, u *TenantUpdate) (map[string]interface{}, error) {
	if !CanAccessTenant(ident, tenantID) {
		return nil, ErrCrossTenant
	}

	restricted := u.Status != nil || u.SubscriptionPlan != nil || u.MaxUsers != nil || u.MaxProjects != nil
	if restricted && !ident.IsSuperAdmin() {
		return nil, ErrForbiddenField
	}

	updates := map[string]interface{}{}
	if u.Name != nil {
		if !ident.IsSuperAdmin() && !(ident.IsTenantAdmin() && ident.TenantID == tenantID) {
			return nil, ErrForbiddenField
		}
		updates["name"] = *u.Name
	}
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if u.SubscriptionPlan != nil {
		updates["subscription_plan"] = *u.SubscriptionPlan
	}
	if u.MaxUsers != nil {
		updates["max_users"] = *u.MaxUsers
	}
	if u.MaxProjects != nil {
		updates["max_projects"] = *u.MaxProjects
	}

	if len(updates) == 0 {
		return nil, ErrNoFields
	}
	return updates, nil
}

// UserUpdate carries the mutable user fields of an update request
type UserUpdate struct {
	FullName *string `json:"full_name"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// UserUpdates returns the column updates the caller may apply to the
// target user. A user edits their own full_name; an admin of the target's
// tenant edits full_name, role and is_active, except that no one short of
// super_admin changes another tenant_admin's role, and nobody changes
// their own.
func UserUpdates(ident *Identity, target *model.User, u *UserUpdate) (map[string]interface{}, error) {
	if !CanAccessTenant(ident, target.TenantID) {
		return nil, ErrCrossTenant
	}

	admin := ident.IsSuperAdmin() || (ident.IsTenantAdmin() && ident.TenantID == target.TenantID)
	self := ident.UserID == target.ID

	updates := map[string]interface{}{}
	if u.FullName != nil {
		if !admin && !self {
			return nil, ErrForbiddenField
		}
		updates["full_name"] = *u.FullName
	}
	if u.Role != nil {
		if !admin {
			return nil, ErrForbiddenField
		}
		if self {
			return nil, ErrSelfRoleChange
		}
		if target.Role == model.RoleTenantAdmin && !ident.IsSuperAdmin() {
			return nil, ErrPeerAdminRole
		}
		if !model.AssignableRole(*u.Role) {
			return nil, ErrInvalidRole
		}
		updates["role"] = *u.Role
	}
	if u.IsActive != nil {
		if !admin {
			return nil, ErrForbiddenField
		}
		updates["is_active"] = *u.IsActive
	}

	if len(updates) == 0 {
		return nil, ErrNoFields
	}
	return updates, nil
}

// CanDeleteUser reports whether the caller may delete the target user.
// Tenant admins delete within their tenant, never themselves.
func CanDeleteUser(ident *Identity, target *model.User) bool {
	if ident.UserID == target.ID {
		return false
	}
	return CanManageTenantUsers(ident, target.TenantID)
}

// CanModifyProject reports whether the caller may update or delete the
// project: its creator, a tenant_admin of its tenant, or super_admin.
// Tenant isolation is checked separately and first.
func CanModifyProject(ident *Identity, p *model.Project) bool {
	if ident.IsSuperAdmin() {
		return true
	}
	return ident.UserID == p.CreatedBy || (ident.IsTenantAdmin() && ident.TenantID == p.TenantID)
}
