package policy

import (
	"backoffice-service/internal/model"

	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// Identity is the caller's identity derived once from the bearer token by
// the auth middleware. Handlers and policies receive it explicitly and
// never re-parse the credential.
type Identity struct {
	UserID   uint
	TenantID uint
	Role     string
}

// IsSuperAdmin reports whether the caller bypasses tenant isolation
func (i *Identity) IsSuperAdmin() bool {
	return i.Role == model.RoleSuperAdmin
}

// IsTenantAdmin reports whether the caller administers their own tenant
func (i *Identity) IsTenantAdmin() bool {
	return i.Role == model.RoleTenantAdmin
}

// SetIdentity stores the identity in the Echo context
func SetIdentity(c echo.Context, ident *Identity) {
	c.Set(identityKey, ident)
}

// FromContext retrieves the identity placed in the context by the auth
// middleware
func FromContext(c echo.Context) (*Identity, bool) {
	ident, ok := c.Get(identityKey).(*Identity)
	return ident, ok
}
