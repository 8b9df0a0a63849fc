// Package auth extracts the authenticated caller from upstream gateway
// headers and decides who may manage webhook configuration.
package auth

import (
	"errors"
	"net/http"
)

const (
	HeaderCallerID   = "X-Caller-ID"
	HeaderTenantID   = "X-Tenant-ID"
	HeaderCallerRole = "X-Caller-Role"

	RoleTenantAdmin = "tenant_admin"
	RoleGlobalAdmin = "global_admin"
)

var ErrUnauthenticated = errors.New("missing caller identity")

// Caller is the identity the upstream gateway authenticated.
type Caller struct {
	ID       string
	TenantID string
	Role     string
}

// CallerFromRequest reads the gateway identity headers. All three must be
// present.
func CallerFromRequest(r *http.Request) (Caller, error) {
	c := Caller{
		ID:       r.Header.Get(HeaderCallerID),
		TenantID: r.Header.Get(HeaderTenantID),
		Role:     r.Header.Get(HeaderCallerRole),
	}
	if c.ID == "" || c.TenantID == "" || c.Role == "" {
		return Caller{}, ErrUnauthenticated
	}
	return c, nil
}

// Authorizer decides whether a caller may manage subscriptions in a tenant.
type Authorizer interface {
	CanManage(caller Caller, tenantID string) bool
}

// TenantAdminAuthorizer grants tenant admins access to their own tenant and
// global admins access everywhere.
type TenantAdminAuthorizer struct{}

func (TenantAdminAuthorizer) CanManage(caller Caller, tenantID string) bool {
	switch caller.Role {
	case RoleGlobalAdmin:
		return true
	case RoleTenantAdmin:
		return caller.TenantID == tenantID
	default:
		return false
	}
}
