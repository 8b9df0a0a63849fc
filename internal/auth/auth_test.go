package auth

import (
	"net/http/httptest"
	"testing"
)

func TestCallerFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderCallerID, "user-1")
	req.Header.Set(HeaderTenantID, "tenant-1")
	req.Header.Set(HeaderCallerRole, RoleTenantAdmin)

	caller, err := CallerFromRequest(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if caller.ID != "user-1" || caller.TenantID != "tenant-1" || caller.Role != RoleTenantAdmin {
		t.Errorf("unexpected caller: %+v", caller)
	}
}

func TestCallerFromRequestMissingHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderCallerID, "user-1")

	if _, err := CallerFromRequest(req); err == nil {
		t.Fatal("expected error for missing headers")
	}
}

func TestTenantAdminAuthorizer(t *testing.T) {
	authz := TenantAdminAuthorizer{}

	cases := []struct {
		name     string
		caller   Caller
		tenantID string
		want     bool
	}{
		{"admin own tenant", Caller{Role: RoleTenantAdmin, TenantID: "t1"}, "t1", true},
		{"admin other tenant", Caller{Role: RoleTenantAdmin, TenantID: "t1"}, "t2", false},
		{"global admin any tenant", Caller{Role: RoleGlobalAdmin, TenantID: "t1"}, "t2", true},
		{"member denied", Caller{Role: "member", TenantID: "t1"}, "t1", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := authz.CanManage(tc.caller, tc.tenantID); got != tc.want {
				t.Errorf("CanManage() = %v, want %v", got, tc.want)
			}
		})
	}
}
