package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tatuticket/internal/auth"

	"github.com/gin-gonic/gin"
)

func serve(t *testing.T, tenantID, role string, chain ...gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handlers := []gin.HandlerFunc{func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", tenantID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}}
	handlers = append(handlers, chain...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })

	r := gin.New()
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serve(t, "t1", RoleSuperAdmin, RequireTenant(), RequireAnyRole(RoleAdmin)); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniesOtherRoles(t *testing.T) {
	if code := serve(t, "t1", RoleAgent, RequireTenant(), RequireAnyRole(RoleAdmin)); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serve(t, "t1", RoleCustomer, RequireTenant(), RequireAnyRole(RoleAdmin)); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireTenant_Required(t *testing.T) {
	if code := serve(t, "", RoleAdmin, RequireTenant(), RequireAnyRole(RoleAdmin)); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestIsBillingContact(t *testing.T) {
	cases := map[string]bool{
		RoleSuperAdmin: true,
		RoleAdmin:      true,
		RoleAgent:      false,
		RoleCustomer:   false,
		"":             false,
	}
	for role, want := range cases {
		if got := IsBillingContact(role); got != want {
			t.Fatalf("IsBillingContact(%q) = %v, want %v", role, got, want)
		}
	}
}
