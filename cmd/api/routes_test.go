package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tatuticket/internal/auth"
	"tatuticket/internal/config"
	"tatuticket/internal/httpapi"

	"github.com/gin-gonic/gin"
)

func newTestEngine(t *testing.T, env string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret"})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	cfg := config.Config{App: config.AppConfig{Env: env}}

	r := gin.New()
	registerRoutes(r, httpapi.Handlers{Auth: m}, auth.RequireAccessToken(m), cfg.DevLoginEnabled())
	return r
}

func login(r http.Handler, role string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"user_id":"u1","tenant_id":"t1","role":"`+role+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRegisterRoutes_DevLoginOnlyLocalAndDev(t *testing.T) {
	cases := map[string]int{
		"local":      http.StatusOK,
		"dev":        http.StatusOK,
		"staging":    http.StatusNotFound,
		"production": http.StatusNotFound,
	}
	for env, want := range cases {
		if got := login(newTestEngine(t, env), "admin"); got != want {
			t.Fatalf("env %s: expected %d, got %d", env, want, got)
		}
	}
}

func TestRegisterRoutes_DevLoginRefusesSuperAdmin(t *testing.T) {
	if got := login(newTestEngine(t, "dev"), "super_admin"); got != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", got)
	}
}

func TestRegisterRoutes_AdminBillingRequiresToken(t *testing.T) {
	r := newTestEngine(t, "staging")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/admin/billing/run", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
