package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tatuticket/internal/config"

	"github.com/gin-gonic/gin"
)

func newTestManager(t *testing.T, now time.Time) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "tatuticket",
		JWTAudience:     "billing",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	m.clock = func() time.Time { return now }
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	m := newTestManager(t, now)

	pair, err := m.IssuePair(now, "user-1", "t1", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.TenantID != "t1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	m := newTestManager(t, now)

	p, err := m.IssuePair(now, "u", "t1", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, now); !errors.Is(err, ErrTokenType) {
		t.Fatalf("expected ErrTokenType, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	m := newTestManager(t, now)

	p, err := m.IssuePair(now, "u", "t1", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestRequireAccessToken_InjectsIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Now().UTC()
	m := newTestManager(t, now)
	p, err := m.IssuePair(now, "u1", "t1", "super_admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := gin.New()
	r.GET("/x", RequireAccessToken(m), func(c *gin.Context) {
		tid, err := TenantID(c.Request.Context())
		if err != nil || tid != "t1" {
			t.Fatalf("expected tenant t1, got %q (%v)", tid, err)
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+p.AccessToken)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}
