package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tatuticket/internal/auth"
	"tatuticket/internal/billing"
	"tatuticket/internal/config"
	"tatuticket/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBilling struct {
	tenantErr error
	gotTenant string
	report    billing.RunReport
}

func (f *fakeBilling) ProcessTenantBilling(ctx context.Context, tenantID string) (billing.Result, error) {
	f.gotTenant = tenantID
	if f.tenantErr != nil {
		return billing.Result{}, f.tenantErr
	}
	return billing.Result{TenantID: tenantID, Period: "2026-03", TotalAmount: decimal.NewFromInt(22500)}, nil
}

func (f *fakeBilling) ProcessAutomaticBilling(ctx context.Context) (billing.RunReport, error) {
	return f.report, nil
}

type fakeSummaries struct {
	err error
}

func (f fakeSummaries) GetBillingSummary(ctx context.Context, tenantID string) (billing.Summary, error) {
	if f.err != nil {
		return billing.Summary{}, f.err
	}
	return billing.Summary{TenantID: tenantID, Plan: "pro"}, nil
}

// withIdentity stands in for RequireAccessToken.
func withIdentity(tenantID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u1", tenantID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newRouter(h Handlers, tenantID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.Use(withIdentity(tenantID, role))
	v1.GET("/billing/summary", append(RequireTenantAndAnyRole(rbac.RoleAdmin), h.GetBillingSummary)...)

	admin := v1.Group("/admin")
	admin.Use(rbac.RequireAnyRole(rbac.RoleSuperAdmin))
	admin.POST("/billing/run", h.RunAllBilling)
	admin.POST("/billing/tenants/:tenant_id/run", h.RunTenantBilling)
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestGetBillingSummary_UsesCallerTenant(t *testing.T) {
	r := newRouter(Handlers{Summaries: fakeSummaries{}}, "t1", rbac.RoleAdmin)

	w := do(r, http.MethodGet, "/v1/billing/summary")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "t1", body["tenantId"])
	assert.Equal(t, "pro", body["plan"])
}

func TestGetBillingSummary_ForbiddenForAgents(t *testing.T) {
	r := newRouter(Handlers{Summaries: fakeSummaries{}}, "t1", rbac.RoleAgent)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/v1/billing/summary").Code)
}

func TestGetBillingSummary_MissingTenantIs404(t *testing.T) {
	r := newRouter(Handlers{Summaries: fakeSummaries{err: billing.ErrTenantNotFound}}, "t1", rbac.RoleAdmin)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/v1/billing/summary").Code)
}

func TestRunTenantBilling_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"not found", billing.ErrTenantNotFound, http.StatusNotFound},
		{"already billed", billing.ErrAlreadyBilled, http.StatusConflict},
		{"in progress", billing.ErrRunInProgress, http.StatusConflict},
		{"provider", errors.New("stripe: boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb := &fakeBilling{tenantErr: tc.err}
			r := newRouter(Handlers{Billing: fb}, "root", rbac.RoleSuperAdmin)

			w := do(r, http.MethodPost, "/v1/admin/billing/tenants/t9/run")
			assert.Equal(t, tc.want, w.Code)
			assert.Equal(t, "t9", fb.gotTenant)
			if tc.want == http.StatusInternalServerError {
				assert.NotContains(t, w.Body.String(), "boom")
			}
		})
	}
}

func TestRunTenantBilling_RequiresSuperAdmin(t *testing.T) {
	fb := &fakeBilling{}
	r := newRouter(Handlers{Billing: fb}, "t1", rbac.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/v1/admin/billing/tenants/t1/run").Code)
	assert.Empty(t, fb.gotTenant)
}

func TestRunAllBilling_ReturnsReport(t *testing.T) {
	fb := &fakeBilling{report: billing.RunReport{Processed: []string{"t1"}, Failed: []string{"t2"}}}
	r := newRouter(Handlers{Billing: fb}, "root", rbac.RoleSuperAdmin)

	w := do(r, http.MethodPost, "/v1/admin/billing/run")
	require.Equal(t, http.StatusOK, w.Code)

	var report billing.RunReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, []string{"t2"}, report.Failed)
}

func TestHealthz(t *testing.T) {
	r := newRouter(Handlers{}, "", "")
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz").Code)

	r = newRouter(Handlers{Ready: func(context.Context) error { return errors.New("db down") }}, "", "")
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/healthz").Code)
}

func TestLogin_IssuesTokensForTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := auth.NewManager(authConfig())
	require.NoError(t, err)

	r := gin.New()
	r.POST("/auth/login", Handlers{Auth: m}.Login)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"user_id":"u1","tenant_id":"t1","role":"admin"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["access_token"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"user_id":"u1"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_RefusesSuperAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := auth.NewManager(authConfig())
	require.NoError(t, err)

	r := gin.New()
	r.POST("/auth/login", Handlers{Auth: m}.Login)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"user_id":"u1","tenant_id":"t1","role":"super_admin"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "access_token")
}

func authConfig() config.AuthConfig {
	return config.AuthConfig{JWTSecret: "secret", JWTIssuer: "tatuticket", JWTAudience: "api"}
}
