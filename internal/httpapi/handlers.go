package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"tatuticket/internal/auth"
	"tatuticket/internal/billing"
	"tatuticket/internal/rbac"
	"tatuticket/pkg/logger"

	"github.com/gin-gonic/gin"
)

// BillingRunner triggers billing runs. *billing.Processor satisfies it.
type BillingRunner interface {
	ProcessTenantBilling(ctx context.Context, tenantID string) (billing.Result, error)
	ProcessAutomaticBilling(ctx context.Context) (billing.RunReport, error)
}

// SummaryReader is satisfied by *billing.Calculator.
type SummaryReader interface {
	GetBillingSummary(ctx context.Context, tenantID string) (billing.Summary, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Billing   BillingRunner
	Summaries SummaryReader
	// Ready reports dependency health for /healthz; nil means always ready.
	Ready func(ctx context.Context) error
}

// --- Health ---

func (h Handlers) Healthz(c *gin.Context) {
	if h.Ready != nil {
		if err := h.Ready(c.Request.Context()); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Auth ---

type loginRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This does not validate credentials. Register it for local and dev
// only; it never issues super_admin tokens.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.TenantID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, tenant_id, role required"})
		return
	}
	if rbac.IsSuperAdmin(req.Role) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "super_admin tokens are not issued here"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.TenantID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Billing ---

// GetBillingSummary returns the caller's tenant usage and pending overage.
func (h Handlers) GetBillingSummary(c *gin.Context) {
	if h.Summaries == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	s, err := h.Summaries.GetBillingSummary(c.Request.Context(), tenantID)
	if err != nil {
		writeBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// RunTenantBilling bills one tenant for the current period. Used for manual retries.
// RBAC: super_admin.
func (h Handlers) RunTenantBilling(c *gin.Context) {
	if h.Billing == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}
	tenantID := strings.TrimSpace(c.Param("tenant_id"))
	if tenantID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant_id required"})
		return
	}
	actor, _ := auth.UserID(c.Request.Context())
	logger.FromGin(c).Info("manual tenant billing requested", "target_tenant_id", tenantID, "actor_user_id", actor)

	res, err := h.Billing.ProcessTenantBilling(c.Request.Context(), tenantID)
	if err != nil {
		writeBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RunAllBilling bills every active tenant. Per-tenant failures are part of
// the report, not the status code.
// RBAC: super_admin.
func (h Handlers) RunAllBilling(c *gin.Context) {
	if h.Billing == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}
	actor, _ := auth.UserID(c.Request.Context())
	logger.FromGin(c).Info("manual billing run requested", "actor_user_id", actor)

	report, err := h.Billing.ProcessAutomaticBilling(c.Request.Context())
	if err != nil {
		writeBillingError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func writeBillingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, billing.ErrTenantNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
	case errors.Is(err, billing.ErrInvalidTenant):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant_id required"})
	case errors.Is(err, billing.ErrAlreadyBilled):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "period already billed"})
	case errors.Is(err, billing.ErrRunInProgress):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "billing run in progress"})
	default:
		logger.FromGin(c).Error("billing request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "billing failed"})
	}
}

// Convenience middleware bundles.

func RequireTenantAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireTenant(), rbac.RequireAnyRole(roles...)}
}
