package main

import (
	"tatuticket/internal/httpapi"
	"tatuticket/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, devLogin bool) {
	// public
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Token issuance without credential checks; local and dev only.
	if devLogin {
		r.POST("/auth/login", h.Login)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// BILLING routes (tenant-scoped read)
		billingGroup := v1.Group("/billing")
		billingGroup.Use(httpapi.RequireTenantAndAnyRole(rbac.RoleAdmin)...)
		{
			billingGroup.GET("/summary", h.GetBillingSummary)
		}

		// ADMIN routes
		// super_admin only: these create charges across tenants.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleSuperAdmin))
		{
			admin.POST("/billing/run", h.RunAllBilling)
			admin.POST("/billing/tenants/:tenant_id/run", h.RunTenantBilling)
		}
	}
}
