package billing

import (
	"context"
	"errors"
	"testing"

	"tatuticket/internal/mailer"
	"tatuticket/internal/pricing"
	"tatuticket/internal/tenants"
	"tatuticket/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCharges() []OverageCharge {
	return []OverageCharge{{
		MetricType:    pricing.MetricTickets,
		OverageAmount: decimal.NewFromInt(30),
		CostPerUnit:   decimal.NewFromInt(750),
		TotalCost:     decimal.NewFromInt(22500),
		Currency:      pricing.CurrencyAOA,
		Description:   "30 tickets excedentes × Kz 750.00",
	}}
}

func TestNotifier_NoAdminsIsNotAnError(t *testing.T) {
	repo := tenants.NewMemoryRepo()
	repo.Users = []tenants.User{{ID: "u1", TenantID: "t1", Email: "agent@x.ao", Role: "agent"}}
	mail := &mailer.MemorySender{}

	n := NewNotifier(repo, mail, logger.Discard(), nil)
	sent := n.SendBillingNotification(context.Background(), tenants.Tenant{ID: "t1", Name: "X"}, sampleCharges(), decimal.NewFromInt(22500))
	assert.Zero(t, sent)
	assert.Empty(t, mail.Sent())
}

func TestNotifier_ListUsersFailureIsSwallowed(t *testing.T) {
	repo := tenants.NewMemoryRepo()
	repo.InjectFailure("ListUsersByTenant", "t1", errors.New("db down"))

	n := NewNotifier(repo, &mailer.MemorySender{}, logger.Discard(), nil)
	assert.Zero(t, n.SendBillingNotification(context.Background(), tenants.Tenant{ID: "t1"}, sampleCharges(), decimal.Zero))
}

func TestRenderNotification_EscapesTenantName(t *testing.T) {
	html, text, err := renderNotification(tenants.Tenant{Name: "<Acme & Filhos>"}, sampleCharges(), decimal.NewFromInt(22500))
	require.NoError(t, err)

	assert.Contains(t, html, "&lt;Acme &amp; Filhos&gt;")
	assert.Contains(t, html, "Kz 22500.00")
	assert.Contains(t, text, "<Acme & Filhos>")
	assert.Contains(t, text, "- 30 tickets excedentes × Kz 750.00: Kz 22500.00")
}
