package billing

import (
	"context"

	"tatuticket/internal/usage"
)

// GetBillingSummary computes usage and pending overage for display.
// Nothing is cached or written.
func (c *Calculator) GetBillingSummary(ctx context.Context, tenantID string) (Summary, error) {
	t, err := c.loadTenant(ctx, tenantID)
	if err != nil {
		return Summary{}, err
	}
	m, charges, err := c.chargesFor(ctx, t)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		TenantID:        t.ID,
		Plan:            t.Plan,
		Usage:           m,
		OverageCharges:  charges,
		TotalOverage:    sumCharges(charges),
		Currency:        chargesCurrency(charges),
		NextBillingDate: usage.NextMonthStart(m.PeriodEnd),
		Rules:           c.rules.RulesForPlan(t.Plan),
	}, nil
}
