package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tatuticket/internal/pricing"
	"tatuticket/internal/tenants"
	"tatuticket/internal/usage"

	"github.com/shopspring/decimal"
)

// TenantReader loads a single tenant.
type TenantReader interface {
	GetTenantByID(ctx context.Context, id string) (tenants.Tenant, error)
}

// UsageCalculator is satisfied by *usage.Aggregator.
type UsageCalculator interface {
	CalculateUsage(ctx context.Context, tenantID string) (usage.Metrics, error)
}

// Calculator compares monthly usage with plan allowances.
type Calculator struct {
	tenants TenantReader
	usage   UsageCalculator
	rules   pricing.RuleTable
	log     *slog.Logger
}

func NewCalculator(tenants TenantReader, usage UsageCalculator, rules pricing.RuleTable, log *slog.Logger) *Calculator {
	if log == nil {
		log = slog.Default()
	}
	return &Calculator{tenants: tenants, usage: usage, rules: rules, log: log}
}

// CalculateOverageCharges returns the charges for tenantID in rule order.
// A missing tenant yields ErrTenantNotFound; an unknown plan yields no charges.
func (c *Calculator) CalculateOverageCharges(ctx context.Context, tenantID string) ([]OverageCharge, error) {
	t, err := c.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	_, charges, err := c.chargesFor(ctx, t)
	return charges, err
}

func (c *Calculator) loadTenant(ctx context.Context, tenantID string) (tenants.Tenant, error) {
	if tenantID == "" {
		return tenants.Tenant{}, ErrInvalidTenant
	}
	t, err := c.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			return tenants.Tenant{}, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
		}
		return tenants.Tenant{}, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	return t, nil
}

func (c *Calculator) chargesFor(ctx context.Context, t tenants.Tenant) (usage.Metrics, []OverageCharge, error) {
	m, err := c.usage.CalculateUsage(ctx, t.ID)
	if err != nil {
		return usage.Metrics{}, nil, err
	}
	if !c.rules.HasPlan(t.Plan) {
		c.log.WarnContext(ctx, "unknown plan, no overage rules applied", "tenant_id", t.ID, "plan", t.Plan)
	}
	return m, CalculateCharges(c.rules.RulesForPlan(t.Plan), m), nil
}

// CalculateCharges emits one charge per rule whose metric strictly exceeds
// its limit. The result is never nil.
func CalculateCharges(rules []pricing.BillingRule, m usage.Metrics) []OverageCharge {
	out := make([]OverageCharge, 0, len(rules))
	for _, r := range rules {
		value, ok := m.Value(r.Metric)
		if !ok || !value.GreaterThan(r.Limit) {
			continue
		}
		over := value.Sub(r.Limit)
		out = append(out, OverageCharge{
			MetricType:    r.Metric,
			OverageAmount: over,
			CostPerUnit:   r.CostPerUnit,
			TotalCost:     over.Mul(r.CostPerUnit),
			Currency:      r.Currency,
			Description:   describe(r, over),
		})
	}
	return out
}

// describe renders e.g. "30 tickets excedentes × Kz 750.00".
func describe(r pricing.BillingRule, over decimal.Decimal) string {
	return fmt.Sprintf("%s %s excedentes × %s", over.String(), r.Metric.Label(), pricing.FormatAmount(r.Currency, r.CostPerUnit))
}
