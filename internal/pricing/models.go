package pricing

import "github.com/shopspring/decimal"

// Billing rules are static configuration keyed by plan name.
// Limits and unit costs are decimals; conversion to provider minor units
// happens only at the payment boundary (see ToMinorUnits).

type Plan string

const (
	PlanFreemium   Plan = "freemium"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// MetricType names one usage counter that can be billed.
type MetricType string

const (
	MetricTickets  MetricType = "tickets"
	MetricSLAHours MetricType = "sla_hours"
	MetricStorage  MetricType = "storage"
	MetricAPICalls MetricType = "api_calls"
)

// Metrics lists every billable metric in canonical order.
var Metrics = []MetricType{MetricTickets, MetricSLAHours, MetricStorage, MetricAPICalls}

func (m MetricType) Valid() bool {
	switch m {
	case MetricTickets, MetricSLAHours, MetricStorage, MetricAPICalls:
		return true
	default:
		return false
	}
}

// Label is the Portuguese unit label used in charge descriptions.
func (m MetricType) Label() string {
	switch m {
	case MetricTickets:
		return "tickets"
	case MetricSLAHours:
		return "horas SLA"
	case MetricStorage:
		return "MB de armazenamento"
	case MetricAPICalls:
		return "chamadas API"
	default:
		return string(m)
	}
}

type Currency string

const (
	CurrencyAOA Currency = "AOA"
	CurrencyUSD Currency = "USD"
)

func (c Currency) Valid() bool {
	return c == CurrencyAOA || c == CurrencyUSD
}

// BillingRule is the included allowance and overage price for one metric.
type BillingRule struct {
	Metric      MetricType      `json:"metricType"`
	Limit       decimal.Decimal `json:"limit"`
	CostPerUnit decimal.Decimal `json:"costPerUnit"`
	Currency    Currency        `json:"currency"`
}

func rule(metric MetricType, limit int64, cost string, currency Currency) BillingRule {
	return BillingRule{
		Metric:      metric,
		Limit:       decimal.NewFromInt(limit),
		CostPerUnit: decimal.RequireFromString(cost),
		Currency:    currency,
	}
}
