package usage

import (
	"time"

	"tatuticket/internal/pricing"

	"github.com/shopspring/decimal"
)

// Metrics are the monthly usage counters for one tenant.
// They are derived on every call and never persisted.
type Metrics struct {
	TenantID string          `json:"tenantId"`
	Tickets  int64           `json:"tickets"`
	SLAHours decimal.Decimal `json:"slaHours"`
	Storage  decimal.Decimal `json:"storage"` // MB
	APICalls int64           `json:"apiCalls"`

	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
}

// Value returns the counter for metric. ok is false for metrics this
// aggregator does not produce.
func (m Metrics) Value(metric pricing.MetricType) (v decimal.Decimal, ok bool) {
	switch metric {
	case pricing.MetricTickets:
		return decimal.NewFromInt(m.Tickets), true
	case pricing.MetricSLAHours:
		return m.SLAHours, true
	case pricing.MetricStorage:
		return m.Storage, true
	case pricing.MetricAPICalls:
		return decimal.NewFromInt(m.APICalls), true
	default:
		return decimal.Zero, false
	}
}

// Counts are the raw inputs strategies derive metrics from.
type Counts struct {
	TicketsThisMonth int
	Users            int
}

// TimeRange is a half-open [From, To) window.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// MonthStart is midnight on the 1st of t's month, in t's location.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// NextMonthStart is midnight on the 1st of the month after t.
func NextMonthStart(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0)
}

// PeriodKey identifies a calendar month, e.g. "2026-03".
func PeriodKey(t time.Time) string {
	return t.Format("2006-01")
}
