package usage

import (
	"fmt"

	"tatuticket/internal/pricing"

	"github.com/shopspring/decimal"
)

// Strategy derives one metric from raw counts.
type Strategy func(Counts) decimal.Decimal

// Strategies holds one Strategy per metric. A missing entry reports zero.
type Strategies map[pricing.MetricType]Strategy

var (
	slaHoursPerTicket  = decimal.RequireFromString("1.5")
	storageMBPerTicket = decimal.RequireFromString("0.5")
	storageMBPerUser   = decimal.NewFromInt(10)
	apiCallsPerTicket  = decimal.NewFromInt(10)
	apiCallsPerUser    = decimal.NewFromInt(50)
)

// DefaultStrategies approximates SLA hours, storage and API calls from ticket
// and user counts. Replace individual entries once real metering exists.
func DefaultStrategies() Strategies {
	return Strategies{
		pricing.MetricTickets: func(c Counts) decimal.Decimal {
			return decimal.NewFromInt(int64(c.TicketsThisMonth))
		},
		pricing.MetricSLAHours: func(c Counts) decimal.Decimal {
			return decimal.NewFromInt(int64(c.TicketsThisMonth)).Mul(slaHoursPerTicket)
		},
		pricing.MetricStorage: func(c Counts) decimal.Decimal {
			return decimal.NewFromInt(int64(c.TicketsThisMonth)).Mul(storageMBPerTicket).
				Add(decimal.NewFromInt(int64(c.Users)).Mul(storageMBPerUser))
		},
		pricing.MetricAPICalls: func(c Counts) decimal.Decimal {
			return decimal.NewFromInt(int64(c.TicketsThisMonth)).Mul(apiCallsPerTicket).
				Add(decimal.NewFromInt(int64(c.Users)).Mul(apiCallsPerUser))
		},
	}
}

// With returns a copy of s with metric replaced by fn.
func (s Strategies) With(metric pricing.MetricType, fn Strategy) Strategies {
	out := make(Strategies, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[metric] = fn
	return out
}

func (s Strategies) eval(metric pricing.MetricType, c Counts) decimal.Decimal {
	fn, ok := s[metric]
	if !ok || fn == nil {
		return decimal.Zero
	}
	return fn(c)
}

func (s Strategies) metrics(tenantID string, c Counts) (Metrics, error) {
	tickets := s.eval(pricing.MetricTickets, c)
	apiCalls := s.eval(pricing.MetricAPICalls, c)
	if !tickets.IsInteger() || !apiCalls.IsInteger() {
		return Metrics{}, fmt.Errorf("usage: tickets and api_calls must be whole numbers, got %s and %s", tickets, apiCalls)
	}
	return Metrics{
		TenantID: tenantID,
		Tickets:  tickets.IntPart(),
		SLAHours: s.eval(pricing.MetricSLAHours, c),
		Storage:  s.eval(pricing.MetricStorage, c),
		APICalls: apiCalls.IntPart(),
	}, nil
}
