package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tatuticket/internal/tenants"
)

var ErrInvalidTenant = errors.New("usage: tenant id required")

// Source is the tenant-scoped read side the aggregator needs.
// tenants.Repository satisfies it.
type Source interface {
	ListTicketsByTenant(ctx context.Context, tenantID string) ([]tenants.Ticket, error)
	ListUsersByTenant(ctx context.Context, tenantID string) ([]tenants.User, error)
}

// Aggregator derives monthly usage from stored tickets and users.
// It has no side effects.
type Aggregator struct {
	src        Source
	strategies Strategies
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewAggregator(src Source, strategies Strategies) *Aggregator {
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	return &Aggregator{src: src, strategies: strategies, clock: time.Now}
}

// WithClock returns a copy of a reading time from clock.
func (a *Aggregator) WithClock(clock func() time.Time) *Aggregator {
	cp := *a
	cp.clock = clock
	return &cp
}

// CurrentPeriod is [1st of this month, now) on the aggregator clock.
func (a *Aggregator) CurrentPeriod() TimeRange {
	now := a.clock()
	return TimeRange{From: MonthStart(now), To: now}
}

// CalculateUsage counts tickets created since the 1st of the current month
// and applies the configured strategies. Storage errors are returned wrapped.
func (a *Aggregator) CalculateUsage(ctx context.Context, tenantID string) (Metrics, error) {
	if tenantID == "" {
		return Metrics{}, ErrInvalidTenant
	}
	if a.src == nil {
		return Metrics{}, errors.New("usage: source not configured")
	}

	period := a.CurrentPeriod()

	tickets, err := a.src.ListTicketsByTenant(ctx, tenantID)
	if err != nil {
		return Metrics{}, fmt.Errorf("usage: list tickets for %s: %w", tenantID, err)
	}
	users, err := a.src.ListUsersByTenant(ctx, tenantID)
	if err != nil {
		return Metrics{}, fmt.Errorf("usage: list users for %s: %w", tenantID, err)
	}

	c := Counts{Users: len(users)}
	for _, t := range tickets {
		if t.TenantID != tenantID {
			continue
		}
		if t.CreatedAt.Before(period.From) {
			continue
		}
		c.TicketsThisMonth++
	}

	m, err := a.strategies.metrics(tenantID, c)
	if err != nil {
		return Metrics{}, err
	}
	m.PeriodStart = period.From
	m.PeriodEnd = period.To
	return m, nil
}
