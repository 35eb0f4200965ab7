package pricing

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownPlan  = errors.New("pricing: unknown plan")
	ErrInvalidRule  = errors.New("pricing: invalid billing rule")
	ErrDuplicateRow = errors.New("pricing: duplicate metric for plan")
)

// RuleTable maps plans to their ordered billing rules.
//
// A RuleTable is immutable once built: NewRuleTable copies its input and
// every accessor returns a copy, so one table can be shared by concurrent
// billing runs and replaced wholesale in tests.
type RuleTable struct {
	plans map[Plan][]BillingRule
}

// NewRuleTable validates and copies rules. Rule order within a plan is
// preserved and determines the order of computed charges.
func NewRuleTable(rules map[Plan][]BillingRule) (RuleTable, error) {
	plans := make(map[Plan][]BillingRule, len(rules))
	for plan, list := range rules {
		if plan == "" {
			return RuleTable{}, fmt.Errorf("%w: empty plan name", ErrInvalidRule)
		}
		seen := make(map[MetricType]bool, len(list))
		cp := make([]BillingRule, 0, len(list))
		for _, r := range list {
			if err := validateRule(r); err != nil {
				return RuleTable{}, fmt.Errorf("plan %s: %w", plan, err)
			}
			if seen[r.Metric] {
				return RuleTable{}, fmt.Errorf("plan %s metric %s: %w", plan, r.Metric, ErrDuplicateRow)
			}
			seen[r.Metric] = true
			cp = append(cp, r)
		}
		plans[plan] = cp
	}
	return RuleTable{plans: plans}, nil
}

// MustRuleTable is NewRuleTable for static tables; it panics on invalid input.
func MustRuleTable(rules map[Plan][]BillingRule) RuleTable {
	t, err := NewRuleTable(rules)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultRuleTable returns the TatuTicket plan catalogue, priced in kwanza.
func DefaultRuleTable() RuleTable {
	return MustRuleTable(map[Plan][]BillingRule{
		PlanFreemium: {
			rule(MetricTickets, 50, "1000.00", CurrencyAOA),
			rule(MetricSLAHours, 100, "500.00", CurrencyAOA),
			rule(MetricStorage, 1024, "5.00", CurrencyAOA),
			rule(MetricAPICalls, 1000, "2.00", CurrencyAOA),
		},
		PlanPro: {
			rule(MetricTickets, 500, "750.00", CurrencyAOA),
			rule(MetricSLAHours, 1000, "400.00", CurrencyAOA),
			rule(MetricStorage, 10240, "3.00", CurrencyAOA),
			rule(MetricAPICalls, 10000, "1.00", CurrencyAOA),
		},
		PlanEnterprise: {
			rule(MetricTickets, 5000, "500.00", CurrencyAOA),
			rule(MetricSLAHours, 10000, "300.00", CurrencyAOA),
			rule(MetricStorage, 102400, "2.00", CurrencyAOA),
			rule(MetricAPICalls, 100000, "0.50", CurrencyAOA),
		},
	})
}

// RulesForPlan returns the rules for plan. An unknown plan yields an empty,
// non-nil list.
func (t RuleTable) RulesForPlan(plan string) []BillingRule {
	list := t.plans[Plan(plan)]
	out := make([]BillingRule, len(list))
	copy(out, list)
	return out
}

// RulesForPlanStrict is RulesForPlan but reports ErrUnknownPlan.
func (t RuleTable) RulesForPlanStrict(plan string) ([]BillingRule, error) {
	if !t.HasPlan(plan) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	return t.RulesForPlan(plan), nil
}

func (t RuleTable) HasPlan(plan string) bool {
	_, ok := t.plans[Plan(plan)]
	return ok
}

// Plans returns the configured plan names sorted alphabetically.
func (t RuleTable) Plans() []Plan {
	out := make([]Plan, 0, len(t.plans))
	for p := range t.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func validateRule(r BillingRule) error {
	if !r.Metric.Valid() {
		return fmt.Errorf("%w: metric %q", ErrInvalidRule, r.Metric)
	}
	if !r.Currency.Valid() {
		return fmt.Errorf("%w: currency %q", ErrInvalidRule, r.Currency)
	}
	if r.Limit.IsNegative() || r.CostPerUnit.IsNegative() {
		return fmt.Errorf("%w: negative limit or cost for %s", ErrInvalidRule, r.Metric)
	}
	return nil
}
