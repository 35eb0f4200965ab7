package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tatuticket/internal/metrics"
	"tatuticket/internal/payments"
	"tatuticket/internal/pricing"
	"tatuticket/internal/tenants"
	"tatuticket/internal/usage"
	"tatuticket/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// TenantLister lists every tenant regardless of status.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]tenants.Tenant, error)
}

// AuditLogger records completed billing runs. *audit.Service satisfies it.
type AuditLogger interface {
	LogBillingProcessed(ctx context.Context, tenantID, runID string, metadata any) error
}

// Options tune a Processor. The zero value bills sequentially with no
// ledger, which means repeated runs in one period charge again.
type Options struct {
	Ledger      RunLedger
	Metrics     *metrics.BillingMetrics
	Logger      *slog.Logger
	Concurrency int
	// TenantTimeout bounds one tenant's pipeline during fan-out; 0 disables it.
	TenantTimeout time.Duration
	Clock         func() time.Time
}

// Processor runs the billing pipeline: usage, overage, invoice items,
// notification and audit, in that order.
type Processor struct {
	tenants  TenantLister
	calc     *Calculator
	provider payments.Provider
	notifier *Notifier
	audit    AuditLogger

	ledger        RunLedger
	metrics       *metrics.BillingMetrics
	log           *slog.Logger
	concurrency   int
	tenantTimeout time.Duration
	clock         func() time.Time
}

func NewProcessor(lister TenantLister, calc *Calculator, provider payments.Provider, notifier *Notifier, audit AuditLogger, opts Options) *Processor {
	if provider == nil {
		provider = payments.DisabledProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Processor{
		tenants:       lister,
		calc:          calc,
		provider:      provider,
		notifier:      notifier,
		audit:         audit,
		ledger:        opts.Ledger,
		metrics:       opts.Metrics,
		log:           opts.Logger,
		concurrency:   opts.Concurrency,
		tenantTimeout: opts.TenantTimeout,
		clock:         opts.Clock,
	}
}

// IdempotencyKey is the provider idempotency key for one charge.
func IdempotencyKey(tenantID, period string, metric pricing.MetricType) string {
	return fmt.Sprintf("overage:%s:%s:%s", tenantID, period, metric)
}

// ProcessTenantBilling bills one tenant for the current period.
//
// Missing tenants and storage or provider failures are returned. Email
// failures are not. With a ledger configured, a period that already
// completed returns ErrAlreadyBilled without side effects, and a retry of a
// failed run bills the charges snapshotted by its first attempt.
func (p *Processor) ProcessTenantBilling(ctx context.Context, tenantID string) (res Result, err error) {
	start := p.clock()
	period := usage.PeriodKey(start)
	ctx, log := logger.Tenant(ctx, p.log, tenantID)
	log = log.With("period", period)

	outcome := metrics.OutcomeFailed
	defer func() { p.metrics.TenantRun(outcome, p.clock().Sub(start)) }()

	t, err := p.calc.loadTenant(ctx, tenantID)
	if err != nil {
		return Result{}, err
	}

	_, charges, err := p.calc.chargesFor(ctx, t)
	if err != nil {
		return Result{}, fmt.Errorf("calculate overage for %s: %w", tenantID, err)
	}

	res = Result{TenantID: tenantID, Period: period, Charges: charges}
	if len(charges) == 0 {
		log.InfoContext(ctx, "no overage for tenant")
		outcome = metrics.OutcomeNoOverage
		return res, nil
	}
	res.TotalAmount = sumCharges(charges)

	var run Run
	if p.ledger != nil {
		run, err = p.ledger.Begin(ctx, tenantID, period)
		if err != nil {
			if errors.Is(err, ErrAlreadyBilled) {
				outcome = metrics.OutcomeDuplicated
				log.InfoContext(ctx, "period already billed", "run_id", run.ID)
			}
			return res, err
		}
		res.RunID = run.ID
		defer func() {
			if err != nil {
				if ferr := p.ledger.Fail(context.WithoutCancel(ctx), run.ID, err); ferr != nil {
					log.ErrorContext(ctx, "mark billing run failed", "run_id", run.ID, "err", ferr)
				}
			}
		}()

		if len(run.Charges) > 0 {
			// Earlier attempts may already have reached the provider with these
			// amounts under the same idempotency keys.
			log.InfoContext(ctx, "replaying charges from earlier attempt",
				"run_id", run.ID,
				"attempt", run.Attempts,
				"recomputed_total", res.TotalAmount.StringFixed(2),
			)
			charges = run.Charges
			res.Charges = charges
			res.TotalAmount = sumCharges(charges)
			res.Replayed = true
		} else if err = p.ledger.Snapshot(ctx, run.ID, charges); err != nil {
			return res, fmt.Errorf("snapshot billing run for %s: %w", tenantID, err)
		}
	}

	created, skipped, err := p.createInvoiceItems(ctx, log, t, period, charges)
	res.InvoiceItems = created
	res.ProviderSkipped = skipped
	if err != nil {
		return res, err
	}

	if p.notifier != nil {
		res.Notified = p.notifier.SendBillingNotification(ctx, t, charges, res.TotalAmount)
	}

	meta := auditMetadata{
		OverageCharges: charges,
		TotalAmount:    res.TotalAmount,
		ProcessedAt:    p.clock().UTC(),
		Period:         period,
	}
	if err = p.audit.LogBillingProcessed(ctx, tenantID, run.ID, meta); err != nil {
		return res, fmt.Errorf("audit billing run for %s: %w", tenantID, err)
	}

	if p.ledger != nil {
		if err = p.ledger.Complete(ctx, run.ID, res.TotalAmount, len(charges)); err != nil {
			return res, fmt.Errorf("complete billing run for %s: %w", tenantID, err)
		}
	}

	outcome = metrics.OutcomeCharged
	log.InfoContext(ctx, "tenant billing processed",
		"charges", len(charges),
		"total_amount", res.TotalAmount.StringFixed(2),
		"invoice_items", res.InvoiceItems,
		"notified", res.Notified,
	)
	return res, nil
}

// createInvoiceItems creates one provider item per charge. skipped reports
// the degraded path where no provider or customer is configured.
func (p *Processor) createInvoiceItems(ctx context.Context, log *slog.Logger, t tenants.Tenant, period string, charges []OverageCharge) (created int, skipped bool, err error) {
	if t.StripeCustomerID == "" {
		log.WarnContext(ctx, "tenant has no payment customer; invoice items skipped")
		return 0, true, nil
	}

	for _, c := range charges {
		item := payments.InvoiceItem{
			CustomerID:  t.StripeCustomerID,
			AmountMinor: pricing.ToMinorUnits(c.TotalCost),
			Currency:    c.Currency.ProviderCode(),
			Description: c.Description,
			Metadata: map[string]string{
				"tenantId":      t.ID,
				"metricType":    string(c.MetricType),
				"overageAmount": c.OverageAmount.String(),
				"costPerUnit":   c.CostPerUnit.StringFixed(2),
				"period":        period,
			},
		}
		if p.ledger != nil {
			item.IdempotencyKey = IdempotencyKey(t.ID, period, c.MetricType)
		}

		if _, err := p.provider.CreateInvoiceItem(ctx, item); err != nil {
			if errors.Is(err, payments.ErrProviderDisabled) {
				log.InfoContext(ctx, "payment provider disabled; invoice items skipped")
				return created, true, nil
			}
			return created, false, fmt.Errorf("create invoice item %s for %s: %w", c.MetricType, t.ID, err)
		}
		created++
		p.metrics.InvoiceItemCreated()
	}
	return created, false, nil
}

// ProcessAutomaticBilling bills every active tenant. Per-tenant failures are
// logged and reported, never returned; only listing tenants can fail the call.
func (p *Processor) ProcessAutomaticBilling(ctx context.Context) (RunReport, error) {
	all, err := p.tenants.ListTenants(ctx)
	if err != nil {
		return RunReport{}, fmt.Errorf("list tenants: %w", err)
	}

	var report RunReport
	active := make([]tenants.Tenant, 0, len(all))
	for _, t := range all {
		if !t.IsActive() {
			report.Skipped = append(report.Skipped, t.ID)
			p.metrics.TenantRun(metrics.OutcomeSkipped, 0)
			continue
		}
		active = append(active, t)
	}

	p.log.InfoContext(ctx, "automatic billing started", "tenants", len(active), "concurrency", p.concurrency)

	outcomes := make([]error, len(active))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, t := range active {
		g.Go(func() error {
			tctx := ctx
			if p.tenantTimeout > 0 {
				var cancel context.CancelFunc
				tctx, cancel = context.WithTimeout(ctx, p.tenantTimeout)
				defer cancel()
			}
			_, err := p.ProcessTenantBilling(tctx, t.ID)
			if err != nil && !errors.Is(err, ErrAlreadyBilled) {
				p.log.ErrorContext(ctx, "tenant billing failed", "tenant_id", t.ID, "err", err)
			}
			outcomes[i] = err
			return nil
		})
	}
	_ = g.Wait()

	for i, t := range active {
		switch err := outcomes[i]; {
		case err == nil:
			report.Processed = append(report.Processed, t.ID)
		case errors.Is(err, ErrAlreadyBilled):
			report.AlreadyBilled = append(report.AlreadyBilled, t.ID)
		default:
			report.Failed = append(report.Failed, t.ID)
		}
	}

	p.log.InfoContext(ctx, "automatic billing finished",
		"processed", len(report.Processed),
		"skipped", len(report.Skipped),
		"already_billed", len(report.AlreadyBilled),
		"failed", len(report.Failed),
	)
	return report, nil
}
