package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeCharged    = "charged"
	OutcomeNoOverage  = "no_overage"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
	OutcomeDuplicated = "already_billed"
)

const (
	TickRan     = "ran"
	TickGated   = "not_first_of_month"
	TickLeased  = "lease_held_elsewhere"
	TickErrored = "error"
)

// BillingMetrics instruments billing runs. A nil *BillingMetrics is valid
// and records nothing.
type BillingMetrics struct {
	tenantRuns           *prometheus.CounterVec
	tenantRunDuration    prometheus.Histogram
	invoiceItems         prometheus.Counter
	notificationFailures prometheus.Counter
	schedulerTicks       *prometheus.CounterVec
}

// NewBillingMetrics registers the billing collectors on registerer
// (prometheus.DefaultRegisterer when nil).
func NewBillingMetrics(registerer prometheus.Registerer, environment string) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	environment = strings.TrimSpace(environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"service": "tatuticket", "env": environment}

	m := &BillingMetrics{
		tenantRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tatuticket_billing_tenant_runs_total",
			Help:        "Per-tenant billing runs by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		tenantRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "tatuticket_billing_tenant_run_duration_seconds",
			Help:        "Wall time of one tenant billing run.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			ConstLabels: constLabels,
		}),
		invoiceItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tatuticket_billing_invoice_items_total",
			Help:        "Invoice items created at the payment provider.",
			ConstLabels: constLabels,
		}),
		notificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "tatuticket_billing_notification_failures_total",
			Help:        "Billing notification emails that failed to send.",
			ConstLabels: constLabels,
		}),
		schedulerTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tatuticket_billing_scheduler_ticks_total",
			Help:        "Scheduler ticks by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
	}

	registerer.MustRegister(
		m.tenantRuns,
		m.tenantRunDuration,
		m.invoiceItems,
		m.notificationFailures,
		m.schedulerTicks,
	)
	return m
}

func (m *BillingMetrics) TenantRun(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.tenantRuns.WithLabelValues(outcome).Inc()
	m.tenantRunDuration.Observe(took.Seconds())
}

func (m *BillingMetrics) InvoiceItemCreated() {
	if m == nil {
		return
	}
	m.invoiceItems.Inc()
}

func (m *BillingMetrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notificationFailures.Inc()
}

func (m *BillingMetrics) SchedulerTick(result string) {
	if m == nil {
		return
	}
	m.schedulerTicks.WithLabelValues(result).Inc()
}
