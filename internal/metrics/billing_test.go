package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBillingMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg, "test")

	m.TenantRun(OutcomeCharged, 20*time.Millisecond)
	m.TenantRun(OutcomeCharged, 30*time.Millisecond)
	m.TenantRun(OutcomeFailed, time.Millisecond)
	m.InvoiceItemCreated()
	m.NotificationFailed()
	m.SchedulerTick(TickGated)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tenantRuns.WithLabelValues(OutcomeCharged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tenantRuns.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invoiceItems))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.schedulerTicks.WithLabelValues(TickGated)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.tenantRunDuration))
}

func TestBillingMetrics_NilIsNoop(t *testing.T) {
	var m *BillingMetrics
	m.TenantRun(OutcomeCharged, time.Second)
	m.InvoiceItemCreated()
	m.NotificationFailed()
	m.SchedulerTick(TickRan)
}
