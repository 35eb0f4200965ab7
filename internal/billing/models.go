package billing

import (
	"errors"
	"time"

	"tatuticket/internal/pricing"
	"tatuticket/internal/usage"

	"github.com/shopspring/decimal"
)

var (
	ErrTenantNotFound = errors.New("billing: tenant not found")
	ErrInvalidTenant  = errors.New("billing: tenant id required")
	ErrAlreadyBilled  = errors.New("billing: period already billed")
	ErrRunInProgress  = errors.New("billing: run in progress for period")
)

// OverageCharge is one metric billed above the plan allowance.
// It is computed per run and only persisted inside the audit metadata.
type OverageCharge struct {
	MetricType    pricing.MetricType `json:"metricType"`
	OverageAmount decimal.Decimal    `json:"overageAmount"`
	CostPerUnit   decimal.Decimal    `json:"costPerUnit"`
	TotalCost     decimal.Decimal    `json:"totalCost"`
	Currency      pricing.Currency   `json:"currency"`
	Description   string             `json:"description"`
}

// Summary is the read-only "current usage" projection for one tenant.
type Summary struct {
	TenantID        string                `json:"tenantId"`
	Plan            string                `json:"plan"`
	Usage           usage.Metrics         `json:"usage"`
	OverageCharges  []OverageCharge       `json:"overageCharges"`
	TotalOverage    decimal.Decimal       `json:"totalOverage"`
	Currency        pricing.Currency      `json:"currency"`
	NextBillingDate time.Time             `json:"nextBillingDate"`
	Rules           []pricing.BillingRule `json:"rules"`
}

// Result describes one ProcessTenantBilling call.
type Result struct {
	TenantID     string          `json:"tenantId"`
	Period       string          `json:"period"`
	RunID        string          `json:"runId,omitempty"`
	Charges      []OverageCharge `json:"charges"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	InvoiceItems int             `json:"invoiceItems"`
	Notified     int             `json:"notified"`

	// ProviderSkipped is set when invoice items were not created because
	// no provider or customer is configured.
	ProviderSkipped bool `json:"providerSkipped"`

	// Replayed is set when the charges come from an earlier failed attempt
	// of the same run rather than from fresh usage.
	Replayed bool `json:"replayed,omitempty"`
}

// RunReport summarises a fan-out over all tenants. Tenant IDs keep the
// order in which tenants were listed.
type RunReport struct {
	Processed     []string `json:"processed"`
	Skipped       []string `json:"skipped"`
	AlreadyBilled []string `json:"alreadyBilled"`
	Failed        []string `json:"failed"`
}

// auditMetadata is the payload of the automatic_billing_processed entry.
type auditMetadata struct {
	OverageCharges []OverageCharge `json:"overageCharges"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	ProcessedAt    time.Time       `json:"processedAt"`
	Period         string          `json:"period"`
}

func sumCharges(charges []OverageCharge) decimal.Decimal {
	total := decimal.Zero
	for _, c := range charges {
		total = total.Add(c.TotalCost)
	}
	return total
}

// chargesCurrency is the currency of the first charge, AOA when empty.
func chargesCurrency(charges []OverageCharge) pricing.Currency {
	if len(charges) == 0 || charges[0].Currency == "" {
		return pricing.CurrencyAOA
	}
	return charges[0].Currency
}
