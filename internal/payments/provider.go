package payments

import (
	"context"
	"errors"
)

// Provider is the payment-provider boundary used by billing.
//
// Rules:
// - No provider SDK calls outside this package.
// - Amounts are integer minor units; currency codes are lowercase ISO 4217.
type Provider interface {
	Name() string
	CreateInvoiceItem(ctx context.Context, item InvoiceItem) (InvoiceItemResult, error)
}

// InvoiceItem is a pending charge attached to a customer's next invoice.
type InvoiceItem struct {
	CustomerID  string
	AmountMinor int64
	Currency    string
	Description string

	// Metadata is copied onto the provider record for reconciliation.
	Metadata map[string]string

	// IdempotencyKey, when set, makes retries of the same item a no-op at
	// the provider.
	IdempotencyKey string
}

type InvoiceItemResult struct {
	ID string
}

var (
	// ErrProviderDisabled means no usable credentials are configured.
	ErrProviderDisabled = errors.New("payments: provider disabled")
	ErrInvalidItem      = errors.New("payments: invalid invoice item")
	ErrNoCustomer       = errors.New("payments: tenant has no provider customer")

	// ErrIdempotencyConflict means a key was reused with different parameters.
	ErrIdempotencyConflict = errors.New("payments: idempotency key reused with different parameters")
)

func (i InvoiceItem) validate() error {
	if i.CustomerID == "" {
		return ErrNoCustomer
	}
	if i.AmountMinor <= 0 || i.Currency == "" || i.Description == "" {
		return ErrInvalidItem
	}
	return nil
}

// DisabledProvider is used when no live key is configured. Every call
// returns ErrProviderDisabled so callers can take the skip path.
type DisabledProvider struct{}

func (DisabledProvider) Name() string { return "disabled" }

func (DisabledProvider) CreateInvoiceItem(ctx context.Context, item InvoiceItem) (InvoiceItemResult, error) {
	return InvoiceItemResult{}, ErrProviderDisabled
}
