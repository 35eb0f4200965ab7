package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// invoiceItemCreator is the subset of the stripe-go invoice item client we use.
type invoiceItemCreator interface {
	New(params *stripe.InvoiceItemParams) (*stripe.InvoiceItem, error)
}

// StripeProvider creates Stripe invoice items on the tenant's customer.
type StripeProvider struct {
	items invoiceItemCreator
}

// NewStripeProvider builds a provider from a secret key. Keys that are not
// sk_ keys are rejected.
func NewStripeProvider(secretKey string) (*StripeProvider, error) {
	if !strings.HasPrefix(secretKey, "sk_") {
		return nil, errors.New("payments: stripe secret key must start with sk_")
	}
	sc := client.New(secretKey, nil)
	return &StripeProvider{items: sc.InvoiceItems}, nil
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreateInvoiceItem(ctx context.Context, item InvoiceItem) (InvoiceItemResult, error) {
	if err := item.validate(); err != nil {
		return InvoiceItemResult{}, err
	}

	params := &stripe.InvoiceItemParams{
		Params:      stripe.Params{Context: ctx},
		Customer:    stripe.String(item.CustomerID),
		Amount:      stripe.Int64(item.AmountMinor),
		Currency:    stripe.String(strings.ToLower(item.Currency)),
		Description: stripe.String(item.Description),
	}
	for k, v := range item.Metadata {
		params.AddMetadata(k, v)
	}
	if item.IdempotencyKey != "" {
		params.SetIdempotencyKey(item.IdempotencyKey)
	}

	ii, err := p.items.New(params)
	if err != nil {
		return InvoiceItemResult{}, fmt.Errorf("stripe: create invoice item: %w", err)
	}
	return InvoiceItemResult{ID: ii.ID}, nil
}
