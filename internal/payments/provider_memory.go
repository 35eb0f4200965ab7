package payments

import (
	"context"
	"fmt"
	"sync"
)

// MemoryProvider records invoice items in memory. Items sharing an
// idempotency key are stored once; reusing a key for a different charge
// fails with ErrIdempotencyConflict, as Stripe does.
type MemoryProvider struct {
	mu    sync.Mutex
	items []InvoiceItem
	byKey map[string]int // key: idempotency key, value: index into items

	// Err, when set, is returned instead of recording the item.
	Err error
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{byKey: map[string]int{}}
}

func (p *MemoryProvider) Name() string { return "memory" }

func (p *MemoryProvider) CreateInvoiceItem(ctx context.Context, item InvoiceItem) (InvoiceItemResult, error) {
	if err := item.validate(); err != nil {
		return InvoiceItemResult{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return InvoiceItemResult{}, p.Err
	}
	if item.IdempotencyKey != "" {
		if idx, ok := p.byKey[item.IdempotencyKey]; ok {
			if !sameCharge(p.items[idx], item) {
				return InvoiceItemResult{}, fmt.Errorf("%w: %s", ErrIdempotencyConflict, item.IdempotencyKey)
			}
			return InvoiceItemResult{ID: itemID(idx)}, nil
		}
	}
	p.items = append(p.items, item)
	idx := len(p.items) - 1
	if item.IdempotencyKey != "" {
		p.byKey[item.IdempotencyKey] = idx
	}
	return InvoiceItemResult{ID: itemID(idx)}, nil
}

func itemID(idx int) string { return fmt.Sprintf("ii_%d", idx+1) }

func sameCharge(a, b InvoiceItem) bool {
	return a.CustomerID == b.CustomerID &&
		a.AmountMinor == b.AmountMinor &&
		a.Currency == b.Currency &&
		a.Description == b.Description
}

func (p *MemoryProvider) Items() []InvoiceItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]InvoiceItem, len(p.items))
	copy(out, p.items)
	return out
}
