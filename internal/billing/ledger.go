package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the ledger record for one (tenant, period) billing attempt.
type Run struct {
	ID          string          `json:"id" db:"id"`
	TenantID    string          `json:"tenant_id" db:"tenant_id"`
	Period      string          `json:"period" db:"period"`
	Status      RunStatus       `json:"status" db:"status"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	ChargeCount int             `json:"charge_count" db:"charge_count"`
	Attempts    int             `json:"attempts" db:"attempts"`
	LastError   string          `json:"last_error,omitempty" db:"last_error"`

	// Charges is the snapshot taken before the first provider call. A
	// reclaimed run bills exactly these charges again.
	Charges []OverageCharge `json:"charges,omitempty" db:"charges"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RunLedger guarantees at most one completed run per tenant and period.
//
// Begin claims the period: a completed run yields ErrAlreadyBilled, a fresh
// pending run yields ErrRunInProgress, and a failed or stale pending run is
// reclaimed with its attempt count incremented. Snapshot stores the charges
// of the first attempt; later attempts get them back on the reclaimed Run.
type RunLedger interface {
	Begin(ctx context.Context, tenantID, period string) (Run, error)
	Snapshot(ctx context.Context, runID string, charges []OverageCharge) error
	Complete(ctx context.Context, runID string, total decimal.Decimal, charges int) error
	Fail(ctx context.Context, runID string, cause error) error
	Get(ctx context.Context, tenantID, period string) (Run, bool, error)
}

// DefaultStaleAfter is how long a pending run may stay unfinished before
// another caller may reclaim it.
const DefaultStaleAfter = 30 * time.Minute

// claim applies the Begin state machine to an existing run.
func claim(r Run, now time.Time, staleAfter time.Duration) (Run, error) {
	switch r.Status {
	case RunStatusCompleted:
		return r, ErrAlreadyBilled
	case RunStatusPending:
		if now.Sub(r.UpdatedAt) < staleAfter {
			return r, ErrRunInProgress
		}
	}
	r.Status = RunStatusPending
	r.Attempts++
	r.LastError = ""
	r.UpdatedAt = now
	return r, nil
}

// MemoryLedger is an in-process RunLedger for tests and single-node demos.
type MemoryLedger struct {
	mu   sync.Mutex
	runs map[string]*Run // key: tenant_id|period
	byID map[string]string

	StaleAfter time.Duration
	clock      func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		runs:       map[string]*Run{},
		byID:       map[string]string{},
		StaleAfter: DefaultStaleAfter,
		clock:      time.Now,
	}
}

func ledgerKey(tenantID, period string) string { return tenantID + "|" + period }

func (l *MemoryLedger) Begin(ctx context.Context, tenantID, period string) (Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock().UTC()
	key := ledgerKey(tenantID, period)
	if existing, ok := l.runs[key]; ok {
		r, err := claim(*existing, now, l.StaleAfter)
		if err != nil {
			return r, err
		}
		*existing = r
		return r, nil
	}

	r := Run{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Period:      period,
		Status:      RunStatusPending,
		TotalAmount: decimal.Zero,
		Attempts:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	l.runs[key] = &r
	l.byID[r.ID] = key
	return r, nil
}

func (l *MemoryLedger) Snapshot(ctx context.Context, runID string, charges []OverageCharge) error {
	snap := make([]OverageCharge, len(charges))
	copy(snap, charges)
	return l.update(runID, func(r *Run) {
		r.Charges = snap
		r.TotalAmount = sumCharges(snap)
		r.ChargeCount = len(snap)
	})
}

func (l *MemoryLedger) Complete(ctx context.Context, runID string, total decimal.Decimal, charges int) error {
	return l.update(runID, func(r *Run) {
		r.Status = RunStatusCompleted
		r.TotalAmount = total
		r.ChargeCount = charges
		r.LastError = ""
	})
}

func (l *MemoryLedger) Fail(ctx context.Context, runID string, cause error) error {
	return l.update(runID, func(r *Run) {
		r.Status = RunStatusFailed
		if cause != nil {
			r.LastError = cause.Error()
		}
	})
}

func (l *MemoryLedger) Get(ctx context.Context, tenantID, period string) (Run, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.runs[ledgerKey(tenantID, period)]
	if !ok {
		return Run{}, false, nil
	}
	return *r, true, nil
}

func (l *MemoryLedger) update(runID string, fn func(*Run)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.byID[runID]
	if !ok {
		return ErrRunNotFound
	}
	r := l.runs[key]
	fn(r)
	r.UpdatedAt = l.clock().UTC()
	return nil
}
