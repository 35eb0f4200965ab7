package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tatuticket/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrRunNotFound = errors.New("billing: run not found")

// NOTE: PostgresLedger assumes:
//
//	CREATE TABLE billing_runs (
//	  id            uuid PRIMARY KEY,
//	  tenant_id     text NOT NULL,
//	  period        text NOT NULL,
//	  status        text NOT NULL,
//	  total_amount  numeric(18,2) NOT NULL DEFAULT 0,
//	  charge_count  integer NOT NULL DEFAULT 0,
//	  attempts      integer NOT NULL DEFAULT 1,
//	  last_error    text,
//	  charges       jsonb NOT NULL DEFAULT '[]',
//	  created_at    timestamptz NOT NULL,
//	  updated_at    timestamptz NOT NULL,
//	  UNIQUE (tenant_id, period)
//	);
type PostgresLedger struct {
	db          *sql.DB
	staleAfter  time.Duration
	// lockTimeout bounds the wait on another claimer's row lock.
	lockTimeout time.Duration
	clock       func() time.Time
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db, staleAfter: DefaultStaleAfter, lockTimeout: 5 * time.Second, clock: time.Now}
}

const runColumns = `id, tenant_id, period, status, total_amount, charge_count, attempts, COALESCE(last_error, ''), COALESCE(charges, '[]'::jsonb), created_at, updated_at`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		r       Run
		charges []byte
	)
	err := row.Scan(
		&r.ID,
		&r.TenantID,
		&r.Period,
		&r.Status,
		&r.TotalAmount,
		&r.ChargeCount,
		&r.Attempts,
		&r.LastError,
		&charges,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return Run{}, err
	}
	if len(charges) > 0 {
		if err := json.Unmarshal(charges, &r.Charges); err != nil {
			return Run{}, fmt.Errorf("decode run charges: %w", err)
		}
	}
	return r, nil
}

func (l *PostgresLedger) Begin(ctx context.Context, tenantID, period string) (Run, error) {
	now := l.clock().UTC()
	var out Run

	err := utils.WithTx(ctx, l.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := utils.SetLockTimeout(ctx, tx, l.lockTimeout); err != nil {
			return err
		}

		// The unique (tenant_id, period) constraint makes the insert a no-op
		// when another caller got there first; the row lock below then
		// serializes the state check.
		const ins = `
INSERT INTO billing_runs (id, tenant_id, period, status, total_amount, charge_count, attempts, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,0,1,$5,$5)
ON CONFLICT (tenant_id, period) DO NOTHING
`
		res, err := tx.ExecContext(ctx, ins, uuid.NewString(), tenantID, period, RunStatusPending, now)
		if err != nil {
			return fmt.Errorf("insert billing run: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return err
		}

		const sel = `SELECT ` + runColumns + ` FROM billing_runs WHERE tenant_id = $1 AND period = $2 FOR UPDATE`
		r, err := scanRun(tx.QueryRowContext(ctx, sel, tenantID, period))
		if err != nil {
			return fmt.Errorf("lock billing run: %w", err)
		}
		if inserted == 1 {
			out = r
			return nil
		}

		claimed, err := claim(r, now, l.staleAfter)
		if err != nil {
			out = claimed
			return err
		}
		const upd = `
UPDATE billing_runs
SET status = $2, attempts = $3, last_error = NULL, updated_at = $4
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, upd, claimed.ID, claimed.Status, claimed.Attempts, now); err != nil {
			return fmt.Errorf("reclaim billing run: %w", err)
		}
		out = claimed
		return nil
	})
	return out, err
}

func (l *PostgresLedger) Snapshot(ctx context.Context, runID string, charges []OverageCharge) error {
	if charges == nil {
		charges = []OverageCharge{}
	}
	raw, err := json.Marshal(charges)
	if err != nil {
		return fmt.Errorf("encode run charges: %w", err)
	}
	const q = `
UPDATE billing_runs
SET charges = $2, total_amount = $3, charge_count = $4, updated_at = $5
WHERE id = $1
`
	return l.exec(ctx, q, runID, raw, sumCharges(charges), len(charges), l.clock().UTC())
}

func (l *PostgresLedger) Complete(ctx context.Context, runID string, total decimal.Decimal, charges int) error {
	const q = `
UPDATE billing_runs
SET status = $2, total_amount = $3, charge_count = $4, last_error = NULL, updated_at = $5
WHERE id = $1
`
	return l.exec(ctx, q, runID, RunStatusCompleted, total, charges, l.clock().UTC())
}

func (l *PostgresLedger) Fail(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	const q = `
UPDATE billing_runs
SET status = $2, last_error = $3, updated_at = $4
WHERE id = $1
`
	return l.exec(ctx, q, runID, RunStatusFailed, msg, l.clock().UTC())
}

func (l *PostgresLedger) Get(ctx context.Context, tenantID, period string) (Run, bool, error) {
	const q = `SELECT ` + runColumns + ` FROM billing_runs WHERE tenant_id = $1 AND period = $2`
	r, err := scanRun(l.db.QueryRowContext(ctx, q, tenantID, period))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, fmt.Errorf("get billing run: %w", err)
	}
	return r, true, nil
}

func (l *PostgresLedger) exec(ctx context.Context, q string, args ...any) error {
	res, err := l.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update billing run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}
