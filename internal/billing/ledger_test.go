package billing

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_StateMachine(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewMemoryLedger()
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	run, err := l.Begin(ctx, "t1", "2026-03")
	require.NoError(t, err)
	assert.Equal(t, RunStatusPending, run.Status)

	_, err = l.Begin(ctx, "t1", "2026-03")
	assert.ErrorIs(t, err, ErrRunInProgress)

	now = now.Add(DefaultStaleAfter)
	stale, err := l.Begin(ctx, "t1", "2026-03")
	require.NoError(t, err, "stale pending runs are reclaimed")
	assert.Equal(t, 2, stale.Attempts)

	require.NoError(t, l.Fail(ctx, run.ID, errors.New("boom")))
	retry, err := l.Begin(ctx, "t1", "2026-03")
	require.NoError(t, err)
	assert.Equal(t, 3, retry.Attempts)

	require.NoError(t, l.Complete(ctx, run.ID, decimal.NewFromInt(10), 1))
	_, err = l.Begin(ctx, "t1", "2026-03")
	assert.ErrorIs(t, err, ErrAlreadyBilled)

	_, err = l.Begin(ctx, "t1", "2026-04")
	assert.NoError(t, err, "next period is independent")

	assert.ErrorIs(t, l.Complete(ctx, "nope", decimal.Zero, 0), ErrRunNotFound)
}

func TestMemoryLedger_SnapshotSurvivesReclaim(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	charges := []OverageCharge{{MetricType: "tickets", TotalCost: decimal.NewFromInt(22500)}}

	run, err := l.Begin(ctx, "t1", "2026-03")
	require.NoError(t, err)
	require.NoError(t, l.Snapshot(ctx, run.ID, charges))
	charges[0].TotalCost = decimal.NewFromInt(1)
	require.NoError(t, l.Fail(ctx, run.ID, errors.New("audit")))

	retry, err := l.Begin(ctx, "t1", "2026-03")
	require.NoError(t, err)
	require.Len(t, retry.Charges, 1)
	assert.True(t, retry.Charges[0].TotalCost.Equal(decimal.NewFromInt(22500)), "snapshot is a copy")
	assert.True(t, retry.TotalAmount.Equal(decimal.NewFromInt(22500)))
}

var runCols = []string{"id", "tenant_id", "period", "status", "total_amount", "charge_count", "attempts", "last_error", "charges", "created_at", "updated_at"}

func newMockLedger(t *testing.T, now time.Time) (*PostgresLedger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	l := NewPostgresLedger(db)
	l.clock = func() time.Time { return now }
	return l, mock
}

func TestPostgresLedger_BeginInsertsNewRun(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l, mock := newMockLedger(t, now)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '5000ms'`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO billing_runs`)).
		WithArgs(sqlmock.AnyArg(), "t1", "2026-03", RunStatusPending, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM billing_runs WHERE tenant_id = $1 AND period = $2 FOR UPDATE`)).
		WithArgs("t1", "2026-03").
		WillReturnRows(sqlmock.NewRows(runCols).AddRow("r1", "t1", "2026-03", "pending", "0", 0, 1, "", "[]", now, now))
	mock.ExpectCommit()

	run, err := l.Begin(context.Background(), "t1", "2026-03")
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID)
	assert.Equal(t, RunStatusPending, run.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_BeginRejectsCompletedPeriod(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l, mock := newMockLedger(t, now)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '5000ms'`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO billing_runs`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("t1", "2026-03").
		WillReturnRows(sqlmock.NewRows(runCols).AddRow("r1", "t1", "2026-03", "completed", "22500.00", 1, 1, "", "[]", now, now))
	mock.ExpectRollback()

	_, err := l.Begin(context.Background(), "t1", "2026-03")
	assert.ErrorIs(t, err, ErrAlreadyBilled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_BeginReclaimsFailedRun(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l, mock := newMockLedger(t, now)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET LOCAL lock_timeout = '5000ms'`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO billing_runs`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows(runCols).AddRow("r1", "t1", "2026-03", "failed", "0", 0, 1, "stripe 500", `[{"metricType":"tickets","overageAmount":"30","costPerUnit":"750","totalCost":"22500","currency":"AOA","description":"30 tickets excedentes × Kz 750.00"}]`, now, now))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE billing_runs`)).
		WithArgs("r1", RunStatusPending, 2, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	run, err := l.Begin(context.Background(), "t1", "2026-03")
	require.NoError(t, err)
	assert.Equal(t, 2, run.Attempts)
	assert.Empty(t, run.LastError)
	require.Len(t, run.Charges, 1)
	assert.True(t, run.Charges[0].TotalCost.Equal(decimal.NewFromInt(22500)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_CompleteUnknownRun(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l, mock := newMockLedger(t, now)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE billing_runs`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := l.Complete(context.Background(), "missing", decimal.NewFromInt(1), 1)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestPostgresLedger_SnapshotStoresCharges(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l, mock := newMockLedger(t, now)

	charges := []OverageCharge{{MetricType: "tickets", TotalCost: decimal.NewFromInt(22500)}}
	mock.ExpectExec(regexp.QuoteMeta(`SET charges = $2`)).
		WithArgs("r1", sqlmock.AnyArg(), decimal.NewFromInt(22500), 1, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, l.Snapshot(context.Background(), "r1", charges))
	require.NoError(t, mock.ExpectationsWereMet())
}
