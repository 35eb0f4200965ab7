package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("tenants: not found")

// Repository is the read side billing needs from tenant storage.
// Every list method is tenant scoped except ListTenants.
type Repository interface {
	GetTenantByID(ctx context.Context, id string) (Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	ListUsersByTenant(ctx context.Context, tenantID string) ([]User, error)
	ListTicketsByTenant(ctx context.Context, tenantID string) ([]Ticket, error)
}

// PostgresRepo reads the tenants, users and tickets tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const tenantColumns = `id, name, plan, status, COALESCE(stripe_customer_id, ''), created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (Tenant, error) {
	var t Tenant
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Plan,
		&t.Status,
		&t.StripeCustomerID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func (r *PostgresRepo) GetTenantByID(ctx context.Context, id string) (Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	t, err := scanTenant(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return t, nil
}

func (r *PostgresRepo) ListTenants(ctx context.Context) ([]Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListUsersByTenant(ctx context.Context, tenantID string) ([]User, error) {
	const q = `
SELECT id, tenant_id, email, COALESCE(name, ''), role, created_at
FROM users
WHERE tenant_id = $1
ORDER BY created_at, id
`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list users for %s: %w", tenantID, err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListTicketsByTenant(ctx context.Context, tenantID string) ([]Ticket, error) {
	const q = `
SELECT id, tenant_id, subject, status, COALESCE(priority, ''), created_at, updated_at
FROM tickets
WHERE tenant_id = $1
ORDER BY created_at, id
`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list tickets for %s: %w", tenantID, err)
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Subject, &t.Status, &t.Priority, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
