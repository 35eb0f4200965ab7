package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo writes to audit_logs. The table should reject UPDATE and
// DELETE (e.g. via trigger); this type never issues them.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_logs (
  id, tenant_id, action, resource_type, resource_id, actor_user_id, metadata, created_at
) VALUES (
  $1,$2,$3,$4,NULLIF($5, ''),NULLIF($6, ''),$7,$8
)
`
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = string(e.Metadata)
	}
	if _, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.TenantID,
		e.Action,
		e.ResourceType,
		e.ResourceID,
		e.ActorUserID,
		metadata,
		e.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
