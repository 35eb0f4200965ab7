package audit

import (
	"encoding/json"
	"time"
)

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - tenant_id is required for tenancy isolation.
type Event struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	Action       Action `json:"action" db:"action"`
	ResourceType string `json:"resource_type" db:"resource_type"`
	ResourceID   string `json:"resource_id,omitempty" db:"resource_id"`

	// ActorUserID is empty for scheduler-initiated events.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// Metadata is the JSON payload describing the event.
	Metadata json.RawMessage `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Action string

const (
	ActionAutomaticBillingProcessed Action = "automatic_billing_processed"
)

const ResourceBilling = "billing"
