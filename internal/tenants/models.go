package tenants

import "time"

// Tenant is a TatuTicket customer organization.
// Billing only reads tenants; plan and status are owned by the admin portal.
type Tenant struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Plan   string `json:"plan" db:"plan"`
	Status Status `json:"status" db:"status"`

	// StripeCustomerID is empty for tenants never registered with the provider.
	StripeCustomerID string `json:"stripe_customer_id,omitempty" db:"stripe_customer_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (t Tenant) IsActive() bool { return t.Status == StatusActive }

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// User belongs to exactly one tenant.
type User struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Email    string `json:"email" db:"email"`
	Name     string `json:"name" db:"name"`
	Role     string `json:"role" db:"role"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Ticket is a support ticket. Only creation time matters for billing.
type Ticket struct {
	ID       string       `json:"id" db:"id"`
	TenantID string       `json:"tenant_id" db:"tenant_id"`
	Subject  string       `json:"subject" db:"subject"`
	Status   TicketStatus `json:"status" db:"status"`
	Priority string       `json:"priority,omitempty" db:"priority"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)
