package tenants

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local demos.
// Reads are tenant-isolated the same way the SQL queries are.
type MemoryRepo struct {
	mu sync.Mutex

	Tenants []Tenant
	Users   []User
	Tickets []Ticket

	// Fail, when set, is returned by the method with the matching name
	// ("GetTenantByID", "ListTenants", "ListUsersByTenant", "ListTicketsByTenant")
	// for the given tenant ID ("" matches any tenant).
	Fail map[string]map[string]error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

// InjectFailure makes method fail with err for tenantID.
func (r *MemoryRepo) InjectFailure(method, tenantID string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail == nil {
		r.Fail = map[string]map[string]error{}
	}
	if r.Fail[method] == nil {
		r.Fail[method] = map[string]error{}
	}
	r.Fail[method][tenantID] = err
}

func (r *MemoryRepo) failure(method, tenantID string) error {
	byTenant := r.Fail[method]
	if byTenant == nil {
		return nil
	}
	if err := byTenant[tenantID]; err != nil {
		return err
	}
	return byTenant[""]
}

func (r *MemoryRepo) AddTickets(tickets ...Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tickets = append(r.Tickets, tickets...)
}

func (r *MemoryRepo) GetTenantByID(ctx context.Context, id string) (Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("GetTenantByID", id); err != nil {
		return Tenant{}, err
	}
	for _, t := range r.Tenants {
		if t.ID == id {
			return t, nil
		}
	}
	return Tenant{}, ErrNotFound
}

func (r *MemoryRepo) ListTenants(ctx context.Context) ([]Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("ListTenants", ""); err != nil {
		return nil, err
	}
	out := make([]Tenant, len(r.Tenants))
	copy(out, r.Tenants)
	return out, nil
}

func (r *MemoryRepo) ListUsersByTenant(ctx context.Context, tenantID string) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("ListUsersByTenant", tenantID); err != nil {
		return nil, err
	}
	out := make([]User, 0)
	for _, u := range r.Users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListTicketsByTenant(ctx context.Context, tenantID string) ([]Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failure("ListTicketsByTenant", tenantID); err != nil {
		return nil, err
	}
	out := make([]Ticket, 0)
	for _, t := range r.Tickets {
		if t.TenantID == tenantID {
			out = append(out, t)
		}
	}
	return out, nil
}
