package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: there are no Update or Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TenantID == "" || e.Action == "" || e.ResourceType == "" {
		return ErrInvalidEvent
	}
	if len(e.Metadata) > 0 && !json.Valid(e.Metadata) {
		return fmt.Errorf("%w: metadata is not valid JSON", ErrInvalidEvent)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogBillingProcessed records one completed billing run for tenantID.
// metadata is marshalled to JSON as-is.
func (s *Service) LogBillingProcessed(ctx context.Context, tenantID, runID string, metadata any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("audit: encode billing metadata: %w", err)
	}
	return s.Append(ctx, Event{
		TenantID:     tenantID,
		Action:       ActionAutomaticBillingProcessed,
		ResourceType: ResourceBilling,
		ResourceID:   runID,
		Metadata:     raw,
	})
}
