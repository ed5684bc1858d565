package primary

import (
	"context"
	"time"

	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/core/unavailability"
)

// UnavailabilityService defines the primary port for unavailability operations.
type UnavailabilityService interface {
	// Submit declares an unavailability in pending state.
	Submit(ctx context.Context, req SubmitUnavailabilityRequest) (*unavailability.Unavailability, error)

	// Approve approves a pending request and scans affected rosters.
	Approve(ctx context.Context, req DecisionRequest) (*unavailability.Unavailability, error)

	// Refuse refuses a pending request.
	Refuse(ctx context.Context, req DecisionRequest) (*unavailability.Unavailability, error)

	// Cancel withdraws a pending or approved request.
	Cancel(ctx context.Context, req DecisionRequest) (*unavailability.Unavailability, error)

	// RecomputeImpact rescans active rosters for an approved request.
	RecomputeImpact(ctx context.Context, id string) (*unavailability.Unavailability, error)

	// Get retrieves an unavailability by ID.
	Get(ctx context.Context, id string) (*unavailability.Unavailability, error)

	// List lists unavailabilities with optional filters.
	List(ctx context.Context, filters UnavailabilityFilters) ([]*unavailability.Unavailability, error)
}

// SubmitUnavailabilityRequest contains parameters for declaring an absence.
type SubmitUnavailabilityRequest struct {
	Actor       identity.Actor
	UserID      string // empty means the actor
	Start       time.Time
	End         time.Time
	Reason      string
	Description string
	Priority    string
}

// DecisionRequest contains parameters for approve, refuse and cancel.
type DecisionRequest struct {
	Actor   identity.Actor
	ID      string
	Comment string // approve comment, or refusal/cancellation reason
}

// UnavailabilityFilters contains filter options for listing.
type UnavailabilityFilters struct {
	UserID string
	Status string
}
