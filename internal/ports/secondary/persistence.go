// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"

	"github.com/example/garde/internal/core/escalation"
	"github.com/example/garde/internal/core/roster"
	"github.com/example/garde/internal/core/unavailability"
)

// Aggregates are loaded and saved as a unit together with their child rows
// (assignments, levels, attempts, history). Update uses optimistic locking:
// the stored version must equal the aggregate's Version, which is then
// incremented; a mismatch fails with fault.KindConcurrencyConflict.

// RosterRepository defines the secondary port for roster persistence.
type RosterRepository interface {
	// Create persists a new roster with its assignments.
	Create(ctx context.Context, r *roster.Roster) error

	// GetByID retrieves a roster by its ID.
	GetByID(ctx context.Context, id string) (*roster.Roster, error)

	// Update replaces the stored roster and its assignments.
	Update(ctx context.Context, r *roster.Roster) error

	// Delete removes a roster and its assignments.
	Delete(ctx context.Context, id string) error

	// List retrieves rosters matching the given filters, ordered by period start then ID.
	List(ctx context.Context, filters RosterFilters) ([]*roster.Roster, error)

	// GetNextID returns the next available roster ID.
	GetNextID(ctx context.Context) (string, error)
}

// RosterFilters contains filter options for querying rosters.
// Zero values mean "no filter".
type RosterFilters struct {
	ScopeType       string
	Site            string
	Sector          string
	Service         string
	Statuses        []string
	OverlapStart    *time.Time // period intersects [OverlapStart, OverlapEnd]
	OverlapEnd      *time.Time
	StartsOnOrAfter *time.Time
	UserID          string // has an assignment held or covered by this user
}

// UnavailabilityRepository defines the secondary port for unavailability persistence.
type UnavailabilityRepository interface {
	// Create persists a new unavailability.
	Create(ctx context.Context, u *unavailability.Unavailability) error

	// GetByID retrieves an unavailability by its ID.
	GetByID(ctx context.Context, id string) (*unavailability.Unavailability, error)

	// Update replaces the stored unavailability and its impact rows.
	Update(ctx context.Context, u *unavailability.Unavailability) error

	// List retrieves unavailabilities matching the given filters, ordered by start.
	List(ctx context.Context, filters UnavailabilityFilters) ([]*unavailability.Unavailability, error)

	// GetNextID returns the next available unavailability ID.
	GetNextID(ctx context.Context) (string, error)
}

// UnavailabilityFilters contains filter options for querying unavailabilities.
type UnavailabilityFilters struct {
	UserID       string
	UserIDs      []string
	Statuses     []string
	OverlapStart *time.Time
	OverlapEnd   *time.Time
}

// EscalationRepository defines the secondary port for escalation persistence.
type EscalationRepository interface {
	// Create persists a new case.
	Create(ctx context.Context, c *escalation.Case) error

	// GetByID retrieves a case with its levels, attempts and history.
	GetByID(ctx context.Context, id string) (*escalation.Case, error)

	// Update replaces the stored case.
	Update(ctx context.Context, c *escalation.Case) error

	// List retrieves cases matching the given filters, newest first.
	List(ctx context.Context, filters EscalationFilters) ([]*escalation.Case, error)

	// GetNextID returns the next available case ID.
	GetNextID(ctx context.Context) (string, error)
}

// EscalationFilters contains filter options for querying escalations.
type EscalationFilters struct {
	Status string
	Site   string
	Sector string
	Limit  int
}
