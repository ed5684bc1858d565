package primary

import (
	"context"
	"time"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/core/roster"
)

// RosterService defines the primary port for roster operations.
// Every call carries the authenticated actor in the request.
type RosterService interface {
	// CreateRoster creates an empty draft for a scope and period.
	CreateRoster(ctx context.Context, req CreateRosterRequest) (*roster.Roster, error)

	// GenerateRoster creates a draft filled by the rotation assigner.
	GenerateRoster(ctx context.Context, req CreateRosterRequest) (*GenerateRosterResponse, error)

	// GenerateBatch generates several independent scopes concurrently.
	GenerateBatch(ctx context.Context, reqs []CreateRosterRequest) ([]*GenerateRosterResponse, error)

	// GetRoster retrieves a roster by ID.
	GetRoster(ctx context.Context, rosterID string) (*roster.Roster, error)

	// ListRosters lists rosters with optional filters.
	ListRosters(ctx context.Context, filters RosterFilters) ([]*roster.Roster, error)

	// DeleteRoster deletes a draft roster.
	DeleteRoster(ctx context.Context, actor identity.Actor, rosterID string) error

	// AddAssignment adds a duty slot to a draft.
	AddAssignment(ctx context.Context, req AssignmentRequest) error

	// ReplaceAssignment hands a slot of a draft to another user.
	ReplaceAssignment(ctx context.Context, req AssignmentRequest) error

	// ConfirmAssignment marks a slot of a draft as confirmed.
	ConfirmAssignment(ctx context.Context, req AssignmentRequest) error

	// MarkAbsent marks the holder of a slot of a draft as absent.
	MarkAbsent(ctx context.Context, req AssignmentRequest) error

	// Submit moves a draft to pending_validation.
	Submit(ctx context.Context, actor identity.Actor, rosterID string) error

	// Approve validates a pending roster, blocked by conflicts unless overridden.
	Approve(ctx context.Context, req TransitionRequest) error

	// Reject sends a pending or validated roster back to draft.
	Reject(ctx context.Context, req TransitionRequest) error

	// Publish publishes a validated roster after a fresh conflict check.
	Publish(ctx context.Context, req TransitionRequest) error

	// Archive retires a roster.
	Archive(ctx context.Context, actor identity.Actor, rosterID string) error

	// DetectConflicts lists double-bookings against other active rosters.
	DetectConflicts(ctx context.Context, rosterID string) ([]fault.Conflict, error)

	// ResolveConflicts substitutes conflicting slots where possible.
	ResolveConflicts(ctx context.Context, actor identity.Actor, rosterID string) (*roster.Resolution, error)

	// WhoIsOnDuty returns the on-duty user for a scope at a time.
	WhoIsOnDuty(ctx context.Context, req OnDutyRequest) (*OnDuty, error)

	// CoverageDates previews the dates requiring coverage in a range.
	CoverageDates(ctx context.Context, start, end time.Time) ([]calendar.CoverageDate, error)
}

// CreateRosterRequest contains parameters for creating or generating a roster.
type CreateRosterRequest struct {
	Actor identity.Actor
	Scope identity.Scope
	Start time.Time
	End   time.Time
}

// GenerateRosterResponse is the outcome of a generation run.
type GenerateRosterResponse struct {
	Roster     *roster.Roster
	Candidates []string
	Uncovered  []calendar.CoverageDate
}

// AssignmentRequest targets one slot of a roster.
type AssignmentRequest struct {
	Actor       identity.Actor
	RosterID    string
	Date        time.Time
	UserID      string // add: the assignee
	Replacement string // replace: the new holder
	StartTime   string
	EndTime     string
	Comment     string
}

// TransitionRequest contains parameters for approve, reject and publish.
type TransitionRequest struct {
	Actor    identity.Actor
	RosterID string
	Reason   string // required for reject
	Override bool   // approve or publish despite conflicts
}

// RosterFilters contains filter options for listing rosters.
type RosterFilters struct {
	ScopeType string
	Site      string
	Sector    string
	Service   string
	Status    string
	UserID    string
}

// OnDutyRequest identifies a scope and instant.
type OnDutyRequest struct {
	Site    string
	Sector  string
	Service string // empty looks at sector rosters
	At      time.Time
}

// OnDuty is the answer to an on-duty lookup.
type OnDuty struct {
	UserID   string
	RosterID string
	Date     time.Time
}
