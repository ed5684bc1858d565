package primary

import (
	"context"
	"time"

	"github.com/example/garde/internal/core/escalation"
	"github.com/example/garde/internal/core/identity"
)

// EscalationService defines the primary port for escalation operations.
type EscalationService interface {
	// Start opens a case and contacts the on-duty responder at level 1.
	Start(ctx context.Context, req StartEscalationRequest) (*escalation.Case, error)

	// EscalateToNext opens the next level of the chain.
	EscalateToNext(ctx context.Context, actor identity.Actor, caseID string) (*escalation.Case, error)

	// RecordContactAttempt logs an attempt on a level and requests delivery.
	RecordContactAttempt(ctx context.Context, req ContactAttemptRequest) (*escalation.ContactAttempt, error)

	// UpdateDeliveryStatus applies transport feedback to an attempt.
	UpdateDeliveryStatus(ctx context.Context, req DeliveryStatusRequest) error

	// RecordResponse records a responder's answer on a level.
	RecordResponse(ctx context.Context, req RecordResponseRequest) (*escalation.Case, error)

	// Resolve closes a case successfully.
	Resolve(ctx context.Context, req ResolveEscalationRequest) (*escalation.Case, error)

	// Cancel abandons an in-progress case.
	Cancel(ctx context.Context, actor identity.Actor, caseID, reason string) (*escalation.Case, error)

	// Fail ends a case nobody could take.
	Fail(ctx context.Context, actor identity.Actor, caseID, reason string) (*escalation.Case, error)

	// Forward hands the incident to a party outside the chain.
	Forward(ctx context.Context, actor identity.Actor, caseID, target, comment string) (*escalation.Case, error)

	// IsInTimeout reports whether the current level is unanswered past its timeout.
	IsInTimeout(ctx context.Context, caseID string) (bool, error)

	// GetEscalation retrieves a case by ID.
	GetEscalation(ctx context.Context, caseID string) (*escalation.Case, error)

	// ListEscalations lists cases with optional filters.
	ListEscalations(ctx context.Context, filters EscalationFilters) ([]*escalation.Case, error)
}

// StartEscalationRequest declares an incident.
type StartEscalationRequest struct {
	Actor        identity.Actor
	Description  string
	IncidentType string
	Priority     string
	IncidentTime time.Time // zero means now
	Site         string
	Sector       string
	Service      string
	Declarant    escalation.Declarant
}

// ContactAttemptRequest contains parameters for a contact attempt.
type ContactAttemptRequest struct {
	Actor   identity.Actor
	CaseID  string
	Level   int
	Channel string
}

// DeliveryStatusRequest carries transport feedback.
type DeliveryStatusRequest struct {
	CaseID  string
	Level   int
	Attempt int
	Status  string
}

// RecordResponseRequest contains a responder's answer.
type RecordResponseRequest struct {
	Actor        identity.Actor
	CaseID       string
	Level        int
	ResponseType string
	Comment      string
	ForwardedTo  string
	Method       string
}

// ResolveEscalationRequest contains parameters for resolving a case.
type ResolveEscalationRequest struct {
	Actor        identity.Actor
	CaseID       string
	Comment      string
	Method       string
	Satisfaction int
}

// EscalationFilters contains filter options for listing escalations.
type EscalationFilters struct {
	Status string
	Site   string
	Sector string
	Limit  int
}
