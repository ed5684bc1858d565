// Package unavailability contains the approval workflow for declared absences.
// This is part of the Functional Core - no I/O, only pure functions.
package unavailability

import (
	"time"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/fault"
)

// Status represents the possible states of an unavailability.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRefused   Status = "refused"
	StatusCancelled Status = "cancelled"
)

// Reason is why the user is unavailable.
type Reason string

const (
	ReasonLeave    Reason = "conge"
	ReasonSick     Reason = "maladie"
	ReasonTraining Reason = "formation"
	ReasonMission  Reason = "mission"
	ReasonPersonal Reason = "personnel"
	ReasonOther    Reason = "autre"
)

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonLeave, ReasonSick, ReasonTraining, ReasonMission, ReasonPersonal, ReasonOther:
		return true
	}
	return false
}

// Priority of the request.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// ApprovalLevel records which rule authorized a decision.
type ApprovalLevel string

const (
	LevelSectorChief  ApprovalLevel = "sector_chief"
	LevelServiceChief ApprovalLevel = "service_chief"
	LevelAutomatic    ApprovalLevel = "automatic"
)

// Approval holds the decision on a request.
type Approval struct {
	ApproverID    string
	DecidedAt     *time.Time
	Comment       string
	Level         ApprovalLevel
	RefusalReason string
}

// AffectedRoster is an active roster holding slots for the user inside the
// unavailability window.
type AffectedRoster struct {
	RosterID string
	Dates    []time.Time
}

// Impact summarizes how an approved unavailability touches existing rosters.
type Impact struct {
	RecalcNeeded     bool
	Affected         []AffectedRoster
	ReplacementFound bool
	ScannedAt        *time.Time
}

// Cancellation records who withdrew a request and why.
type Cancellation struct {
	By     string
	At     *time.Time
	Reason string
}

// Unavailability is a declared absence over an inclusive day range.
type Unavailability struct {
	ID           string
	UserID       string
	Start        time.Time
	End          time.Time
	Reason       Reason
	Description  string
	Status       Status
	Priority     Priority
	Approval     Approval
	Impact       Impact
	Cancellation Cancellation
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int
}

// SubmitRequest carries the fields of a new request.
type SubmitRequest struct {
	UserID      string
	Start       time.Time
	End         time.Time
	Reason      Reason
	Description string
	Priority    Priority
	CreatedBy   string
}

// Submit validates a request and returns it in pending state.
// Rules:
// - end must not be before start
// - reason must be known
// - description is mandatory when reason is "autre"
func Submit(id string, req SubmitRequest, now time.Time) (*Unavailability, error) {
	if req.UserID == "" {
		return nil, fault.New(fault.KindValidation, "user is required")
	}
	start, end := calendar.Day(req.Start), calendar.Day(req.End)
	if end.Before(start) {
		return nil, fault.New(fault.KindValidation, "end %s is before start %s", calendar.FormatDay(end), calendar.FormatDay(start))
	}
	if !req.Reason.Valid() {
		return nil, fault.New(fault.KindValidation, "unknown reason %q", req.Reason)
	}
	if req.Reason == ReasonOther && req.Description == "" {
		return nil, fault.New(fault.KindValidation, "a description is required when reason is %q", ReasonOther)
	}
	priority := req.Priority
	switch priority {
	case "":
		priority = PriorityNormal
	case PriorityNormal, PriorityUrgent, PriorityCritical:
	default:
		return nil, fault.New(fault.KindValidation, "unknown priority %q", req.Priority)
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = req.UserID
	}

	return &Unavailability{
		ID:          id,
		UserID:      req.UserID,
		Start:       start,
		End:         end,
		Reason:      req.Reason,
		Description: req.Description,
		Status:      StatusPending,
		Priority:    priority,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (u *Unavailability) requirePending(op string) error {
	if u.Status != StatusPending {
		return fault.New(fault.KindValidation, "cannot %s unavailability %s in status %s", op, u.ID, u.Status)
	}
	return nil
}

// Approve records an approval. Impact is flagged for recalculation.
func (u *Unavailability) Approve(approverID string, level ApprovalLevel, comment string, now time.Time) error {
	if err := u.requirePending("approve"); err != nil {
		return err
	}
	u.Status = StatusApproved
	u.Approval = Approval{ApproverID: approverID, DecidedAt: &now, Comment: comment, Level: level}
	u.Impact.RecalcNeeded = true
	u.UpdatedAt = now
	return nil
}

// Refuse records a refusal with a mandatory reason.
func (u *Unavailability) Refuse(approverID string, level ApprovalLevel, reason string, now time.Time) error {
	if err := u.requirePending("refuse"); err != nil {
		return err
	}
	if reason == "" {
		return fault.New(fault.KindValidation, "a refusal reason is required")
	}
	u.Status = StatusRefused
	u.Approval = Approval{ApproverID: approverID, DecidedAt: &now, Level: level, RefusalReason: reason}
	u.UpdatedAt = now
	return nil
}

// Cancel withdraws a pending or approved request.
func (u *Unavailability) Cancel(actorID, reason string, now time.Time) error {
	if u.Status != StatusPending && u.Status != StatusApproved {
		return fault.New(fault.KindValidation, "cannot cancel unavailability %s in status %s", u.ID, u.Status)
	}
	u.Status = StatusCancelled
	u.Cancellation = Cancellation{By: actorID, At: &now, Reason: reason}
	u.Impact.RecalcNeeded = false
	u.UpdatedAt = now
	return nil
}

// Covers reports whether day falls inside the window.
func (u *Unavailability) Covers(day time.Time) bool {
	d := calendar.Day(day)
	return !d.Before(u.Start) && !d.After(u.End)
}
