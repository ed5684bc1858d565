// Package roster contains the Roster aggregate: its duty assignments, its
// lifecycle state machine and the double-booking conflict detector.
// This is part of the Functional Core - no I/O, only pure functions.
package roster

import (
	"sort"
	"time"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/core/rotation"
)

// Status represents the possible states of a roster.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusPendingValidation Status = "pending_validation"
	StatusValidated         Status = "validated"
	StatusPublished         Status = "published"
	StatusArchived          Status = "archived"
)

// AllStatuses lists every roster status in lifecycle order.
var AllStatuses = []Status{StatusDraft, StatusPendingValidation, StatusValidated, StatusPublished, StatusArchived}

// IsActive reports whether rosters in this status count for conflicts, load
// and on-duty lookups.
func IsActive(s Status) bool {
	return s == StatusValidated || s == StatusPublished
}

// AssignmentStatus is the state of a single duty slot.
type AssignmentStatus string

const (
	AssignmentPlanned   AssignmentStatus = "planned"
	AssignmentConfirmed AssignmentStatus = "confirmed"
	AssignmentAbsent    AssignmentStatus = "absent"
	AssignmentReplaced  AssignmentStatus = "replaced"
)

// Default duty hours for a coverage day.
const (
	DefaultStartTime = "08:00"
	DefaultEndTime   = "20:00"
)

// Assignment is one user on duty for one date.
type Assignment struct {
	Date        time.Time
	UserID      string
	Status      AssignmentStatus
	Replacement string
	StartTime   string
	EndTime     string
	Comment     string
	Coverage    calendar.CoverageType
}

// EffectiveUser returns who actually holds the slot: the replacement when one
// is set, nobody for an absence without replacement, the assignee otherwise.
func (a Assignment) EffectiveUser() string {
	if a.Replacement != "" {
		return a.Replacement
	}
	if a.Status == AssignmentAbsent {
		return ""
	}
	return a.UserID
}

// GenerationMeta records how a generated roster was built.
type GenerationMeta struct {
	Algorithm    string
	LookbackDays int
	Candidates   []string
	Uncovered    []time.Time
	Stats        rotation.Stats
}

// Validation tracks the approval workflow.
type Validation struct {
	RequestedBy     string
	RequestedAt     *time.Time
	ApprovedBy      string
	ApprovedAt      *time.Time
	PublishedAt     *time.Time
	Rejected        bool
	RejectionReason string
}

// Roster is a duty schedule for one scope over an inclusive period.
type Roster struct {
	ID          string
	Scope       identity.Scope
	Start       time.Time
	End         time.Time
	Status      Status
	Assignments []Assignment // ordered by date, at most one per date
	Meta        *GenerationMeta
	Validation  Validation
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ArchivedAt  *time.Time
	Version     int
}

// New creates an empty draft.
// Rules:
// - scope must be well formed (service present iff service-typed)
// - end must be strictly after start
func New(id string, scope identity.Scope, start, end time.Time, createdBy string, now time.Time) (*Roster, error) {
	if !scope.Valid() {
		return nil, fault.New(fault.KindValidation, "invalid roster scope %+v", scope)
	}
	start, end = calendar.Day(start), calendar.Day(end)
	if !end.After(start) {
		return nil, fault.New(fault.KindValidation, "roster period end %s must be after start %s",
			calendar.FormatDay(end), calendar.FormatDay(start))
	}
	return &Roster{
		ID:        id,
		Scope:     scope,
		Start:     start,
		End:       end,
		Status:    StatusDraft,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Contains reports whether day falls inside the roster period.
func (r *Roster) Contains(day time.Time) bool {
	d := calendar.Day(day)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Overlaps reports whether the two periods intersect.
func (r *Roster) Overlaps(o *Roster) bool {
	return !(r.End.Before(o.Start) || r.Start.After(o.End))
}

// AssignmentOn returns the index of the assignment for day, or -1.
func (r *Roster) AssignmentOn(day time.Time) int {
	d := calendar.Day(day)
	for i, a := range r.Assignments {
		if a.Date.Equal(d) {
			return i
		}
	}
	return -1
}

// OnDuty returns the effective user for day, if any.
func (r *Roster) OnDuty(day time.Time) (string, bool) {
	i := r.AssignmentOn(day)
	if i < 0 {
		return "", false
	}
	u := r.Assignments[i].EffectiveUser()
	return u, u != ""
}

// EffectiveUsers lists the effective user of every assignment, in date order.
func (r *Roster) EffectiveUsers() []string {
	users := make([]string, 0, len(r.Assignments))
	for _, a := range r.Assignments {
		if u := a.EffectiveUser(); u != "" {
			users = append(users, u)
		}
	}
	return users
}

func (r *Roster) checkEditable() error {
	if r.Status != StatusDraft {
		return fault.New(fault.KindRosterNotEditable, "roster %s is %s; assignments can only change while draft", r.ID, r.Status)
	}
	return nil
}

func (r *Roster) find(day time.Time) (int, error) {
	i := r.AssignmentOn(day)
	if i < 0 {
		return -1, fault.New(fault.KindNotFound, "roster %s has no assignment on %s", r.ID, calendar.FormatDay(day))
	}
	return i, nil
}

// AddAssignment inserts a planned assignment keeping date order.
// Rules:
// - roster must be draft
// - date must fall inside the period
// - at most one assignment per date
func (r *Roster) AddAssignment(a Assignment, now time.Time) error {
	if err := r.checkEditable(); err != nil {
		return err
	}
	if a.UserID == "" {
		return fault.New(fault.KindValidation, "assignment user is required")
	}
	a.Date = calendar.Day(a.Date)
	if !r.Contains(a.Date) {
		return fault.New(fault.KindValidation, "date %s is outside roster period %s..%s",
			calendar.FormatDay(a.Date), calendar.FormatDay(r.Start), calendar.FormatDay(r.End))
	}
	if r.AssignmentOn(a.Date) >= 0 {
		return fault.New(fault.KindDuplicateAssignment, "roster %s already has an assignment on %s", r.ID, calendar.FormatDay(a.Date))
	}
	if a.Status == "" {
		a.Status = AssignmentPlanned
	}
	if a.StartTime == "" {
		a.StartTime = DefaultStartTime
	}
	if a.EndTime == "" {
		a.EndTime = DefaultEndTime
	}

	r.Assignments = append(r.Assignments, a)
	sort.SliceStable(r.Assignments, func(i, j int) bool { return r.Assignments[i].Date.Before(r.Assignments[j].Date) })
	r.UpdatedAt = now
	return nil
}

// ReplaceAssignment hands the slot on day to replacement.
func (r *Roster) ReplaceAssignment(day time.Time, replacement, comment string, now time.Time) error {
	if err := r.checkEditable(); err != nil {
		return err
	}
	i, err := r.find(day)
	if err != nil {
		return err
	}
	if replacement == "" || replacement == r.Assignments[i].UserID {
		return fault.New(fault.KindValidation, "replacement must be a different user")
	}
	r.substitute(i, replacement, comment, now)
	return nil
}

func (r *Roster) substitute(i int, replacement, comment string, now time.Time) {
	r.Assignments[i].Replacement = replacement
	r.Assignments[i].Status = AssignmentReplaced
	if comment != "" {
		r.Assignments[i].Comment = comment
	}
	r.UpdatedAt = now
}

// ConfirmAssignment marks the slot on day as confirmed by its holder.
func (r *Roster) ConfirmAssignment(day time.Time, now time.Time) error {
	if err := r.checkEditable(); err != nil {
		return err
	}
	i, err := r.find(day)
	if err != nil {
		return err
	}
	r.Assignments[i].Status = AssignmentConfirmed
	r.UpdatedAt = now
	return nil
}

// MarkAbsent flags the holder of the slot on day as absent.
func (r *Roster) MarkAbsent(day time.Time, comment string, now time.Time) error {
	if err := r.checkEditable(); err != nil {
		return err
	}
	i, err := r.find(day)
	if err != nil {
		return err
	}
	r.Assignments[i].Status = AssignmentAbsent
	r.Assignments[i].Replacement = ""
	if comment != "" {
		r.Assignments[i].Comment = comment
	}
	r.UpdatedAt = now
	return nil
}

func (r *Roster) transitionError(op string) error {
	return fault.New(fault.KindValidation, "cannot %s roster %s in status %s", op, r.ID, r.Status)
}

// Submit moves a draft to pending_validation.
func (r *Roster) Submit(requester string, now time.Time) error {
	if r.Status != StatusDraft {
		return r.transitionError("submit")
	}
	r.Status = StatusPendingValidation
	r.Validation.RequestedBy = requester
	r.Validation.RequestedAt = &now
	r.Validation.Rejected = false
	r.Validation.RejectionReason = ""
	r.UpdatedAt = now
	return nil
}

// Approve moves pending_validation to validated. Detected conflicts block the
// transition with ConflictsDetected unless override is set.
func (r *Roster) Approve(approver string, conflicts []fault.Conflict, override bool, now time.Time) error {
	if r.Status != StatusPendingValidation {
		return r.transitionError("approve")
	}
	if len(conflicts) > 0 && !override {
		return fault.Conflicts(r.ID, conflicts)
	}
	r.Status = StatusValidated
	r.Validation.ApprovedBy = approver
	r.Validation.ApprovedAt = &now
	r.UpdatedAt = now
	return nil
}

// Reject sends a pending or validated roster back to draft.
func (r *Roster) Reject(reason string, now time.Time) error {
	if r.Status != StatusPendingValidation && r.Status != StatusValidated {
		return r.transitionError("reject")
	}
	if reason == "" {
		return fault.New(fault.KindValidation, "a rejection reason is required")
	}
	r.Status = StatusDraft
	r.Validation.Rejected = true
	r.Validation.RejectionReason = reason
	r.Validation.ApprovedBy = ""
	r.Validation.ApprovedAt = nil
	r.UpdatedAt = now
	return nil
}

// Publish moves validated to published. conflicts must come from a detection
// run immediately before this call.
func (r *Roster) Publish(conflicts []fault.Conflict, override bool, now time.Time) error {
	if r.Status != StatusValidated {
		return r.transitionError("publish")
	}
	if len(conflicts) > 0 && !override {
		return fault.Conflicts(r.ID, conflicts)
	}
	r.Status = StatusPublished
	r.Validation.PublishedAt = &now
	r.UpdatedAt = now
	return nil
}

// Archive retires the roster from any state.
func (r *Roster) Archive(now time.Time) error {
	if r.Status == StatusArchived {
		return r.transitionError("archive")
	}
	r.Status = StatusArchived
	r.ArchivedAt = &now
	r.UpdatedAt = now
	return nil
}

// CanDelete reports whether the roster may be destroyed. Only drafts may.
func (r *Roster) CanDelete() error {
	if r.Status != StatusDraft {
		return fault.New(fault.KindRosterNotEditable, "only draft rosters can be deleted (roster %s is %s)", r.ID, r.Status)
	}
	return nil
}

// ApplyGeneration fills an empty draft from an assigner result.
func (r *Roster) ApplyGeneration(res rotation.Result, candidates []string, lookbackDays int, now time.Time) error {
	if err := r.checkEditable(); err != nil {
		return err
	}
	for _, a := range res.Assignments {
		err := r.AddAssignment(Assignment{Date: a.Date, UserID: a.UserID, Coverage: a.Coverage}, now)
		if err != nil {
			return err
		}
	}
	meta := &GenerationMeta{
		Algorithm:    rotation.AlgorithmName,
		LookbackDays: lookbackDays,
		Candidates:   append([]string(nil), candidates...),
		Stats:        res.Stats,
	}
	for _, u := range res.Uncovered {
		meta.Uncovered = append(meta.Uncovered, u.Date)
	}
	r.Meta = meta
	return nil
}
