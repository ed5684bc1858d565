// Package fault defines the typed business errors returned across the engine.
// This is part of the Functional Core - no I/O, only values.
package fault

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a business-rule failure.
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindForbidden           Kind = "Forbidden"
	KindNotFound            Kind = "NotFound"
	KindNoEligiblePersonnel Kind = "NoEligiblePersonnel"
	KindEmptyCoverageWindow Kind = "EmptyCoverageWindow"
	KindRosterNotEditable   Kind = "RosterNotEditable"
	KindDuplicateAssignment Kind = "DuplicateAssignment"
	KindConflictsDetected   Kind = "ConflictsDetected"
	KindNoActiveRoster      Kind = "NoActiveRoster"
	KindMaxLevelReached     Kind = "MaxLevelReached"
	KindContactRateLimit    Kind = "ContactRateLimitExceeded"
	KindConcurrencyConflict Kind = "ConcurrencyConflict"
)

// Conflict is a double-booking of one user on one date across two rosters.
type Conflict struct {
	Date                time.Time
	UserID              string
	ConflictingRosterID string
}

// Error is a typed business error.
type Error struct {
	Kind      Kind
	Message   string
	Conflicts []Conflict // only set for KindConflictsDetected
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so errors.Is(err, fault.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrNoEligiblePersonnel = &Error{Kind: KindNoEligiblePersonnel}
	ErrEmptyCoverageWindow = &Error{Kind: KindEmptyCoverageWindow}
	ErrRosterNotEditable   = &Error{Kind: KindRosterNotEditable}
	ErrDuplicateAssignment = &Error{Kind: KindDuplicateAssignment}
	ErrConflictsDetected   = &Error{Kind: KindConflictsDetected}
	ErrNoActiveRoster      = &Error{Kind: KindNoActiveRoster}
	ErrMaxLevelReached     = &Error{Kind: KindMaxLevelReached}
	ErrContactRateLimit    = &Error{Kind: KindContactRateLimit}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict}
)

// New builds a typed error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Conflicts builds a ConflictsDetected error carrying the full conflict list.
func Conflicts(rosterID string, conflicts []Conflict) *Error {
	return &Error{
		Kind:      KindConflictsDetected,
		Message:   fmt.Sprintf("roster %s has %d double-booking conflict(s)", rosterID, len(conflicts)),
		Conflicts: conflicts,
	}
}

// KindOf returns the kind of a typed error, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the caller may safely re-read and retry.
func Retryable(err error) bool {
	return Is(err, KindConcurrencyConflict)
}
