// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

import "time"

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// Effect type identifiers, also used as event subjects.
const (
	TypeLog              = "log"
	TypeContactRequested = "contact_requested"
	TypeStatusChanged    = "status_changed"
	TypeComposite        = "composite"
	TypeNone             = "none"
)

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return TypeLog }

// ContactRequestedEffect asks the notification transport to reach a responder.
// Delivery feedback comes back through the attempt's delivery status.
type ContactRequestedEffect struct {
	CaseID        string
	Level         int
	AttemptNumber int
	Channel       string
	RecipientID   string
	RequestedAt   time.Time
}

func (e ContactRequestedEffect) EffectType() string { return TypeContactRequested }

// StatusChangedEffect announces a lifecycle transition of an aggregate.
type StatusChangedEffect struct {
	Entity   string // "roster", "unavailability", "escalation"
	EntityID string
	From     string
	To       string
	ActorID  string
	Detail   string
	At       time.Time
}

func (e StatusChangedEffect) EffectType() string { return TypeStatusChanged }

// CompositeEffect holds multiple effects to be executed in sequence.
type CompositeEffect struct {
	Effects []Effect
}

func (e CompositeEffect) EffectType() string { return TypeComposite }

// NoEffect represents an operation that produces no side effects.
type NoEffect struct{}

func (e NoEffect) EffectType() string { return TypeNone }
