package secondary

import (
	"context"
	"time"
)

// AuditEntry is one recorded change to a roster, an unavailability or an
// escalation case. Site and Sector place it in the organization so the trail
// can be read per sector.
type AuditEntry struct {
	ID         string
	At         time.Time
	ActorID    string
	EntityType string // roster, unavailability, escalation
	EntityID   string
	Action     string // create, update, delete
	Field      string
	OldValue   string
	NewValue   string
	Site       string
	Sector     string
}

// AuditWriter records changes. An entry without ActorID is attributed to the
// actor carried by ctx; a zero At is stamped on write.
type AuditWriter interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditQuery selects entries from the trail. Zero fields match everything.
type AuditQuery struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	Site       string
	Sector     string
	Since      time.Time // inclusive
	Limit      int
}

// AuditLogRepository stores the audit trail, newest entries first.
type AuditLogRepository interface {
	AuditWriter

	List(ctx context.Context, q AuditQuery) ([]*AuditEntry, error)

	// PruneBefore deletes entries recorded before cutoff and returns how many.
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}
