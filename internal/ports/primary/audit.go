package primary

import (
	"context"
	"time"

	"github.com/example/garde/internal/core/identity"
)

// AuditService reads the audit trail of roster, unavailability and
// escalation changes. Anyone below admin only sees their own sector.
type AuditService interface {
	Trail(ctx context.Context, actor identity.Actor, q TrailQuery) ([]*TrailEntry, error)

	// CaseTimeline merges an escalation's own history with the audit entries
	// written for it, oldest first.
	CaseTimeline(ctx context.Context, actor identity.Actor, caseID string) ([]*TrailEntry, error)

	// Prune deletes entries older than the given number of days. Admin only.
	Prune(ctx context.Context, actor identity.Actor, olderThanDays int) (int, error)
}

// TrailSource tells where a trail entry comes from.
type TrailSource string

const (
	SourceAudit TrailSource = "audit"
	SourceCase  TrailSource = "case" // escalation history
)

// TrailQuery filters the trail.
type TrailQuery struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	Site       string
	Sector     string
	Since      time.Time
	Limit      int
}

// TrailEntry is one line of the trail.
type TrailEntry struct {
	At         time.Time
	Source     TrailSource
	ActorID    string
	EntityType string
	EntityID   string
	Action     string
	Level      int // escalation level, case entries only
	Detail     string
	Site       string
	Sector     string
}
