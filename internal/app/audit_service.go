package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/example/garde/internal/core/escalation"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/core/roster"
	"github.com/example/garde/internal/core/unavailability"
	"github.com/example/garde/internal/ports/primary"
	"github.com/example/garde/internal/ports/secondary"
)

// AuditServiceImpl implements the AuditService interface.
type AuditServiceImpl struct {
	auditRepo      secondary.AuditLogRepository
	escalationRepo secondary.EscalationRepository
	now            func() time.Time
}

// NewAuditService creates a new AuditService with injected dependencies.
func NewAuditService(auditRepo secondary.AuditLogRepository, escalationRepo secondary.EscalationRepository) *AuditServiceImpl {
	return &AuditServiceImpl{
		auditRepo:      auditRepo,
		escalationRepo: escalationRepo,
		now:            time.Now,
	}
}

// Trail lists audit entries, newest first.
func (s *AuditServiceImpl) Trail(ctx context.Context, actor identity.Actor, q primary.TrailQuery) ([]*primary.TrailEntry, error) {
	site, sector, err := visibleScope(actor, q.Site, q.Sector)
	if err != nil {
		return nil, err
	}
	entries, err := s.auditRepo.List(ctx, secondary.AuditQuery{
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		ActorID:    q.ActorID,
		Action:     q.Action,
		Site:       site,
		Sector:     sector,
		Since:      q.Since,
		Limit:      q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit trail: %w", err)
	}

	trail := make([]*primary.TrailEntry, len(entries))
	for i, e := range entries {
		trail[i] = fromAudit(e)
	}
	return trail, nil
}

// CaseTimeline merges the case history with its audit entries, oldest first.
func (s *AuditServiceImpl) CaseTimeline(ctx context.Context, actor identity.Actor, caseID string) ([]*primary.TrailEntry, error) {
	c, err := s.escalationRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if _, _, err := visibleScope(actor, c.Site, c.Sector); err != nil {
		return nil, err
	}
	entries, err := s.auditRepo.List(ctx, secondary.AuditQuery{EntityType: "escalation", EntityID: c.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit trail: %w", err)
	}

	timeline := make([]*primary.TrailEntry, 0, len(c.History)+len(entries))
	for _, h := range c.History {
		timeline = append(timeline, &primary.TrailEntry{
			At:         h.At,
			Source:     primary.SourceCase,
			ActorID:    h.ActorID,
			EntityType: "escalation",
			EntityID:   c.ID,
			Action:     h.Action,
			Level:      h.Level,
			Detail:     h.Detail,
			Site:       c.Site,
			Sector:     c.Sector,
		})
	}
	for _, e := range entries {
		timeline = append(timeline, fromAudit(e))
	}
	// stable: history stays ahead of audit entries stamped at the same instant
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].At.Before(timeline[j].At)
	})
	return timeline, nil
}

// Prune deletes entries older than olderThanDays.
func (s *AuditServiceImpl) Prune(ctx context.Context, actor identity.Actor, olderThanDays int) (int, error) {
	if !actor.IsAdmin() {
		return 0, fault.New(fault.KindForbidden, "%s cannot prune the audit trail", actor.ID)
	}
	if olderThanDays <= 0 {
		return 0, fault.New(fault.KindValidation, "retention must be at least one day")
	}
	return s.auditRepo.PruneBefore(ctx, s.now().AddDate(0, 0, -olderThanDays))
}

// visibleScope narrows a query to what actor may read. Admins read any site;
// everyone else reads their own site and sector.
func visibleScope(actor identity.Actor, site, sector string) (string, string, error) {
	if actor.IsAdmin() {
		return site, sector, nil
	}
	if (site != "" && site != actor.Site) || (sector != "" && sector != actor.Sector) {
		return "", "", fault.New(fault.KindForbidden, "%s can only read the trail of %s/%s", actor.ID, actor.Site, actor.Sector)
	}
	return actor.Site, actor.Sector, nil
}

func fromAudit(e *secondary.AuditEntry) *primary.TrailEntry {
	detail := ""
	if e.Field != "" {
		detail = fmt.Sprintf("%s: %s -> %s", e.Field, e.OldValue, e.NewValue)
	}
	return &primary.TrailEntry{
		At:         e.At,
		Source:     primary.SourceAudit,
		ActorID:    e.ActorID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Detail:     detail,
		Site:       e.Site,
		Sector:     e.Sector,
	}
}

func rosterSubject(r *roster.Roster) secondary.AuditEntry {
	return secondary.AuditEntry{EntityType: "roster", EntityID: r.ID, Site: r.Scope.Site, Sector: r.Scope.Sector}
}

func caseSubject(c *escalation.Case) secondary.AuditEntry {
	return secondary.AuditEntry{EntityType: "escalation", EntityID: c.ID, Site: c.Site, Sector: c.Sector}
}

func unavailabilitySubject(u *unavailability.Unavailability, owner identity.User) secondary.AuditEntry {
	return secondary.AuditEntry{EntityType: "unavailability", EntityID: u.ID, Site: owner.Site, Sector: owner.Sector}
}

// audit records a change when a writer is configured. A failed write is
// logged; the change itself is already stored.
func audit(ctx context.Context, w secondary.AuditWriter, logger *zap.Logger, e secondary.AuditEntry) {
	if w == nil {
		return
	}
	if err := w.Record(ctx, e); err != nil {
		logger.Warn("audit log write failed",
			zap.String("entity_type", e.EntityType),
			zap.String("entity_id", e.EntityID),
			zap.Error(err),
		)
	}
}

func auditCreate(ctx context.Context, w secondary.AuditWriter, logger *zap.Logger, e secondary.AuditEntry) {
	e.Action = "create"
	audit(ctx, w, logger, e)
}

func auditUpdate(ctx context.Context, w secondary.AuditWriter, logger *zap.Logger, e secondary.AuditEntry, field, oldValue, newValue string) {
	e.Action, e.Field, e.OldValue, e.NewValue = "update", field, oldValue, newValue
	audit(ctx, w, logger, e)
}

func auditDelete(ctx context.Context, w secondary.AuditWriter, logger *zap.Logger, e secondary.AuditEntry) {
	e.Action = "delete"
	audit(ctx, w, logger, e)
}

// Ensure AuditServiceImpl implements the interface
var _ primary.AuditService = (*AuditServiceImpl)(nil)
