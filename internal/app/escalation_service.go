package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/garde/internal/core/escalation"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/logging"
	"github.com/example/garde/internal/metrics"
	"github.com/example/garde/internal/ports/primary"
	"github.com/example/garde/internal/ports/secondary"
)

// EscalationServiceOptions carries the non-port settings of the escalation service.
type EscalationServiceOptions struct {
	Config  escalation.Config // zero value uses escalation.DefaultConfig
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// EscalationServiceImpl implements the EscalationService interface.
type EscalationServiceImpl struct {
	escalationRepo secondary.EscalationRepository
	rosterRepo     secondary.RosterRepository
	directory      secondary.Directory
	auditWriter    secondary.AuditWriter
	executor       EffectExecutor
	config         escalation.Config
	logger         *zap.Logger
	metrics        *metrics.Recorder
	now            func() time.Time

	createMu sync.Mutex
}

// NewEscalationService creates a new EscalationService with injected dependencies.
func NewEscalationService(
	escalationRepo secondary.EscalationRepository,
	rosterRepo secondary.RosterRepository,
	directory secondary.Directory,
	auditWriter secondary.AuditWriter,
	executor EffectExecutor,
	opts EscalationServiceOptions,
) *EscalationServiceImpl {
	cfg := opts.Config
	if cfg == (escalation.Config{}) {
		cfg = escalation.DefaultConfig()
	}
	return &EscalationServiceImpl{
		escalationRepo: escalationRepo,
		rosterRepo:     rosterRepo,
		directory:      directory,
		auditWriter:    auditWriter,
		executor:       executor,
		config:         cfg,
		logger:         logging.OrNop(opts.Logger),
		metrics:        opts.Metrics,
		now:            time.Now,
	}
}

// Start opens a case and contacts the on-duty responder at level 1.
func (s *EscalationServiceImpl) Start(ctx context.Context, req primary.StartEscalationRequest) (*escalation.Case, error) {
	now := s.now()
	incidentTime := req.IncidentTime
	if incidentTime.IsZero() {
		incidentTime = now
	}

	// The responder is resolved before anything is stored: a case nobody
	// can take is never opened.
	scopeType := identity.ScopeSector
	if req.Service != "" {
		scopeType = identity.ScopeService
	}
	onDuty, _, err := findOnDuty(ctx, s.rosterRepo, scopeType, req.Site, req.Sector, req.Service, incidentTime)
	if err != nil {
		return nil, err
	}
	responder, err := escalation.Chain{OnDuty: onDuty}.Responder(1)
	if err != nil {
		return nil, err
	}

	cfg := s.config
	openReq := escalation.OpenRequest{
		Incident: escalation.Incident{
			Description: req.Description,
			Type:        req.IncidentType,
			Priority:    req.Priority,
			Time:        incidentTime,
		},
		Site:      req.Site,
		Sector:    req.Sector,
		Service:   req.Service,
		Declarant: req.Declarant,
		Config:    &cfg,
		ActorID:   req.Actor.ID,
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	id, err := s.escalationRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate escalation ID: %w", err)
	}
	c, err := escalation.Open(id, openReq, now)
	if err != nil {
		return nil, err
	}
	if err := c.Start(responder, req.Actor.ID, now); err != nil {
		return nil, err
	}
	if err := s.escalationRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create escalation: %w", err)
	}

	auditCreate(ctx, s.auditWriter, s.logger, caseSubject(c))
	s.metrics.EscalationStarted(c.Sector)
	s.metrics.LevelOpened(1)
	s.logger.Info("escalation started",
		zap.String("case_id", c.ID),
		zap.String("site", c.Site),
		zap.String("sector", c.Sector),
		zap.String("responder", responder),
		zap.String("priority", c.Incident.Priority),
	)
	dispatch(ctx, s.executor, s.logger, c.TakeEffects()...)
	return c, nil
}

// EscalateToNext opens the next level of the chain.
func (s *EscalationServiceImpl) EscalateToNext(ctx context.Context, actor identity.Actor, caseID string) (*escalation.Case, error) {
	c, err := s.escalationRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, fault.New(fault.KindValidation, "cannot escalate case %s in status %s", c.ID, c.Status)
	}
	next, err := c.NextLevel()
	if err != nil {
		return nil, err
	}
	chain, err := s.chainFor(ctx, c, next)
	if err != nil {
		return nil, err
	}
	responder, err := chain.Responder(next)
	if err != nil {
		return nil, err
	}

	err = s.save(ctx, c, actor.ID, func(now time.Time) error {
		return c.EscalateToNext(responder, actor.ID, now)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.LevelOpened(next)
	s.logger.Info("escalation moved to next level",
		zap.String("case_id", c.ID),
		zap.Int("level", next),
		zap.String("responder", responder),
		zap.String("actor", actor.ID),
	)
	return c, nil
}

// chainFor gathers the candidates the given level needs. Rosters are read
// for the incident day, not the day the escalation happens.
func (s *EscalationServiceImpl) chainFor(ctx context.Context, c *escalation.Case, level int) (escalation.Chain, error) {
	var chain escalation.Chain
	switch level {
	case 2:
		onDuty, _, err := findOnDuty(ctx, s.rosterRepo, identity.ScopeSector, c.Site, c.Sector, "", c.Incident.Time)
		if err != nil {
			return chain, err
		}
		chain.SectorOnDuty = onDuty
		if onDuty == "" {
			engineers, err := s.directory.ActiveUsersByRoleAndScope(ctx, identity.RoleEngineer, c.Site, c.Sector, "")
			if err != nil {
				return chain, fmt.Errorf("failed to list sector engineers: %w", err)
			}
			for _, e := range engineers {
				chain.SectorEngineers = append(chain.SectorEngineers, e.ID)
			}
		}
	case 3:
		chief, err := s.directory.SectorChief(ctx, c.Sector)
		if err != nil {
			return chain, err
		}
		chain.SectorChief = chief
	}
	return chain, nil
}

// RecordContactAttempt logs an attempt on a level and requests delivery.
func (s *EscalationServiceImpl) RecordContactAttempt(ctx context.Context, req primary.ContactAttemptRequest) (*escalation.ContactAttempt, error) {
	c, err := s.escalationRepo.GetByID(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	var attempt escalation.ContactAttempt
	err = s.save(ctx, c, req.Actor.ID, func(now time.Time) error {
		var err error
		attempt, err = c.RecordContactAttempt(req.Level, escalation.Channel(req.Channel), req.Actor.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ContactAttempt(req.Channel)
	return &attempt, nil
}

// UpdateDeliveryStatus applies transport feedback to an attempt.
func (s *EscalationServiceImpl) UpdateDeliveryStatus(ctx context.Context, req primary.DeliveryStatusRequest) error {
	c, err := s.escalationRepo.GetByID(ctx, req.CaseID)
	if err != nil {
		return err
	}
	return s.save(ctx, c, "", func(now time.Time) error {
		return c.UpdateDeliveryStatus(req.Level, req.Attempt, escalation.DeliveryStatus(req.Status), now)
	})
}

// RecordResponse records a responder's answer on a level.
func (s *EscalationServiceImpl) RecordResponse(ctx context.Context, req primary.RecordResponseRequest) (*escalation.Case, error) {
	c, err := s.escalationRepo.GetByID(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	err = s.save(ctx, c, req.Actor.ID, func(now time.Time) error {
		return c.RecordResponse(escalation.ResponseRequest{
			Level:       req.Level,
			Type:        escalation.ResponseType(req.ResponseType),
			Comment:     req.Comment,
			ForwardedTo: req.ForwardedTo,
			Method:      escalation.ResolutionMethod(req.Method),
			ActorID:     req.Actor.ID,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Resolve closes a case successfully.
func (s *EscalationServiceImpl) Resolve(ctx context.Context, req primary.ResolveEscalationRequest) (*escalation.Case, error) {
	return s.mutate(ctx, req.CaseID, req.Actor.ID, func(c *escalation.Case, now time.Time) error {
		return c.Resolve(escalation.ResolveRequest{
			ResolverID:   req.Actor.ID,
			Comment:      req.Comment,
			Method:       escalation.ResolutionMethod(req.Method),
			Satisfaction: req.Satisfaction,
		}, now)
	})
}

// Cancel abandons an in-progress case.
func (s *EscalationServiceImpl) Cancel(ctx context.Context, actor identity.Actor, caseID, reason string) (*escalation.Case, error) {
	return s.mutate(ctx, caseID, actor.ID, func(c *escalation.Case, now time.Time) error {
		return c.Cancel(actor.ID, reason, now)
	})
}

// Fail ends a case nobody could take.
func (s *EscalationServiceImpl) Fail(ctx context.Context, actor identity.Actor, caseID, reason string) (*escalation.Case, error) {
	return s.mutate(ctx, caseID, actor.ID, func(c *escalation.Case, now time.Time) error {
		return c.Fail(actor.ID, reason, now)
	})
}

// Forward hands the incident to a party outside the chain.
func (s *EscalationServiceImpl) Forward(ctx context.Context, actor identity.Actor, caseID, target, comment string) (*escalation.Case, error) {
	return s.mutate(ctx, caseID, actor.ID, func(c *escalation.Case, now time.Time) error {
		return c.Forward(actor.ID, target, comment, now)
	})
}

func (s *EscalationServiceImpl) mutate(ctx context.Context, caseID, actorID string, apply func(*escalation.Case, time.Time) error) (*escalation.Case, error) {
	c, err := s.escalationRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, c, actorID, func(now time.Time) error { return apply(c, now) }); err != nil {
		return nil, err
	}
	return c, nil
}

// save applies a mutation, persists the case and runs the effects it produced.
func (s *EscalationServiceImpl) save(ctx context.Context, c *escalation.Case, actorID string, apply func(time.Time) error) error {
	from := c.Status
	if err := apply(s.now()); err != nil {
		c.TakeEffects()
		return err
	}
	if err := s.escalationRepo.Update(ctx, c); err != nil {
		c.TakeEffects()
		return err
	}

	if c.Status != from {
		auditUpdate(ctx, s.auditWriter, s.logger, caseSubject(c), "status", string(from), string(c.Status))
		s.metrics.CaseClosed(string(c.Status))
		s.logger.Info("escalation closed",
			zap.String("case_id", c.ID),
			zap.String("status", string(c.Status)),
			zap.String("actor", actorID),
			zap.Int("levels", c.Metrics.LevelsReached),
			zap.Int("attempts", c.Metrics.TotalAttempts),
		)
	}
	dispatch(ctx, s.executor, s.logger, c.TakeEffects()...)
	return nil
}

// IsInTimeout reports whether the current level is unanswered past its timeout.
func (s *EscalationServiceImpl) IsInTimeout(ctx context.Context, caseID string) (bool, error) {
	c, err := s.escalationRepo.GetByID(ctx, caseID)
	if err != nil {
		return false, err
	}
	return c.IsInTimeout(s.now()), nil
}

// GetEscalation retrieves a case by ID.
func (s *EscalationServiceImpl) GetEscalation(ctx context.Context, caseID string) (*escalation.Case, error) {
	return s.escalationRepo.GetByID(ctx, caseID)
}

// ListEscalations lists cases with optional filters.
func (s *EscalationServiceImpl) ListEscalations(ctx context.Context, filters primary.EscalationFilters) ([]*escalation.Case, error) {
	cases, err := s.escalationRepo.List(ctx, secondary.EscalationFilters{
		Status: filters.Status,
		Site:   filters.Site,
		Sector: filters.Sector,
		Limit:  filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	return cases, nil
}

// Ensure EscalationServiceImpl implements the interface
var _ primary.EscalationService = (*EscalationServiceImpl)(nil)
