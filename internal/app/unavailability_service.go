package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/core/unavailability"
	"github.com/example/garde/internal/logging"
	"github.com/example/garde/internal/ports/primary"
	"github.com/example/garde/internal/ports/secondary"
)

// UnavailabilityServiceImpl implements the UnavailabilityService interface.
type UnavailabilityServiceImpl struct {
	unavRepo    secondary.UnavailabilityRepository
	rosterRepo  secondary.RosterRepository
	directory   secondary.Directory
	auditWriter secondary.AuditWriter
	executor    EffectExecutor
	logger      *zap.Logger
	now         func() time.Time

	createMu sync.Mutex
}

// NewUnavailabilityService creates a new UnavailabilityService with injected dependencies.
func NewUnavailabilityService(
	unavRepo secondary.UnavailabilityRepository,
	rosterRepo secondary.RosterRepository,
	directory secondary.Directory,
	auditWriter secondary.AuditWriter,
	executor EffectExecutor,
	logger *zap.Logger,
) *UnavailabilityServiceImpl {
	return &UnavailabilityServiceImpl{
		unavRepo:    unavRepo,
		rosterRepo:  rosterRepo,
		directory:   directory,
		auditWriter: auditWriter,
		executor:    executor,
		logger:      logging.OrNop(logger),
		now:         time.Now,
	}
}

// Submit declares an unavailability in pending state.
func (s *UnavailabilityServiceImpl) Submit(ctx context.Context, req primary.SubmitUnavailabilityRequest) (*unavailability.Unavailability, error) {
	ownerID := req.UserID
	if ownerID == "" {
		ownerID = req.Actor.ID
	}
	owner, err := s.directory.GetUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := unavailability.CanSubmitFor(req.Actor, *owner).Error(); err != nil {
		return nil, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	id, err := s.unavRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate unavailability ID: %w", err)
	}
	u, err := unavailability.Submit(id, unavailability.SubmitRequest{
		UserID:      owner.ID,
		Start:       req.Start,
		End:         req.End,
		Reason:      unavailability.Reason(req.Reason),
		Description: req.Description,
		Priority:    unavailability.Priority(req.Priority),
		CreatedBy:   req.Actor.ID,
	}, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.unavRepo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create unavailability: %w", err)
	}

	auditCreate(ctx, s.auditWriter, s.logger, unavailabilitySubject(u, *owner))
	s.logger.Info("unavailability submitted",
		zap.String("unavailability_id", u.ID),
		zap.String("user", u.UserID),
		zap.String("reason", string(u.Reason)),
		zap.String("actor", req.Actor.ID),
	)
	return u, nil
}

// Approve approves a pending request and scans affected rosters.
func (s *UnavailabilityServiceImpl) Approve(ctx context.Context, req primary.DecisionRequest) (*unavailability.Unavailability, error) {
	return s.decide(ctx, req, func(u *unavailability.Unavailability, owner identity.User, now time.Time) error {
		level, guard := unavailability.CanApprove(req.Actor, owner)
		if err := guard.Error(); err != nil {
			return err
		}
		if err := u.Approve(req.Actor.ID, level, req.Comment, now); err != nil {
			return err
		}
		scan, err := s.scan(ctx, u, now)
		if err != nil {
			return err
		}
		u.ApplyScan(scan, true)
		if n := scan.AffectedDates(); n > 0 {
			s.logger.Warn("approved unavailability overlaps active rosters",
				zap.String("unavailability_id", u.ID),
				zap.String("user", u.UserID),
				zap.Int("rosters", len(scan.Affected)),
				zap.Int("dates", n),
			)
		}
		return nil
	})
}

// Refuse refuses a pending request.
func (s *UnavailabilityServiceImpl) Refuse(ctx context.Context, req primary.DecisionRequest) (*unavailability.Unavailability, error) {
	return s.decide(ctx, req, func(u *unavailability.Unavailability, owner identity.User, now time.Time) error {
		level, guard := unavailability.CanApprove(req.Actor, owner)
		if err := guard.Error(); err != nil {
			return err
		}
		return u.Refuse(req.Actor.ID, level, req.Comment, now)
	})
}

// Cancel withdraws a pending or approved request.
func (s *UnavailabilityServiceImpl) Cancel(ctx context.Context, req primary.DecisionRequest) (*unavailability.Unavailability, error) {
	return s.decide(ctx, req, func(u *unavailability.Unavailability, _ identity.User, now time.Time) error {
		if err := unavailability.CanCancel(req.Actor, u).Error(); err != nil {
			return err
		}
		return u.Cancel(req.Actor.ID, req.Comment, now)
	})
}

func (s *UnavailabilityServiceImpl) decide(
	ctx context.Context,
	req primary.DecisionRequest,
	apply func(*unavailability.Unavailability, identity.User, time.Time) error,
) (*unavailability.Unavailability, error) {
	u, err := s.unavRepo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	owner, err := s.directory.GetUser(ctx, u.UserID)
	if err != nil {
		return nil, err
	}

	from := u.Status
	now := s.now()
	if err := apply(u, *owner, now); err != nil {
		return nil, err
	}
	if err := s.unavRepo.Update(ctx, u); err != nil {
		return nil, err
	}

	auditUpdate(ctx, s.auditWriter, s.logger, unavailabilitySubject(u, *owner), "status", string(from), string(u.Status))
	s.logger.Info("unavailability status changed",
		zap.String("unavailability_id", u.ID),
		zap.String("from", string(from)),
		zap.String("to", string(u.Status)),
		zap.String("actor", req.Actor.ID),
	)
	dispatch(ctx, s.executor, s.logger, statusChanged("unavailability", u.ID, string(from), string(u.Status), req.Actor.ID, req.Comment, now))
	return u, nil
}

// RecomputeImpact rescans active rosters for an approved request.
func (s *UnavailabilityServiceImpl) RecomputeImpact(ctx context.Context, id string) (*unavailability.Unavailability, error) {
	u, err := s.unavRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Status != unavailability.StatusApproved {
		return nil, fault.New(fault.KindValidation, "impact is only tracked for approved unavailabilities (%s is %s)", u.ID, u.Status)
	}
	scan, err := s.scan(ctx, u, s.now())
	if err != nil {
		return nil, err
	}
	u.ApplyScan(scan, false)
	if err := s.unavRepo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UnavailabilityServiceImpl) scan(ctx context.Context, u *unavailability.Unavailability, now time.Time) (unavailability.Impact, error) {
	start, end := u.Start, u.End
	rosters, err := s.rosterRepo.List(ctx, secondary.RosterFilters{
		UserID:       u.UserID,
		Statuses:     activeStatuses(),
		OverlapStart: &start,
		OverlapEnd:   &end,
	})
	if err != nil {
		return unavailability.Impact{}, fmt.Errorf("failed to list affected rosters: %w", err)
	}
	return unavailability.ScanImpact(u, rosters, now), nil
}

// Get retrieves an unavailability by ID.
func (s *UnavailabilityServiceImpl) Get(ctx context.Context, id string) (*unavailability.Unavailability, error) {
	return s.unavRepo.GetByID(ctx, id)
}

// List lists unavailabilities with optional filters.
func (s *UnavailabilityServiceImpl) List(ctx context.Context, filters primary.UnavailabilityFilters) ([]*unavailability.Unavailability, error) {
	f := secondary.UnavailabilityFilters{UserID: filters.UserID}
	if filters.Status != "" {
		f.Statuses = []string{filters.Status}
	}
	items, err := s.unavRepo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list unavailabilities: %w", err)
	}
	return items, nil
}

// Ensure UnavailabilityServiceImpl implements the interface
var _ primary.UnavailabilityService = (*UnavailabilityServiceImpl)(nil)
