package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/garde/internal/core/availability"
	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/core/roster"
	"github.com/example/garde/internal/core/rotation"
	"github.com/example/garde/internal/core/unavailability"
	"github.com/example/garde/internal/logging"
	"github.com/example/garde/internal/metrics"
	"github.com/example/garde/internal/ports/primary"
	"github.com/example/garde/internal/ports/secondary"
)

// batchConcurrency bounds GenerateBatch fan-out.
const batchConcurrency = 4

// RosterServiceOptions carries the non-port settings of the roster service.
type RosterServiceOptions struct {
	Holidays     calendar.HolidayTable
	LookbackDays int // <= 0 uses rotation.DefaultLookbackDays
	Logger       *zap.Logger
	Metrics      *metrics.Recorder
}

// RosterServiceImpl implements the RosterService interface.
type RosterServiceImpl struct {
	rosterRepo   secondary.RosterRepository
	unavRepo     secondary.UnavailabilityRepository
	directory    secondary.Directory
	auditWriter  secondary.AuditWriter
	executor     EffectExecutor
	resolver     calendar.Resolver
	lookbackDays int
	logger       *zap.Logger
	metrics      *metrics.Recorder
	now          func() time.Time

	// serializes ID allocation and insert across concurrent generations
	createMu sync.Mutex
}

// NewRosterService creates a new RosterService with injected dependencies.
func NewRosterService(
	rosterRepo secondary.RosterRepository,
	unavRepo secondary.UnavailabilityRepository,
	directory secondary.Directory,
	auditWriter secondary.AuditWriter,
	executor EffectExecutor,
	opts RosterServiceOptions,
) *RosterServiceImpl {
	lookback := opts.LookbackDays
	if lookback <= 0 {
		lookback = rotation.DefaultLookbackDays
	}
	return &RosterServiceImpl{
		rosterRepo:   rosterRepo,
		unavRepo:     unavRepo,
		directory:    directory,
		auditWriter:  auditWriter,
		executor:     executor,
		resolver:     calendar.NewResolver(opts.Holidays),
		lookbackDays: lookback,
		logger:       logging.OrNop(opts.Logger),
		metrics:      opts.Metrics,
		now:          time.Now,
	}
}

// CreateRoster creates an empty draft for a scope and period.
func (s *RosterServiceImpl) CreateRoster(ctx context.Context, req primary.CreateRosterRequest) (*roster.Roster, error) {
	if err := roster.CanManage(req.Actor, req.Scope).Error(); err != nil {
		return nil, err
	}
	now := s.now()
	r, err := roster.New("", req.Scope, req.Start, req.End, req.Actor.ID, now)
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info("roster created", zap.String("roster_id", r.ID), zap.String("actor", req.Actor.ID))
	return r, nil
}

// GenerateRoster creates a draft filled by the rotation assigner.
func (s *RosterServiceImpl) GenerateRoster(ctx context.Context, req primary.CreateRosterRequest) (*primary.GenerateRosterResponse, error) {
	started := time.Now()
	if err := roster.CanManage(req.Actor, req.Scope).Error(); err != nil {
		return nil, err
	}
	now := s.now()
	r, err := roster.New("", req.Scope, req.Start, req.End, req.Actor.ID, now)
	if err != nil {
		return nil, err
	}

	dates, err := s.resolver.Resolve(r.Start, r.End)
	if err != nil {
		return nil, err
	}
	pool, err := s.resolvePool(ctx, r.Scope)
	if err != nil {
		return nil, err
	}
	load, err := s.loadIndex(ctx, r.Scope, r.Start)
	if err != nil {
		return nil, err
	}
	avail, err := s.availabilityIndex(ctx, pool, r.Start, r.End)
	if err != nil {
		return nil, err
	}

	res, err := rotation.Generate(rotation.Input{
		Dates:        dates,
		Candidates:   pool,
		Load:         load,
		Availability: avail,
	})
	if err != nil {
		return nil, err
	}
	if err := r.ApplyGeneration(res, pool, s.lookbackDays, now); err != nil {
		return nil, err
	}
	if err := s.insert(ctx, r); err != nil {
		return nil, err
	}

	s.metrics.ObserveGeneration(string(r.Scope.Type), len(res.Uncovered), time.Since(started))
	s.logger.Info("roster generated",
		zap.String("roster_id", r.ID),
		zap.String("scope_type", string(r.Scope.Type)),
		zap.String("sector", r.Scope.Sector),
		zap.Int("candidates", len(pool)),
		zap.Int("assignments", res.Stats.TotalAssignments),
		zap.Int("uncovered", len(res.Uncovered)),
		zap.Float64("coverage_ratio", res.Stats.CoverageRatio),
	)
	return &primary.GenerateRosterResponse{
		Roster:     r,
		Candidates: pool,
		Uncovered:  res.Uncovered,
	}, nil
}

// GenerateBatch generates several independent scopes concurrently. The first
// failure cancels the remaining runs; rosters already stored stay stored.
func (s *RosterServiceImpl) GenerateBatch(ctx context.Context, reqs []primary.CreateRosterRequest) ([]*primary.GenerateRosterResponse, error) {
	for i := range reqs {
		for j := i + 1; j < len(reqs); j++ {
			if reqs[i].Scope.Equal(reqs[j].Scope) {
				return nil, fault.New(fault.KindValidation, "batch requests %d and %d target the same scope", i+1, j+1)
			}
		}
	}

	out := make([]*primary.GenerateRosterResponse, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			resp, err := s.GenerateRoster(gctx, req)
			if err != nil {
				return fmt.Errorf("scope %s/%s/%s: %w", req.Scope.Site, req.Scope.Sector, req.Scope.Service, err)
			}
			out[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// GetRoster retrieves a roster by ID.
func (s *RosterServiceImpl) GetRoster(ctx context.Context, rosterID string) (*roster.Roster, error) {
	return s.rosterRepo.GetByID(ctx, rosterID)
}

// ListRosters lists rosters with optional filters.
func (s *RosterServiceImpl) ListRosters(ctx context.Context, filters primary.RosterFilters) ([]*roster.Roster, error) {
	f := secondary.RosterFilters{
		ScopeType: filters.ScopeType,
		Site:      filters.Site,
		Sector:    filters.Sector,
		Service:   filters.Service,
		UserID:    filters.UserID,
	}
	if filters.Status != "" {
		f.Statuses = []string{filters.Status}
	}
	rosters, err := s.rosterRepo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list rosters: %w", err)
	}
	return rosters, nil
}

// DeleteRoster deletes a draft roster.
func (s *RosterServiceImpl) DeleteRoster(ctx context.Context, actor identity.Actor, rosterID string) error {
	r, err := s.rosterRepo.GetByID(ctx, rosterID)
	if err != nil {
		return err
	}
	if err := roster.CanManage(actor, r.Scope).Error(); err != nil {
		return err
	}
	if err := r.CanDelete(); err != nil {
		return err
	}
	if err := s.rosterRepo.Delete(ctx, rosterID); err != nil {
		return fmt.Errorf("failed to delete roster: %w", err)
	}
	auditDelete(ctx, s.auditWriter, s.logger, rosterSubject(r))
	return nil
}

// AddAssignment adds a duty slot to a draft.
func (s *RosterServiceImpl) AddAssignment(ctx context.Context, req primary.AssignmentRequest) error {
	if err := s.requireActiveUser(ctx, req.UserID); err != nil {
		return err
	}
	return s.editAssignments(ctx, req, func(r *roster.Roster, now time.Time) (string, string, error) {
		err := r.AddAssignment(roster.Assignment{
			Date:      req.Date,
			UserID:    req.UserID,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			Comment:   req.Comment,
			Coverage:  s.coverageOf(req.Date),
		}, now)
		return "", req.UserID, err
	})
}

// ReplaceAssignment hands a slot of a draft to another user.
func (s *RosterServiceImpl) ReplaceAssignment(ctx context.Context, req primary.AssignmentRequest) error {
	if err := s.requireActiveUser(ctx, req.Replacement); err != nil {
		return err
	}
	return s.editAssignments(ctx, req, func(r *roster.Roster, now time.Time) (string, string, error) {
		old, _ := r.OnDuty(req.Date)
		return old, req.Replacement, r.ReplaceAssignment(req.Date, req.Replacement, req.Comment, now)
	})
}

// ConfirmAssignment marks a slot of a draft as confirmed.
func (s *RosterServiceImpl) ConfirmAssignment(ctx context.Context, req primary.AssignmentRequest) error {
	return s.editAssignments(ctx, req, func(r *roster.Roster, now time.Time) (string, string, error) {
		return string(roster.AssignmentPlanned), string(roster.AssignmentConfirmed), r.ConfirmAssignment(req.Date, now)
	})
}

// MarkAbsent marks the holder of a slot of a draft as absent.
func (s *RosterServiceImpl) MarkAbsent(ctx context.Context, req primary.AssignmentRequest) error {
	return s.editAssignments(ctx, req, func(r *roster.Roster, now time.Time) (string, string, error) {
		old, _ := r.OnDuty(req.Date)
		return old, string(roster.AssignmentAbsent), r.MarkAbsent(req.Date, req.Comment, now)
	})
}

func (s *RosterServiceImpl) editAssignments(ctx context.Context, req primary.AssignmentRequest, edit func(*roster.Roster, time.Time) (string, string, error)) error {
	r, err := s.rosterRepo.GetByID(ctx, req.RosterID)
	if err != nil {
		return err
	}
	if err := roster.CanManage(req.Actor, r.Scope).Error(); err != nil {
		return err
	}
	oldValue, newValue, err := edit(r, s.now())
	if err != nil {
		return err
	}
	if err := s.rosterRepo.Update(ctx, r); err != nil {
		return err
	}
	auditUpdate(ctx, s.auditWriter, s.logger, rosterSubject(r), "assignment:"+calendar.FormatDay(req.Date), oldValue, newValue)
	return nil
}

// Submit moves a draft to pending_validation.
func (s *RosterServiceImpl) Submit(ctx context.Context, actor identity.Actor, rosterID string) error {
	return s.transition(ctx, actor, rosterID, roster.CanManage, func(r *roster.Roster, now time.Time) error {
		return r.Submit(actor.ID, now)
	}, "")
}

// Approve validates a pending roster, blocked by conflicts unless overridden.
func (s *RosterServiceImpl) Approve(ctx context.Context, req primary.TransitionRequest) error {
	return s.transitionWithConflicts(ctx, req, func(r *roster.Roster, conflicts []fault.Conflict, now time.Time) error {
		return r.Approve(req.Actor.ID, conflicts, req.Override, now)
	})
}

// Reject sends a pending or validated roster back to draft.
func (s *RosterServiceImpl) Reject(ctx context.Context, req primary.TransitionRequest) error {
	return s.transition(ctx, req.Actor, req.RosterID, roster.CanValidate, func(r *roster.Roster, now time.Time) error {
		return r.Reject(req.Reason, now)
	}, req.Reason)
}

// Publish publishes a validated roster after a fresh conflict check.
func (s *RosterServiceImpl) Publish(ctx context.Context, req primary.TransitionRequest) error {
	return s.transitionWithConflicts(ctx, req, func(r *roster.Roster, conflicts []fault.Conflict, now time.Time) error {
		return r.Publish(conflicts, req.Override, now)
	})
}

// Archive retires a roster.
func (s *RosterServiceImpl) Archive(ctx context.Context, actor identity.Actor, rosterID string) error {
	return s.transition(ctx, actor, rosterID, roster.CanValidate, func(r *roster.Roster, now time.Time) error {
		return r.Archive(now)
	}, "")
}

func (s *RosterServiceImpl) transitionWithConflicts(ctx context.Context, req primary.TransitionRequest, apply func(*roster.Roster, []fault.Conflict, time.Time) error) error {
	return s.transition(ctx, req.Actor, req.RosterID, roster.CanValidate, func(r *roster.Roster, now time.Time) error {
		conflicts, err := s.detect(ctx, r)
		if err != nil {
			return err
		}
		if err := apply(r, conflicts, now); err != nil {
			return err
		}
		if len(conflicts) > 0 {
			s.logger.Warn("roster transition overrode conflicts",
				zap.String("roster_id", r.ID),
				zap.String("actor", req.Actor.ID),
				zap.Int("conflicts", len(conflicts)),
			)
		}
		return nil
	}, req.Reason)
}

func (s *RosterServiceImpl) transition(
	ctx context.Context,
	actor identity.Actor,
	rosterID string,
	guard func(identity.Actor, identity.Scope) roster.GuardResult,
	apply func(*roster.Roster, time.Time) error,
	detail string,
) error {
	r, err := s.rosterRepo.GetByID(ctx, rosterID)
	if err != nil {
		return err
	}
	if err := guard(actor, r.Scope).Error(); err != nil {
		return err
	}
	from := r.Status
	now := s.now()
	if err := apply(r, now); err != nil {
		return err
	}
	if err := s.rosterRepo.Update(ctx, r); err != nil {
		return err
	}

	auditUpdate(ctx, s.auditWriter, s.logger, rosterSubject(r), "status", string(from), string(r.Status))
	s.logger.Info("roster status changed",
		zap.String("roster_id", r.ID),
		zap.String("from", string(from)),
		zap.String("to", string(r.Status)),
		zap.String("actor", actor.ID),
	)
	dispatch(ctx, s.executor, s.logger, statusChanged("roster", r.ID, string(from), string(r.Status), actor.ID, detail, now))
	return nil
}

// DetectConflicts lists double-bookings against other active rosters.
func (s *RosterServiceImpl) DetectConflicts(ctx context.Context, rosterID string) ([]fault.Conflict, error) {
	r, err := s.rosterRepo.GetByID(ctx, rosterID)
	if err != nil {
		return nil, err
	}
	return s.detect(ctx, r)
}

func (s *RosterServiceImpl) detect(ctx context.Context, r *roster.Roster) ([]fault.Conflict, error) {
	others, err := s.activeSectorRosters(ctx, r)
	if err != nil {
		return nil, err
	}
	conflicts := roster.DetectConflicts(r, others)
	s.metrics.ObserveConflicts(len(conflicts))
	return conflicts, nil
}

func (s *RosterServiceImpl) activeSectorRosters(ctx context.Context, r *roster.Roster) ([]*roster.Roster, error) {
	start, end := r.Start, r.End
	others, err := s.rosterRepo.List(ctx, secondary.RosterFilters{
		Site:         r.Scope.Site,
		Sector:       r.Scope.Sector,
		Statuses:     activeStatuses(),
		OverlapStart: &start,
		OverlapEnd:   &end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list overlapping rosters: %w", err)
	}
	return others, nil
}

// ResolveConflicts substitutes conflicting slots where possible.
func (s *RosterServiceImpl) ResolveConflicts(ctx context.Context, actor identity.Actor, rosterID string) (*roster.Resolution, error) {
	r, err := s.rosterRepo.GetByID(ctx, rosterID)
	if err != nil {
		return nil, err
	}
	if err := roster.CanManage(actor, r.Scope).Error(); err != nil {
		return nil, err
	}

	others, err := s.activeSectorRosters(ctx, r)
	if err != nil {
		return nil, err
	}
	conflicts := roster.DetectConflicts(r, others)
	if len(conflicts) == 0 {
		return &roster.Resolution{Resolved: true}, nil
	}

	var pool []string
	if r.Meta != nil && len(r.Meta.Candidates) > 0 {
		pool = r.Meta.Candidates
	} else if pool, err = s.resolvePool(ctx, r.Scope); err != nil {
		return nil, err
	}
	load, err := s.loadIndex(ctx, r.Scope, r.Start)
	if err != nil {
		return nil, err
	}
	avail, err := s.availabilityIndex(ctx, pool, r.Start, r.End)
	if err != nil {
		return nil, err
	}

	res, err := roster.ResolveConflicts(r, roster.ResolveInput{
		Conflicts:    conflicts,
		Pool:         pool,
		Load:         load,
		Availability: avail,
		Busy:         busyIn(r.ID, others),
		Others:       others,
	}, s.now())
	if err != nil {
		return nil, err
	}

	if len(res.Substitutions) > 0 {
		if err := s.rosterRepo.Update(ctx, r); err != nil {
			return nil, err
		}
		for _, sub := range res.Substitutions {
			auditUpdate(ctx, s.auditWriter, s.logger, rosterSubject(r), "assignment:"+calendar.FormatDay(sub.Date), sub.From, sub.To)
		}
	}
	s.metrics.ObserveSubstitutions(len(res.Substitutions))
	s.logger.Info("roster conflicts resolved",
		zap.String("roster_id", r.ID),
		zap.Int("substituted", len(res.Substitutions)),
		zap.Int("unresolved", len(res.Unresolved)),
	)
	return &res, nil
}

// busyIn reports users already holding a slot on a day in another roster.
func busyIn(selfID string, others []*roster.Roster) func(string, time.Time) bool {
	held := make(map[string]bool)
	for _, o := range others {
		if o.ID == selfID {
			continue
		}
		for _, a := range o.Assignments {
			if u := a.EffectiveUser(); u != "" {
				held[u+"|"+calendar.FormatDay(a.Date)] = true
			}
		}
	}
	return func(userID string, day time.Time) bool {
		return held[userID+"|"+calendar.FormatDay(day)]
	}
}

// WhoIsOnDuty returns the on-duty user for a scope at a time.
func (s *RosterServiceImpl) WhoIsOnDuty(ctx context.Context, req primary.OnDutyRequest) (*primary.OnDuty, error) {
	at := req.At
	if at.IsZero() {
		at = s.now()
	}
	scopeType := identity.ScopeSector
	if req.Service != "" {
		scopeType = identity.ScopeService
	}
	userID, rosterID, err := findOnDuty(ctx, s.rosterRepo, scopeType, req.Site, req.Sector, req.Service, at)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fault.New(fault.KindNoActiveRoster, "nobody on duty for %s/%s/%s on %s",
			req.Site, req.Sector, req.Service, calendar.FormatDay(at))
	}
	return &primary.OnDuty{UserID: userID, RosterID: rosterID, Date: calendar.Day(at)}, nil
}

// CoverageDates previews the dates requiring coverage in a range.
func (s *RosterServiceImpl) CoverageDates(ctx context.Context, start, end time.Time) ([]calendar.CoverageDate, error) {
	return s.resolver.Resolve(start, end)
}

func (s *RosterServiceImpl) insert(ctx context.Context, r *roster.Roster) error {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	id, err := s.rosterRepo.GetNextID(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate roster ID: %w", err)
	}
	r.ID = id
	if err := s.rosterRepo.Create(ctx, r); err != nil {
		return fmt.Errorf("failed to create roster: %w", err)
	}
	auditCreate(ctx, s.auditWriter, s.logger, rosterSubject(r))
	return nil
}

func (s *RosterServiceImpl) resolvePool(ctx context.Context, scope identity.Scope) ([]string, error) {
	in := rotation.PoolInput{ScopeType: scope.Type}
	switch scope.Type {
	case identity.ScopeService:
		cfg, err := s.directory.ServiceConfig(ctx, scope.Service)
		if err != nil {
			return nil, err
		}
		in.IncludeChiefInRotation = cfg.IncludeChiefInRotation
		if cfg.IncludeChiefInRotation && cfg.ChiefID != "" {
			chief, err := s.directory.GetUser(ctx, cfg.ChiefID)
			if err != nil && !fault.Is(err, fault.KindNotFound) {
				return nil, err
			}
			in.ServiceChief = chief
		}
		collaborators, err := s.directory.ActiveUsersByRoleAndScope(ctx, identity.RoleCollaborator, scope.Site, scope.Sector, scope.Service)
		if err != nil {
			return nil, fmt.Errorf("failed to list collaborators: %w", err)
		}
		in.Collaborators = collaborators
	case identity.ScopeSector:
		engineers, err := s.directory.ActiveUsersByRoleAndScope(ctx, identity.RoleEngineer, scope.Site, scope.Sector, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list engineers: %w", err)
		}
		in.Engineers = engineers
	}
	return rotation.ResolvePool(in), nil
}

func (s *RosterServiceImpl) loadIndex(ctx context.Context, scope identity.Scope, start time.Time) (rotation.Load, error) {
	since := rotation.LookbackStart(start, s.lookbackDays)
	history, err := s.rosterRepo.List(ctx, secondary.RosterFilters{
		ScopeType:       string(scope.Type),
		Site:            scope.Site,
		Sector:          scope.Sector,
		Service:         scope.Service,
		Statuses:        activeStatuses(),
		StartsOnOrAfter: &since,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load roster history: %w", err)
	}
	past := make([]rotation.PastRoster, 0, len(history))
	for _, h := range history {
		past = append(past, rotation.PastRoster{
			ID:          h.ID,
			Scope:       h.Scope,
			PeriodStart: h.Start,
			Assignees:   h.EffectiveUsers(),
		})
	}
	return rotation.BuildLoad(past, scope, since), nil
}

func (s *RosterServiceImpl) availabilityIndex(ctx context.Context, pool []string, start, end time.Time) (availability.Index, error) {
	if len(pool) == 0 {
		return availability.Build(nil, nil, start, end), nil
	}
	unavs, err := s.unavRepo.List(ctx, secondary.UnavailabilityFilters{
		UserIDs:      pool,
		Statuses:     []string{string(unavailability.StatusApproved)},
		OverlapStart: &start,
		OverlapEnd:   &end,
	})
	if err != nil {
		return availability.Index{}, fmt.Errorf("failed to load unavailabilities: %w", err)
	}
	records := make([]availability.Record, 0, len(unavs))
	for _, u := range unavs {
		records = append(records, availability.Record{
			UserID:   u.UserID,
			Start:    u.Start,
			End:      u.End,
			Approved: u.Status == unavailability.StatusApproved,
		})
	}
	return availability.Build(records, pool, start, end), nil
}

func (s *RosterServiceImpl) requireActiveUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fault.New(fault.KindValidation, "user is required")
	}
	u, err := s.directory.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !u.Active {
		return fault.New(fault.KindValidation, "user %s is not active", userID)
	}
	return nil
}

func (s *RosterServiceImpl) coverageOf(day time.Time) calendar.CoverageType {
	dates, err := s.resolver.Resolve(day, day)
	if err != nil || len(dates) == 0 {
		return ""
	}
	return dates[0].Type
}

func activeStatuses() []string {
	return []string{string(roster.StatusValidated), string(roster.StatusPublished)}
}

// findOnDuty looks up published rosters of a scope covering at.
func findOnDuty(ctx context.Context, repo secondary.RosterRepository, scopeType identity.ScopeType, site, sector, service string, at time.Time) (string, string, error) {
	day := calendar.Day(at)
	f := secondary.RosterFilters{
		ScopeType:    string(scopeType),
		Site:         site,
		Sector:       sector,
		Statuses:     []string{string(roster.StatusPublished)},
		OverlapStart: &day,
		OverlapEnd:   &day,
	}
	if scopeType == identity.ScopeService {
		f.Service = service
	}
	rosters, err := repo.List(ctx, f)
	if err != nil {
		return "", "", fmt.Errorf("failed to list published rosters: %w", err)
	}
	userID, rosterID, _ := roster.FindOnDuty(rosters, day)
	return userID, rosterID, nil
}

// Ensure RosterServiceImpl implements the interface
var _ primary.RosterService = (*RosterServiceImpl)(nil)
