package escalation

import (
	"time"

	"github.com/example/garde/internal/core/effects"
	"github.com/example/garde/internal/core/fault"
)

// History actions.
const (
	ActionCreated   = "creation"
	ActionContact   = "tentative_contact"
	ActionDelivery  = "statut_livraison"
	ActionResponse  = "reponse"
	ActionTimeout   = "timeout"
	ActionResolved  = "resolution"
	ActionCancelled = "annulation"
	ActionFailed    = "echec"
	ActionForwarded = "transfert"
)

// OpenRequest carries the incident being escalated.
type OpenRequest struct {
	Incident  Incident
	Site      string
	Sector    string
	Service   string
	Declarant Declarant
	Config    *Config // nil uses DefaultConfig
	ActorID   string
}

// Open creates an in_progress case with no levels.
// Rules:
// - description, site and sector are required
// - the configuration must be valid
func Open(id string, req OpenRequest, now time.Time) (*Case, error) {
	if req.Incident.Description == "" {
		return nil, fault.New(fault.KindValidation, "incident description is required")
	}
	if req.Site == "" || req.Sector == "" {
		return nil, fault.New(fault.KindValidation, "incident site and sector are required")
	}
	cfg := DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	incident := req.Incident
	if incident.Time.IsZero() {
		incident.Time = now
	}
	if incident.Priority == "" {
		incident.Priority = "normal"
	}

	c := &Case{
		ID:        id,
		Incident:  incident,
		Site:      req.Site,
		Sector:    req.Sector,
		Service:   req.Service,
		Declarant: req.Declarant,
		Status:    StatusInProgress,
		Config:    cfg,
		CreatedAt: now,
	}
	c.record(now, req.ActorID, 0, ActionCreated, incident.Description)
	return c, nil
}

// Start opens level 1 against the resolved on-duty responder.
func (c *Case) Start(responderID, actorID string, now time.Time) error {
	if err := c.requireInProgress("start"); err != nil {
		return err
	}
	if len(c.Levels) > 0 {
		return fault.New(fault.KindValidation, "case %s has already started", c.ID)
	}
	if responderID == "" {
		return fault.New(fault.KindNoActiveRoster, "no on-duty responder for case %s", c.ID)
	}
	c.openLevel(1, responderID, actorID, now)
	return nil
}

// EscalateToNext opens the next level against responderID. An unanswered
// current level is closed as a timeout. Levels never skip.
func (c *Case) EscalateToNext(responderID, actorID string, now time.Time) error {
	if err := c.requireInProgress("escalate"); err != nil {
		return err
	}
	if len(c.Levels) == 0 {
		return fault.New(fault.KindValidation, "case %s has not started", c.ID)
	}
	next, err := c.NextLevel()
	if err != nil {
		return err
	}
	if responderID == "" {
		return fault.New(fault.KindNoEligiblePersonnel, "no responder for level %d of case %s", next, c.ID)
	}
	c.closeAsTimeout(actorID, now)
	c.openLevel(next, responderID, actorID, now)
	return nil
}

func (c *Case) openLevel(n int, responderID, actorID string, now time.Time) {
	c.Levels = append(c.Levels, Level{Number: n, ResponderID: responderID, ContactedAt: now})
	c.record(now, actorID, n, levelAction(n), responderID)
}

func (c *Case) closeAsTimeout(actorID string, now time.Time) {
	cur := c.CurrentLevel()
	if cur == nil || cur.Responded {
		return
	}
	cur.ResponseType = ResponseTimeout
	c.record(now, actorID, cur.Number, ActionTimeout, cur.ResponderID)
}

// RecordContactAttempt logs a new attempt on a level and requests delivery.
// Rules:
// - fewer than MaxAttemptsPerLevel attempts already made
// - at least MinIntervalMinutes since the previous attempt on that level
func (c *Case) RecordContactAttempt(levelNumber int, channel Channel, actorID string, now time.Time) (ContactAttempt, error) {
	if err := c.requireInProgress("contact"); err != nil {
		return ContactAttempt{}, err
	}
	if !channel.Valid() {
		return ContactAttempt{}, fault.New(fault.KindValidation, "unknown channel %q", channel)
	}
	lvl, err := c.Level(levelNumber)
	if err != nil {
		return ContactAttempt{}, err
	}
	if len(lvl.Attempts) >= c.Config.MaxAttemptsPerLevel {
		return ContactAttempt{}, fault.New(fault.KindContactRateLimit,
			"level %d of case %s already has %d attempt(s)", levelNumber, c.ID, len(lvl.Attempts))
	}
	if n := len(lvl.Attempts); n > 0 {
		gap := time.Duration(c.Config.MinIntervalMinutes) * time.Minute
		if now.Sub(lvl.Attempts[n-1].SentAt) < gap {
			return ContactAttempt{}, fault.New(fault.KindContactRateLimit,
				"attempts on level %d must be at least %d minute(s) apart", levelNumber, c.Config.MinIntervalMinutes)
		}
	}

	attempt := ContactAttempt{
		Number:         len(lvl.Attempts) + 1,
		Channel:        channel,
		SentAt:         now,
		DeliveryStatus: DeliveryPending,
	}
	lvl.Attempts = append(lvl.Attempts, attempt)
	c.pending = append(c.pending, effects.ContactRequestedEffect{
		CaseID:        c.ID,
		Level:         levelNumber,
		AttemptNumber: attempt.Number,
		Channel:       string(channel),
		RecipientID:   lvl.ResponderID,
		RequestedAt:   now,
	})
	c.record(now, actorID, levelNumber, ActionContact, string(channel))
	return attempt, nil
}

// UpdateDeliveryStatus applies transport feedback to an attempt. Allowed on
// terminal cases too, since feedback may arrive late.
func (c *Case) UpdateDeliveryStatus(levelNumber, attemptNumber int, status DeliveryStatus, now time.Time) error {
	if !status.Valid() {
		return fault.New(fault.KindValidation, "unknown delivery status %q", status)
	}
	lvl, err := c.Level(levelNumber)
	if err != nil {
		return err
	}
	if attemptNumber < 1 || attemptNumber > len(lvl.Attempts) {
		return fault.New(fault.KindNotFound, "level %d of case %s has no attempt %d", levelNumber, c.ID, attemptNumber)
	}
	lvl.Attempts[attemptNumber-1].DeliveryStatus = status
	c.record(now, "", levelNumber, ActionDelivery, string(status))
	return nil
}

// ResponseRequest is a responder's answer on a level.
type ResponseRequest struct {
	Level       int
	Type        ResponseType
	Comment     string
	ForwardedTo string
	Method      ResolutionMethod // used when Type is accepted
	ActorID     string
}

// RecordResponse stamps a level as answered. Accepting resolves the case;
// declining or forwarding leaves it in_progress for an explicit escalation.
func (c *Case) RecordResponse(req ResponseRequest, now time.Time) error {
	if err := c.requireInProgress("record a response on"); err != nil {
		return err
	}
	lvl, err := c.Level(req.Level)
	if err != nil {
		return err
	}
	if lvl.Responded {
		return fault.New(fault.KindValidation, "level %d of case %s already responded", req.Level, c.ID)
	}
	if lvl.ResponseType != "" || lvl.Number != c.CurrentLevel().Number {
		return fault.New(fault.KindValidation, "level %d of case %s was superseded", req.Level, c.ID)
	}
	switch req.Type {
	case ResponseAccepted, ResponseDeclined:
	case ResponseForwarded:
		if req.ForwardedTo == "" {
			return fault.New(fault.KindValidation, "forwarded responses need a target")
		}
	default:
		return fault.New(fault.KindValidation, "invalid response type %q", req.Type)
	}

	minutes := minutesBetween(lvl.ContactedAt, now)
	lvl.Responded = true
	lvl.RespondedAt = &now
	lvl.ResponseTimeMinutes = &minutes
	lvl.ResponseType = req.Type
	lvl.ForwardedTo = req.ForwardedTo
	lvl.Comment = req.Comment

	actor := req.ActorID
	if actor == "" {
		actor = lvl.ResponderID
	}
	c.record(now, actor, req.Level, ActionResponse, string(req.Type))

	if req.Type == ResponseAccepted {
		return c.Resolve(ResolveRequest{ResolverID: lvl.ResponderID, Comment: req.Comment, Method: req.Method}, now)
	}
	return nil
}

// IsInTimeout reports whether the current level is unanswered past its timeout.
func (c *Case) IsInTimeout(now time.Time) bool {
	if c.Status != StatusInProgress {
		return false
	}
	cur := c.CurrentLevel()
	if cur == nil || cur.Responded {
		return false
	}
	return now.Sub(cur.ContactedAt) > c.Config.TimeoutFor(cur.Number)
}

// ResolveRequest closes a case successfully.
type ResolveRequest struct {
	ResolverID   string
	Comment      string
	Method       ResolutionMethod
	Satisfaction int
}

// Resolve marks the case resolved and stamps resolution metrics.
func (c *Case) Resolve(req ResolveRequest, now time.Time) error {
	if err := c.requireInProgress("resolve"); err != nil {
		return err
	}
	if req.Method != "" && !req.Method.Valid() {
		return fault.New(fault.KindValidation, "unknown resolution method %q", req.Method)
	}
	if req.Satisfaction < 0 || req.Satisfaction > 5 {
		return fault.New(fault.KindValidation, "satisfaction must be between 0 and 5")
	}
	c.Resolution = &Resolution{
		ResolverID:   req.ResolverID,
		ResolvedAt:   now,
		Minutes:      minutesBetween(c.Incident.Time, now),
		Method:       req.Method,
		Comment:      req.Comment,
		Satisfaction: req.Satisfaction,
	}
	c.setStatus(StatusResolved, req.ResolverID, req.Comment, now)
	c.record(now, req.ResolverID, c.levelNumber(), ActionResolved, req.Comment)
	return nil
}

// Cancel abandons an in-progress case.
func (c *Case) Cancel(actorID, reason string, now time.Time) error {
	if err := c.requireInProgress("cancel"); err != nil {
		return err
	}
	c.setStatus(StatusCancelled, actorID, reason, now)
	c.record(now, actorID, c.levelNumber(), ActionCancelled, reason)
	return nil
}

// Fail ends a case nobody could take, closing an unanswered level as timeout.
func (c *Case) Fail(actorID, reason string, now time.Time) error {
	if err := c.requireInProgress("fail"); err != nil {
		return err
	}
	c.closeAsTimeout(actorID, now)
	c.setStatus(StatusFailed, actorID, reason, now)
	c.record(now, actorID, c.levelNumber(), ActionFailed, reason)
	return nil
}

// Forward hands the whole incident to a party outside the chain.
func (c *Case) Forward(actorID, target, comment string, now time.Time) error {
	if err := c.requireInProgress("forward"); err != nil {
		return err
	}
	if target == "" {
		return fault.New(fault.KindValidation, "a forward target is required")
	}
	detail := target
	if comment != "" {
		detail += ": " + comment
	}
	c.setStatus(StatusForwarded, actorID, target, now)
	c.record(now, actorID, c.levelNumber(), ActionForwarded, detail)
	return nil
}

func (c *Case) levelNumber() int {
	if cur := c.CurrentLevel(); cur != nil {
		return cur.Number
	}
	return 0
}

// Rehydrate rebuilds derived state after loading from storage.
func (c *Case) Rehydrate() {
	c.pending = nil
	c.Recompute()
}
