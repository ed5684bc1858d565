// Package escalation contains the incident-escalation state machine.
// A case walks a fixed chain of responders (on-duty user, sector engineer,
// sector chief) with per-level timeouts and contact-attempt limits.
// This is part of the Functional Core - no I/O, only pure functions.
package escalation

import (
	"fmt"
	"math"
	"time"

	"github.com/example/garde/internal/core/effects"
	"github.com/example/garde/internal/core/fault"
)

// MaxLevel is the last level of the chain.
const MaxLevel = 3

// Status represents the possible states of a case.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusForwarded  Status = "forwarded"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s != StatusInProgress
}

// ResponseType is how a responder answered.
type ResponseType string

const (
	ResponseAccepted  ResponseType = "accepted"
	ResponseDeclined  ResponseType = "declined"
	ResponseForwarded ResponseType = "forwarded"
	ResponseTimeout   ResponseType = "timeout"
)

// Channel is a contact medium.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelCall  Channel = "call"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelCall, ChannelEmail, ChannelPush:
		return true
	}
	return false
}

// DeliveryStatus is transport feedback for an attempt.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Valid reports whether d is a known delivery status.
func (d DeliveryStatus) Valid() bool {
	switch d {
	case DeliveryPending, DeliverySent, DeliveryDelivered, DeliveryFailed:
		return true
	}
	return false
}

// ResolutionMethod is how the incident was handled.
type ResolutionMethod string

const (
	MethodOnSite ResolutionMethod = "on_site"
	MethodRemote ResolutionMethod = "remote"
	MethodPhone  ResolutionMethod = "phone"
	MethodOther  ResolutionMethod = "other"
)

// Valid reports whether m is a known method.
func (m ResolutionMethod) Valid() bool {
	switch m {
	case MethodOnSite, MethodRemote, MethodPhone, MethodOther:
		return true
	}
	return false
}

// Config holds per-case escalation parameters.
type Config struct {
	TimeoutMinutes      [MaxLevel]int
	MaxAttemptsPerLevel int
	MinIntervalMinutes  int
}

// DefaultConfig returns 15/15/30 minute timeouts, 3 attempts per level and
// 5 minutes between attempts.
func DefaultConfig() Config {
	return Config{
		TimeoutMinutes:      [MaxLevel]int{15, 15, 30},
		MaxAttemptsPerLevel: 3,
		MinIntervalMinutes:  5,
	}
}

// Validate checks that every parameter is usable.
func (c Config) Validate() error {
	for i, m := range c.TimeoutMinutes {
		if m <= 0 {
			return fault.New(fault.KindValidation, "timeout for level %d must be positive", i+1)
		}
	}
	if c.MaxAttemptsPerLevel <= 0 {
		return fault.New(fault.KindValidation, "max attempts per level must be positive")
	}
	if c.MinIntervalMinutes < 0 {
		return fault.New(fault.KindValidation, "min interval between attempts cannot be negative")
	}
	return nil
}

// TimeoutFor returns the response timeout for a level number (1-based).
func (c Config) TimeoutFor(level int) time.Duration {
	if level < 1 || level > MaxLevel {
		return 0
	}
	return time.Duration(c.TimeoutMinutes[level-1]) * time.Minute
}

// Incident describes what happened.
type Incident struct {
	Description string
	Type        string
	Priority    string
	Time        time.Time
}

// Declarant is who reported the incident.
type Declarant struct {
	Name    string
	Contact string
	UserID  string // optional internal user
}

// ContactAttempt is one try to reach a level's responder.
type ContactAttempt struct {
	Number         int
	Channel        Channel
	SentAt         time.Time
	DeliveryStatus DeliveryStatus
}

// Level is one rung of the chain.
type Level struct {
	Number              int
	ResponderID         string
	ContactedAt         time.Time
	Attempts            []ContactAttempt
	Responded           bool
	RespondedAt         *time.Time
	ResponseTimeMinutes *int
	ResponseType        ResponseType
	ForwardedTo         string
	Comment             string
}

// Resolution stamps how the case ended well.
type Resolution struct {
	ResolverID   string
	ResolvedAt   time.Time
	Minutes      int
	Method       ResolutionMethod
	Comment      string
	Satisfaction int // 0 when not rated, else 1..5
}

// HistoryEntry is one line of the append-only audit trail.
type HistoryEntry struct {
	At      time.Time
	ActorID string
	Level   int
	Action  string
	Detail  string
}

// Metrics are recomputed after every mutation.
type Metrics struct {
	TotalMinutes  *int // incident to resolution, set once resolved
	TotalAttempts int
	LevelsReached int
	ResponseRate  float64 // responded levels / opened levels
}

// Case is an escalation of one incident.
type Case struct {
	ID         string
	Incident   Incident
	Site       string
	Sector     string
	Service    string
	Declarant  Declarant
	Levels     []Level
	Status     Status
	Resolution *Resolution
	Config     Config
	History    []HistoryEntry
	Metrics    Metrics
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int

	pending []effects.Effect
}

// CurrentLevel returns the highest opened level, or nil before Start.
func (c *Case) CurrentLevel() *Level {
	if len(c.Levels) == 0 {
		return nil
	}
	return &c.Levels[len(c.Levels)-1]
}

// Level returns the level with the given number.
func (c *Case) Level(number int) (*Level, error) {
	for i := range c.Levels {
		if c.Levels[i].Number == number {
			return &c.Levels[i], nil
		}
	}
	return nil, fault.New(fault.KindNotFound, "case %s has no level %d", c.ID, number)
}

// NextLevel returns the number the next escalation would open.
func (c *Case) NextLevel() (int, error) {
	cur := c.CurrentLevel()
	if cur == nil {
		return 1, nil
	}
	if cur.Number >= MaxLevel {
		return 0, fault.New(fault.KindMaxLevelReached, "case %s is already at level %d", c.ID, MaxLevel)
	}
	return cur.Number + 1, nil
}

// TakeEffects returns and clears the effects produced since the last call.
func (c *Case) TakeEffects() []effects.Effect {
	out := c.pending
	c.pending = nil
	return out
}

// Recompute refreshes the derived metrics.
func (c *Case) Recompute() {
	m := Metrics{LevelsReached: len(c.Levels)}
	responded := 0
	for _, l := range c.Levels {
		m.TotalAttempts += len(l.Attempts)
		if l.Responded {
			responded++
		}
	}
	if len(c.Levels) > 0 {
		m.ResponseRate = float64(responded) / float64(len(c.Levels))
	}
	if c.Resolution != nil {
		minutes := c.Resolution.Minutes
		m.TotalMinutes = &minutes
	}
	c.Metrics = m
}

func (c *Case) record(now time.Time, actorID string, level int, action, detail string) {
	c.History = append(c.History, HistoryEntry{At: now, ActorID: actorID, Level: level, Action: action, Detail: detail})
	c.UpdatedAt = now
	c.Recompute()
}

func (c *Case) setStatus(to Status, actorID, detail string, now time.Time) {
	from := c.Status
	c.Status = to
	c.pending = append(c.pending, effects.StatusChangedEffect{
		Entity:   "escalation",
		EntityID: c.ID,
		From:     string(from),
		To:       string(to),
		ActorID:  actorID,
		Detail:   detail,
		At:       now,
	})
}

func (c *Case) requireInProgress(op string) error {
	if c.Status != StatusInProgress {
		return fault.New(fault.KindValidation, "cannot %s case %s in status %s", op, c.ID, c.Status)
	}
	return nil
}

func minutesBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(math.Round(d.Minutes()))
}

func levelAction(n int) string {
	return fmt.Sprintf("escalade_niveau%d", n)
}
