package roster

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/garde/internal/core/availability"
	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/rotation"
)

// DetectConflicts compares r against every other active roster of the same
// site and sector with an overlapping period. A conflict is a (date, user)
// pair held in both. The result is sorted and r is not modified.
func DetectConflicts(r *Roster, others []*Roster) []fault.Conflict {
	mine := make(map[string]string, len(r.Assignments))
	for _, a := range r.Assignments {
		if u := a.EffectiveUser(); u != "" {
			mine[calendar.FormatDay(a.Date)] = u
		}
	}

	var conflicts []fault.Conflict
	for _, o := range others {
		if o == nil || o.ID == r.ID || !IsActive(o.Status) {
			continue
		}
		if !o.Scope.SameSector(r.Scope) || !r.Overlaps(o) {
			continue
		}
		for _, a := range o.Assignments {
			u := a.EffectiveUser()
			if u != "" && mine[calendar.FormatDay(a.Date)] == u {
				conflicts = append(conflicts, fault.Conflict{Date: a.Date, UserID: u, ConflictingRosterID: o.ID})
			}
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		ci, cj := conflicts[i], conflicts[j]
		if !ci.Date.Equal(cj.Date) {
			return ci.Date.Before(cj.Date)
		}
		if ci.UserID != cj.UserID {
			return ci.UserID < cj.UserID
		}
		return ci.ConflictingRosterID < cj.ConflictingRosterID
	})
	return conflicts
}

// Substitution records one slot handed to a new user to clear a conflict.
type Substitution struct {
	Date                time.Time
	From                string
	To                  string
	ConflictingRosterID string
}

// Resolution is the outcome of ResolveConflicts.
type Resolution struct {
	Resolved      bool
	Substitutions []Substitution
	Unresolved    []fault.Conflict
}

// ResolveInput carries the pre-fetched state conflict resolution needs.
type ResolveInput struct {
	Conflicts    []fault.Conflict
	Pool         []string // the roster's original candidate pool
	Load         rotation.Load
	Availability availability.Index
	// Busy reports whether a user already holds a slot on day in another
	// active roster.
	Busy func(userID string, day time.Time) bool
	// Others are the rosters named by the conflicts. Only the later-created
	// side of a conflict gives up its slot.
	Others []*Roster
}

// CreatedAfter reports whether r was created after o, breaking ties on ID.
func (r *Roster) CreatedAfter(o *Roster) bool {
	if !r.CreatedAt.Equal(o.CreatedAt) {
		return r.CreatedAt.After(o.CreatedAt)
	}
	return r.ID > o.ID
}

// ResolveConflicts tries to substitute every conflicting slot of r with the
// least loaded candidate from the pool who is available and not booked
// elsewhere that day. The running load counts r's own slots on top of
// in.Load. Conflicts with no eligible substitute are reported, and so are
// conflicts against a roster created after r: that roster yields instead.
// Rules:
// - roster must be draft or pending_validation
func ResolveConflicts(r *Roster, in ResolveInput, now time.Time) (Resolution, error) {
	if r.Status != StatusDraft && r.Status != StatusPendingValidation {
		return Resolution{}, fault.New(fault.KindRosterNotEditable, "cannot resolve conflicts on roster %s in status %s", r.ID, r.Status)
	}

	others := make(map[string]*Roster, len(in.Others))
	for _, o := range in.Others {
		if o != nil {
			others[o.ID] = o
		}
	}

	load := in.Load.Clone()
	for _, u := range r.EffectiveUsers() {
		load[u]++
	}
	res := Resolution{}
	for _, c := range in.Conflicts {
		i := r.AssignmentOn(c.Date)
		if i < 0 || r.Assignments[i].EffectiveUser() != c.UserID {
			// already cleared by an earlier substitution
			continue
		}
		if o, ok := others[c.ConflictingRosterID]; ok && !r.CreatedAfter(o) {
			res.Unresolved = append(res.Unresolved, c)
			continue
		}
		day := r.Assignments[i].Date
		sub, ok := rotation.PickLeastLoaded(in.Pool, load, func(u string) bool {
			if u == c.UserID || in.Availability.IsUnavailable(u, day) {
				return false
			}
			return in.Busy == nil || !in.Busy(u, day)
		})
		if !ok {
			res.Unresolved = append(res.Unresolved, c)
			continue
		}

		r.substitute(i, sub, fmt.Sprintf("double-booked with %s", c.ConflictingRosterID), now)
		load[c.UserID]--
		load[sub]++
		res.Substitutions = append(res.Substitutions, Substitution{
			Date:                day,
			From:                c.UserID,
			To:                  sub,
			ConflictingRosterID: c.ConflictingRosterID,
		})
	}
	res.Resolved = len(res.Unresolved) == 0
	return res, nil
}

// FindOnDuty returns the effective user on day across published rosters,
// scanning in the given order.
func FindOnDuty(rosters []*Roster, day time.Time) (userID, rosterID string, ok bool) {
	d := calendar.Day(day)
	for _, r := range rosters {
		if r == nil || r.Status != StatusPublished || !r.Contains(d) {
			continue
		}
		if u, found := r.OnDuty(d); found {
			return u, r.ID, true
		}
	}
	return "", "", false
}
