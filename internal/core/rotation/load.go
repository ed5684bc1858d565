// Package rotation contains the fair-rotation assignment algorithm.
// This is part of the Functional Core - no I/O, only pure functions.
package rotation

import (
	"time"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/identity"
)

// DefaultLookbackDays is how far back historical load is counted.
const DefaultLookbackDays = 90

// Load is a per-user assignment count. Absent users count zero.
type Load map[string]int

// Of returns the user's count.
func (l Load) Of(userID string) int {
	return l[userID]
}

// Clone returns an independent copy.
func (l Load) Clone() Load {
	c := make(Load, len(l))
	for k, v := range l {
		c[k] = v
	}
	return c
}

// PastRoster is the slice of a previously validated or published roster the
// load index needs. Assignees lists the effective user of every assignment.
type PastRoster struct {
	ID          string
	Scope       identity.Scope
	PeriodStart time.Time
	Assignees   []string
}

// LookbackStart returns the first day counted for a generation starting at start.
func LookbackStart(start time.Time, days int) time.Time {
	if days <= 0 {
		days = DefaultLookbackDays
	}
	return calendar.Day(start).AddDate(0, 0, -days)
}

// BuildLoad tallies one unit per assignment per user over rosters of the same
// scope whose period starts on or after since. Callers pass only active
// (validated or published) rosters.
func BuildLoad(history []PastRoster, scope identity.Scope, since time.Time) Load {
	since = calendar.Day(since)
	load := Load{}
	for _, r := range history {
		if !r.Scope.Equal(scope) {
			continue
		}
		if calendar.Day(r.PeriodStart).Before(since) {
			continue
		}
		for _, u := range r.Assignees {
			if u == "" {
				continue
			}
			load[u]++
		}
	}
	return load
}
