// Package availability answers "is user U unavailable on day D" from approved
// unavailability intervals.
// This is part of the Functional Core - no I/O, only pure functions.
package availability

import (
	"time"

	"github.com/example/garde/internal/core/calendar"
)

// Interval is an inclusive day range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether day falls within the interval, both ends inclusive.
func (iv Interval) Contains(day time.Time) bool {
	d := calendar.Day(day)
	return !d.Before(calendar.Day(iv.Start)) && !d.After(calendar.Day(iv.End))
}

// Overlaps reports whether the interval intersects [start, end].
func (iv Interval) Overlaps(start, end time.Time) bool {
	return !(calendar.Day(iv.End).Before(calendar.Day(start)) || calendar.Day(iv.Start).After(calendar.Day(end)))
}

// Record is the minimal view of an unavailability needed to build the index.
type Record struct {
	UserID   string
	Start    time.Time
	End      time.Time
	Approved bool
}

// Index maps a user to the intervals during which they cannot be assigned.
// It is rebuilt per generation run and never mutated after construction.
type Index struct {
	byUser map[string][]Interval
}

// Build keeps approved records of candidates that intersect [start, end].
func Build(records []Record, candidates []string, start, end time.Time) Index {
	wanted := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		wanted[c] = true
	}

	idx := Index{byUser: make(map[string][]Interval)}
	for _, r := range records {
		if !r.Approved || !wanted[r.UserID] {
			continue
		}
		iv := Interval{Start: calendar.Day(r.Start), End: calendar.Day(r.End)}
		if !iv.Overlaps(start, end) {
			continue
		}
		idx.byUser[r.UserID] = append(idx.byUser[r.UserID], iv)
	}
	return idx
}

// IsUnavailable reports whether the user has an interval covering day.
func (idx Index) IsUnavailable(userID string, day time.Time) bool {
	for _, iv := range idx.byUser[userID] {
		if iv.Contains(day) {
			return true
		}
	}
	return false
}

// Intervals returns the stored intervals for a user.
func (idx Index) Intervals(userID string) []Interval {
	return idx.byUser[userID]
}

// Users returns the number of users with at least one interval.
func (idx Index) Users() int {
	return len(idx.byUser)
}
