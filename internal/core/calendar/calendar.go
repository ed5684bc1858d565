// Package calendar resolves which dates in a range require on-call coverage.
// This is part of the Functional Core - no I/O, only pure functions.
package calendar

import (
	"time"

	"github.com/example/garde/internal/core/fault"
)

// DayLayout is the canonical textual form of a coverage day.
const DayLayout = "2006-01-02"

// CoverageType tags why a date needs coverage.
type CoverageType string

const (
	CoverageWeekend CoverageType = "weekend"
	CoverageHoliday CoverageType = "holiday"
)

// CoverageDate is one day requiring an assignment.
type CoverageDate struct {
	Date        time.Time
	Type        CoverageType
	HolidayName string // set when Type == CoverageHoliday
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fault.New(fault.KindValidation, "invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Resolver enumerates coverage dates against a holiday table.
type Resolver struct {
	holidays HolidayTable
}

// NewResolver creates a resolver over the given holiday table.
// A nil table means weekends only.
func NewResolver(holidays HolidayTable) Resolver {
	return Resolver{holidays: holidays}
}

// Resolve returns every weekend or holiday day in [start, end], both inclusive,
// sorted ascending without duplicates. A holiday falling on a weekend is tagged
// holiday. An empty result is not an error here; generation reports it.
func (r Resolver) Resolve(start, end time.Time) ([]CoverageDate, error) {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil, fault.New(fault.KindValidation, "end %s is before start %s", FormatDay(end), FormatDay(start))
	}

	var dates []CoverageDate
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if name, ok := r.holidays.Lookup(d); ok {
			dates = append(dates, CoverageDate{Date: d, Type: CoverageHoliday, HolidayName: name})
			continue
		}
		if IsWeekend(d) {
			dates = append(dates, CoverageDate{Date: d, Type: CoverageWeekend})
		}
	}
	return dates, nil
}

// Summary counts coverage dates by type.
type Summary struct {
	Total    int
	Weekends int
	Holidays int
}

// Summarize counts the given coverage dates by type.
func Summarize(dates []CoverageDate) Summary {
	s := Summary{Total: len(dates)}
	for _, d := range dates {
		switch d.Type {
		case CoverageWeekend:
			s.Weekends++
		case CoverageHoliday:
			s.Holidays++
		}
	}
	return s
}
