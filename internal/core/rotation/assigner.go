package rotation

import (
	"sort"
	"time"

	"github.com/example/garde/internal/core/availability"
	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
)

// AlgorithmName identifies this assigner in generation metadata.
const AlgorithmName = "greedy_least_load"

// Assignment is one generated (date, user) pair.
type Assignment struct {
	Date     time.Time
	UserID   string
	Coverage calendar.CoverageType
}

// Stats summarizes a generation run.
type Stats struct {
	TotalDates       int
	TotalAssignments int
	WeekendsCovered  int
	HolidaysCovered  int
	CoverageRatio    float64
}

// Result is the output of a generation run. Load is the updated counter
// snapshot; the input load is left untouched.
type Result struct {
	Assignments []Assignment
	Uncovered   []calendar.CoverageDate
	Load        Load
	Stats       Stats
}

// Input is everything the assigner needs, pre-fetched.
type Input struct {
	Dates        []calendar.CoverageDate
	Candidates   []string // stable input order is the tie-break
	Load         Load
	Availability availability.Index
}

// Generate validates preconditions and runs the assigner.
// Rules:
// - an empty pool fails with NoEligiblePersonnel
// - an empty coverage window fails with EmptyCoverageWindow
func Generate(in Input) (Result, error) {
	if len(in.Candidates) == 0 {
		return Result{}, fault.New(fault.KindNoEligiblePersonnel, "no eligible personnel for this scope")
	}
	if len(in.Dates) == 0 {
		return Result{}, fault.New(fault.KindEmptyCoverageWindow, "no weekend or holiday in the requested period")
	}
	return Assign(in), nil
}

// Assign walks dates in chronological order and gives each one to the least
// loaded available candidate. It never backtracks: a date with no available
// candidate is reported uncovered.
func Assign(in Input) Result {
	dates := make([]calendar.CoverageDate, len(in.Dates))
	copy(dates, in.Dates)
	sort.SliceStable(dates, func(i, j int) bool { return dates[i].Date.Before(dates[j].Date) })

	load := in.Load.Clone()
	res := Result{Load: load}

	for _, cd := range dates {
		day := cd.Date
		userID, ok := PickLeastLoaded(in.Candidates, load, func(u string) bool {
			return !in.Availability.IsUnavailable(u, day)
		})
		if !ok {
			res.Uncovered = append(res.Uncovered, cd)
			continue
		}
		res.Assignments = append(res.Assignments, Assignment{Date: cd.Date, UserID: userID, Coverage: cd.Type})
		load[userID]++

		switch cd.Type {
		case calendar.CoverageWeekend:
			res.Stats.WeekendsCovered++
		case calendar.CoverageHoliday:
			res.Stats.HolidaysCovered++
		}
	}

	res.Stats.TotalDates = len(dates)
	res.Stats.TotalAssignments = len(res.Assignments)
	if len(dates) > 0 {
		res.Stats.CoverageRatio = float64(len(res.Assignments)) / float64(len(dates))
	}
	return res
}

// PickLeastLoaded orders candidates by ascending load (stable on input order)
// and returns the first one for which eligible holds.
func PickLeastLoaded(candidates []string, load Load, eligible func(userID string) bool) (string, bool) {
	ordered := make([]string, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return load.Of(ordered[i]) < load.Of(ordered[j])
	})

	for _, u := range ordered {
		if eligible == nil || eligible(u) {
			return u, true
		}
	}
	return "", false
}

// PoolInput carries the org lookups needed to resolve a candidate pool.
type PoolInput struct {
	ScopeType              identity.ScopeType
	ServiceChief           *identity.User // service scope only; may be nil
	IncludeChiefInRotation bool
	Collaborators          []identity.User // service scope
	Engineers              []identity.User // sector scope
}

// ResolvePool builds the deduplicated, active-only candidate list.
// Service rosters: chief (when configured) then collaborators.
// Sector rosters: engineers of the sector.
func ResolvePool(in PoolInput) []string {
	var users []identity.User
	switch in.ScopeType {
	case identity.ScopeService:
		if in.IncludeChiefInRotation && in.ServiceChief != nil {
			users = append(users, *in.ServiceChief)
		}
		users = append(users, in.Collaborators...)
	case identity.ScopeSector:
		users = append(users, in.Engineers...)
	}

	seen := make(map[string]bool, len(users))
	pool := make([]string, 0, len(users))
	for _, u := range users {
		if !u.Active || u.ID == "" || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		pool = append(pool, u.ID)
	}
	return pool
}
