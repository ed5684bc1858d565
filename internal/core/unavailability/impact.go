package unavailability

import (
	"sort"
	"time"

	"github.com/example/garde/internal/core/roster"
)

// ScanImpact finds active rosters where the user still holds a slot inside
// the unavailability window. It never reassigns anything.
// ReplacementFound is set when every slot the user originally held in the
// window has already been handed to someone else.
func ScanImpact(u *Unavailability, rosters []*roster.Roster, now time.Time) Impact {
	impact := Impact{ScannedAt: &now}
	originally := 0

	for _, r := range rosters {
		if r == nil || !roster.IsActive(r.Status) {
			continue
		}
		var dates []time.Time
		for _, a := range r.Assignments {
			if !u.Covers(a.Date) {
				continue
			}
			if a.UserID == u.UserID {
				originally++
			}
			if a.EffectiveUser() == u.UserID {
				dates = append(dates, a.Date)
			}
		}
		if len(dates) > 0 {
			impact.Affected = append(impact.Affected, AffectedRoster{RosterID: r.ID, Dates: dates})
		}
	}

	sort.Slice(impact.Affected, func(i, j int) bool { return impact.Affected[i].RosterID < impact.Affected[j].RosterID })
	impact.RecalcNeeded = len(impact.Affected) > 0
	impact.ReplacementFound = originally > 0 && len(impact.Affected) == 0
	return impact
}

// AffectedDates counts the slots across all affected rosters.
func (i Impact) AffectedDates() int {
	n := 0
	for _, a := range i.Affected {
		n += len(a.Dates)
	}
	return n
}

// ApplyScan stores a fresh scan. The scan that follows approval keeps
// recalculation pending; later rescans clear it once nothing is affected.
func (u *Unavailability) ApplyScan(scan Impact, afterApproval bool) {
	if afterApproval {
		scan.RecalcNeeded = true
	}
	u.Impact = scan
}
