package escalation

import "github.com/example/garde/internal/core/fault"

// Chain holds the pre-fetched candidates for every level of a case.
type Chain struct {
	OnDuty          string   // from the published roster of the case scope
	SectorOnDuty    string   // from the published sector-type roster
	SectorEngineers []string // active engineers of the sector, fallback for level 2
	SectorChief     string
}

// Responder picks the target for a level.
// Rules:
// - level 1: the on-duty user, else NoActiveRoster
// - level 2: the sector roster's on-duty engineer, else the first active
//   engineer of the sector, else NoEligiblePersonnel
// - level 3: the sector chief, else NotFound
func (ch Chain) Responder(level int) (string, error) {
	switch level {
	case 1:
		if ch.OnDuty == "" {
			return "", fault.New(fault.KindNoActiveRoster, "no published roster has anyone on duty for this incident")
		}
		return ch.OnDuty, nil
	case 2:
		if ch.SectorOnDuty != "" {
			return ch.SectorOnDuty, nil
		}
		if len(ch.SectorEngineers) > 0 {
			return ch.SectorEngineers[0], nil
		}
		return "", fault.New(fault.KindNoEligiblePersonnel, "no active engineer in the sector")
	case 3:
		if ch.SectorChief == "" {
			return "", fault.New(fault.KindNotFound, "the sector has no designated chief")
		}
		return ch.SectorChief, nil
	}
	return "", fault.New(fault.KindMaxLevelReached, "level %d is beyond the chain", level)
}
