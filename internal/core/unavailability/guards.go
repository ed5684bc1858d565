package unavailability

import (
	"fmt"

	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to a Forbidden error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fault.New(fault.KindForbidden, "%s", r.Reason)
}

// CanApprove evaluates whether approver may decide on a request owned by owner,
// and at which level.
// Rules:
// - admin: always, level automatic
// - engineer: sector_chief of the same sector
// - collaborator or service_chief: service_chief of the same service
// - sector_chief: admin only
func CanApprove(approver identity.Actor, owner identity.User) (ApprovalLevel, GuardResult) {
	if approver.IsAdmin() {
		return LevelAutomatic, GuardResult{Allowed: true}
	}

	switch owner.Role {
	case identity.RoleEngineer:
		if approver.Role == identity.RoleSectorChief && approver.Sector == owner.Sector && approver.Site == owner.Site {
			return LevelSectorChief, GuardResult{Allowed: true}
		}
		return "", GuardResult{
			Reason: fmt.Sprintf("only the sector chief of %s can decide on %s's unavailability", owner.Sector, owner.ID),
		}
	case identity.RoleCollaborator, identity.RoleServiceChief:
		if approver.Role == identity.RoleServiceChief && approver.Service == owner.Service && approver.ID != owner.ID {
			return LevelServiceChief, GuardResult{Allowed: true}
		}
		return "", GuardResult{
			Reason: fmt.Sprintf("only the service chief of %s can decide on %s's unavailability", owner.Service, owner.ID),
		}
	case identity.RoleSectorChief:
		return "", GuardResult{
			Reason: fmt.Sprintf("unavailability of sector chief %s must be decided by an admin", owner.ID),
		}
	}
	return "", GuardResult{Reason: fmt.Sprintf("no approver rule for role %s", owner.Role)}
}

// CanSubmitFor evaluates whether actor may declare an unavailability for owner.
// Rules:
// - the owner themself
// - anyone allowed to approve it
func CanSubmitFor(actor identity.Actor, owner identity.User) GuardResult {
	if actor.ID == owner.ID {
		return GuardResult{Allowed: true}
	}
	if _, g := CanApprove(actor, owner); g.Allowed {
		return g
	}
	return GuardResult{Reason: fmt.Sprintf("%s cannot declare an unavailability for %s", actor.ID, owner.ID)}
}

// CanCancel evaluates whether actor may cancel a request.
// Rules:
// - the owner or an admin
func CanCancel(actor identity.Actor, u *Unavailability) GuardResult {
	if actor.IsAdmin() || actor.ID == u.UserID {
		return GuardResult{Allowed: true}
	}
	return GuardResult{Reason: fmt.Sprintf("only %s or an admin can cancel unavailability %s", u.UserID, u.ID)}
}
