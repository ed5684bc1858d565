package roster

import (
	"fmt"

	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	Kind    fault.Kind
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	kind := r.Kind
	if kind == "" {
		kind = fault.KindForbidden
	}
	return fault.New(kind, "%s", r.Reason)
}

func allowed() GuardResult { return GuardResult{Allowed: true} }

func forbidden(format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Kind: fault.KindForbidden, Reason: fmt.Sprintf(format, args...)}
}

// CanManage evaluates whether an actor can create, edit, generate or submit a
// roster for the scope.
// Rules:
// - admin always
// - sector_chief of the same site and sector
// - service_chief of the same service (service rosters only)
func CanManage(actor identity.Actor, scope identity.Scope) GuardResult {
	if actor.IsAdmin() {
		return allowed()
	}
	switch actor.Role {
	case identity.RoleSectorChief:
		if actor.Site == scope.Site && actor.Sector == scope.Sector {
			return allowed()
		}
		return forbidden("sector chief %s does not manage sector %s", actor.ID, scope.Sector)
	case identity.RoleServiceChief:
		if scope.Type == identity.ScopeService && actor.Service == scope.Service && actor.Sector == scope.Sector {
			return allowed()
		}
		return forbidden("service chief %s does not manage this roster scope", actor.ID)
	}
	return forbidden("role %s cannot manage rosters", actor.Role)
}

// CanValidate evaluates whether an actor can approve, reject or publish a
// roster for the scope.
// Rules:
// - admin always
// - sector_chief of the same site and sector
func CanValidate(actor identity.Actor, scope identity.Scope) GuardResult {
	if actor.IsAdmin() {
		return allowed()
	}
	if actor.Role == identity.RoleSectorChief && actor.Site == scope.Site && actor.Sector == scope.Sector {
		return allowed()
	}
	return forbidden("%s %s cannot validate rosters of sector %s", actor.Role, actor.ID, scope.Sector)
}
