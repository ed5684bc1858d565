package roster

import (
	"testing"

	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
)

func TestCanManage(t *testing.T) {
	service := identity.Scope{Type: identity.ScopeService, Site: "SITE-001", Sector: "SEC-001", Service: "SVC-001"}

	tests := []struct {
		name        string
		actor       identity.Actor
		scope       identity.Scope
		wantAllowed bool
	}{
		{"admin", identity.Actor{ID: "USR-900", Role: identity.RoleAdmin}, sectorScope, true},
		{"system", identity.Actor{ID: "system", Role: identity.RoleSystem}, sectorScope, true},
		{"sector chief of sector", identity.Actor{ID: "USR-200", Role: identity.RoleSectorChief, Site: "SITE-001", Sector: "SEC-001"}, sectorScope, true},
		{"sector chief of service in sector", identity.Actor{ID: "USR-200", Role: identity.RoleSectorChief, Site: "SITE-001", Sector: "SEC-001"}, service, true},
		{"sector chief elsewhere", identity.Actor{ID: "USR-201", Role: identity.RoleSectorChief, Site: "SITE-001", Sector: "SEC-002"}, sectorScope, false},
		{"service chief of service", identity.Actor{ID: "USR-300", Role: identity.RoleServiceChief, Site: "SITE-001", Sector: "SEC-001", Service: "SVC-001"}, service, true},
		{"service chief on sector roster", identity.Actor{ID: "USR-300", Role: identity.RoleServiceChief, Site: "SITE-001", Sector: "SEC-001", Service: "SVC-001"}, sectorScope, false},
		{"engineer", identity.Actor{ID: "USR-001", Role: identity.RoleEngineer, Site: "SITE-001", Sector: "SEC-001"}, sectorScope, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanManage(tt.actor, tt.scope)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (reason %q)", result.Allowed, tt.wantAllowed, result.Reason)
			}
			if !tt.wantAllowed && !fault.Is(result.Error(), fault.KindForbidden) {
				t.Errorf("Error() = %v, want Forbidden", result.Error())
			}
		})
	}
}

func TestCanValidate(t *testing.T) {
	tests := []struct {
		name        string
		actor       identity.Actor
		wantAllowed bool
	}{
		{"admin", identity.Actor{ID: "USR-900", Role: identity.RoleAdmin}, true},
		{"sector chief of sector", identity.Actor{ID: "USR-200", Role: identity.RoleSectorChief, Site: "SITE-001", Sector: "SEC-001"}, true},
		{"sector chief of another site", identity.Actor{ID: "USR-202", Role: identity.RoleSectorChief, Site: "SITE-002", Sector: "SEC-001"}, false},
		{"service chief", identity.Actor{ID: "USR-300", Role: identity.RoleServiceChief, Site: "SITE-001", Sector: "SEC-001", Service: "SVC-001"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanValidate(tt.actor, sectorScope)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if tt.wantAllowed && result.Error() != nil {
				t.Errorf("Error() = %v, want nil", result.Error())
			}
		})
	}
}
