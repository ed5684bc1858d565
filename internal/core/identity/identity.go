// Package identity holds the authenticated actor and organizational scope types
// shared by the functional core.
package identity

// Role is an organizational role.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleSectorChief  Role = "sector_chief"
	RoleServiceChief Role = "service_chief"
	RoleEngineer     Role = "engineer"
	RoleCollaborator Role = "collaborator"
	RoleSystem       Role = "system" // scheduler / watcher acting without a human
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSectorChief, RoleServiceChief, RoleEngineer, RoleCollaborator, RoleSystem:
		return true
	}
	return false
}

// Actor is an already-authenticated caller.
type Actor struct {
	ID      string
	Role    Role
	Site    string
	Sector  string
	Service string
}

// IsAdmin reports whether the actor bypasses scope checks.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// ScopeType discriminates service rosters from sector rosters.
type ScopeType string

const (
	ScopeService ScopeType = "service"
	ScopeSector  ScopeType = "sector"
)

// Scope is the (site, sector, optional service) triple a roster or case is bound to.
type Scope struct {
	Type    ScopeType
	Site    string
	Sector  string
	Service string // empty unless Type == ScopeService
}

// Valid reports whether the scope is well formed.
// Service is present iff the scope is service-typed.
func (s Scope) Valid() bool {
	if s.Site == "" || s.Sector == "" {
		return false
	}
	switch s.Type {
	case ScopeService:
		return s.Service != ""
	case ScopeSector:
		return s.Service == ""
	}
	return false
}

// SameSector reports whether two scopes share site and sector.
func (s Scope) SameSector(o Scope) bool {
	return s.Site == o.Site && s.Sector == o.Sector
}

// Equal reports full scope equality (type, site, sector, service).
func (s Scope) Equal(o Scope) bool {
	return s == o
}

// User is the read-only view of a person exposed by the org directory.
type User struct {
	ID      string
	Name    string
	Role    Role
	Site    string
	Sector  string
	Service string
	Phone   string
	Email   string
	Active  bool
}
