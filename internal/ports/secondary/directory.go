package secondary

import (
	"context"

	"github.com/example/garde/internal/core/identity"
)

// Directory is the read-only view of the organization (sites, sectors,
// services, users) owned by another system.
type Directory interface {
	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*identity.User, error)

	// ActiveUsersByRoleAndScope lists active users with a role, narrowed by
	// any non-empty scope field. Results are ordered by user ID.
	ActiveUsersByRoleAndScope(ctx context.Context, role identity.Role, site, sector, service string) ([]identity.User, error)

	// ServiceConfig returns rotation settings for a service.
	ServiceConfig(ctx context.Context, serviceID string) (*ServiceConfigRecord, error)

	// SectorChief returns the designated chief of a sector, or "" if none.
	SectorChief(ctx context.Context, sectorID string) (string, error)
}

// ServiceConfigRecord is the rotation configuration of a service.
type ServiceConfigRecord struct {
	ServiceID              string
	SectorID               string
	ChiefID                string
	IncludeChiefInRotation bool
}
