package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/ports/secondary"
)

// DirectoryRepository implements secondary.Directory over the sites,
// sectors, services and users tables.
type DirectoryRepository struct {
	db *sql.DB
}

// NewDirectoryRepository creates a new SQLite directory.
func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

const userColumns = `id, name, role, site_id, sector_id, service_id, phone, email, active`

func scanUser(scan func(dest ...any) error) (identity.User, error) {
	var (
		u                                   identity.User
		role                                string
		site, sector, service, phone, email sql.NullString
	)
	if err := scan(&u.ID, &u.Name, &role, &site, &sector, &service, &phone, &email, &u.Active); err != nil {
		return u, err
	}
	u.Role = identity.Role(role)
	u.Site = site.String
	u.Sector = sector.String
	u.Service = service.String
	u.Phone = phone.String
	u.Email = email.String
	return u, nil
}

// GetUser retrieves a user by ID.
func (r *DirectoryRepository) GetUser(ctx context.Context, id string) (*identity.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.KindNotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ActiveUsersByRoleAndScope lists active users with a role, narrowed by any
// non-empty scope field, ordered by ID.
func (r *DirectoryRepository) ActiveUsersByRoleAndScope(ctx context.Context, role identity.Role, site, sector, service string) ([]identity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active = 1 AND role = ?`
	args := []any{string(role)}

	if site != "" {
		query += " AND site_id = ?"
		args = append(args, site)
	}
	if sector != "" {
		query += " AND sector_id = ?"
		args = append(args, sector)
	}
	if service != "" {
		query += " AND service_id = ?"
		args = append(args, service)
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []identity.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ServiceConfig returns rotation settings for a service.
func (r *DirectoryRepository) ServiceConfig(ctx context.Context, serviceID string) (*secondary.ServiceConfigRecord, error) {
	var (
		cfg   secondary.ServiceConfigRecord
		chief sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, sector_id, chief_id, include_chief_in_rotation FROM services WHERE id = ?`,
		serviceID,
	).Scan(&cfg.ServiceID, &cfg.SectorID, &chief, &cfg.IncludeChiefInRotation)
	if err == sql.ErrNoRows {
		return nil, fault.New(fault.KindNotFound, "service %s not found", serviceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	cfg.ChiefID = chief.String
	return &cfg, nil
}

// SectorChief returns the designated chief of a sector, or "" if none.
func (r *DirectoryRepository) SectorChief(ctx context.Context, sectorID string) (string, error) {
	var chief sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT chief_id FROM sectors WHERE id = ?`, sectorID).Scan(&chief)
	if err == sql.ErrNoRows {
		return "", fault.New(fault.KindNotFound, "sector %s not found", sectorID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get sector: %w", err)
	}
	return chief.String, nil
}

// Ensure DirectoryRepository implements the interface
var _ secondary.Directory = (*DirectoryRepository)(nil)
