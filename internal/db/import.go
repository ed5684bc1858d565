package db

import (
	"database/sql"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DirectoryFile is the YAML layout accepted by ImportDirectory.
type DirectoryFile struct {
	Sites []struct {
		ID      string `yaml:"id"`
		Name    string `yaml:"name"`
		Sectors []struct {
			ID       string `yaml:"id"`
			Name     string `yaml:"name"`
			Chief    string `yaml:"chief"`
			Services []struct {
				ID           string `yaml:"id"`
				Name         string `yaml:"name"`
				Chief        string `yaml:"chief"`
				IncludeChief bool   `yaml:"include_chief"`
			} `yaml:"services"`
		} `yaml:"sectors"`
	} `yaml:"sites"`
	Users []struct {
		ID      string `yaml:"id"`
		Name    string `yaml:"name"`
		Role    string `yaml:"role"`
		Site    string `yaml:"site"`
		Sector  string `yaml:"sector"`
		Service string `yaml:"service"`
		Phone   string `yaml:"phone"`
		Email   string `yaml:"email"`
		Active  *bool  `yaml:"active"`
	} `yaml:"users"`
}

// ImportStats counts the rows written by ImportDirectory.
type ImportStats struct {
	Sites       int
	Sectors     int
	Services    int
	Users       int
	Deactivated int
}

// ImportOptions controls ImportDirectory.
type ImportOptions struct {
	// DeactivateMissing marks users absent from the file inactive.
	DeactivateMissing bool
	// DryRun rolls the transaction back after counting.
	DryRun bool
}

// ImportDirectory upserts the organization described by a YAML document in
// a single transaction. Users default to active when the file omits the flag.
func ImportDirectory(database *sql.DB, data []byte, opts ImportOptions) (ImportStats, error) {
	var file DirectoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return ImportStats{}, fmt.Errorf("failed to parse directory file: %w", err)
	}

	tx, err := database.Begin()
	if err != nil {
		return ImportStats{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stats ImportStats
	for _, site := range file.Sites {
		if _, err := tx.Exec(
			`INSERT INTO sites (id, name) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
			site.ID, site.Name,
		); err != nil {
			return ImportStats{}, fmt.Errorf("import site %s: %w", site.ID, err)
		}
		stats.Sites++

		for _, sector := range site.Sectors {
			if _, err := tx.Exec(
				`INSERT INTO sectors (id, site_id, name, chief_id) VALUES (?, ?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET site_id = excluded.site_id, name = excluded.name, chief_id = excluded.chief_id`,
				sector.ID, site.ID, sector.Name, nullable(sector.Chief),
			); err != nil {
				return ImportStats{}, fmt.Errorf("import sector %s: %w", sector.ID, err)
			}
			stats.Sectors++

			for _, svc := range sector.Services {
				if _, err := tx.Exec(
					`INSERT INTO services (id, sector_id, name, chief_id, include_chief_in_rotation) VALUES (?, ?, ?, ?, ?)
					 ON CONFLICT(id) DO UPDATE SET sector_id = excluded.sector_id, name = excluded.name,
					   chief_id = excluded.chief_id, include_chief_in_rotation = excluded.include_chief_in_rotation`,
					svc.ID, sector.ID, svc.Name, nullable(svc.Chief), svc.IncludeChief,
				); err != nil {
					return ImportStats{}, fmt.Errorf("import service %s: %w", svc.ID, err)
				}
				stats.Services++
			}
		}
	}

	seen := make([]any, 0, len(file.Users))
	for _, u := range file.Users {
		active := u.Active == nil || *u.Active
		if _, err := tx.Exec(
			`INSERT INTO users (id, name, role, site_id, sector_id, service_id, phone, email, active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, role = excluded.role,
			   site_id = excluded.site_id, sector_id = excluded.sector_id, service_id = excluded.service_id,
			   phone = excluded.phone, email = excluded.email, active = excluded.active`,
			u.ID, u.Name, u.Role, nullable(u.Site), nullable(u.Sector), nullable(u.Service), nullable(u.Phone), nullable(u.Email), active,
		); err != nil {
			return ImportStats{}, fmt.Errorf("import user %s: %w", u.ID, err)
		}
		seen = append(seen, u.ID)
		stats.Users++
	}

	if opts.DeactivateMissing && len(seen) > 0 {
		query := "UPDATE users SET active = 0 WHERE active = 1 AND id NOT IN (?" + strings.Repeat(", ?", len(seen)-1) + ")"
		res, err := tx.Exec(query, seen...)
		if err != nil {
			return ImportStats{}, fmt.Errorf("deactivate missing users: %w", err)
		}
		n, _ := res.RowsAffected()
		stats.Deactivated = int(n)
	}

	if opts.DryRun {
		return stats, nil
	}
	if err := tx.Commit(); err != nil {
		return ImportStats{}, fmt.Errorf("failed to commit import: %w", err)
	}
	return stats, nil
}

