package db

import (
	"database/sql"
	"fmt"
)

// SeedFixtures populates the directory tables with a demo organization:
// one site, two sectors, three services and their staff.
func SeedFixtures(database *sql.DB) error {
	sites := []struct{ id, name string }{
		{"SITE-A", "Usine Nord"},
	}
	for _, s := range sites {
		if _, err := database.Exec("INSERT INTO sites (id, name) VALUES (?, ?)", s.id, s.name); err != nil {
			return fmt.Errorf("seed sites: %w", err)
		}
	}

	sectors := []struct{ id, siteID, name, chief string }{
		{"SEC-1", "SITE-A", "Maintenance", "USR-CS1"},
		{"SEC-2", "SITE-A", "Production", "USR-CS2"},
	}
	for _, s := range sectors {
		if _, err := database.Exec(
			"INSERT INTO sectors (id, site_id, name, chief_id) VALUES (?, ?, ?, ?)",
			s.id, s.siteID, s.name, s.chief,
		); err != nil {
			return fmt.Errorf("seed sectors: %w", err)
		}
	}

	services := []struct {
		id, sectorID, name, chief string
		includeChief              bool
	}{
		{"SRV-1", "SEC-1", "Electricite", "USR-CH1", false},
		{"SRV-2", "SEC-1", "Mecanique", "USR-CH2", true},
		{"SRV-3", "SEC-2", "Conditionnement", "USR-CH3", false},
	}
	for _, s := range services {
		if _, err := database.Exec(
			"INSERT INTO services (id, sector_id, name, chief_id, include_chief_in_rotation) VALUES (?, ?, ?, ?, ?)",
			s.id, s.sectorID, s.name, s.chief, s.includeChief,
		); err != nil {
			return fmt.Errorf("seed services: %w", err)
		}
	}

	users := []struct {
		id, name, role, site, sector, service, phone, email string
		active                                            bool
	}{
		{"ADM-001", "Admin Garde", "admin", "", "", "", "", "admin@example.com", true},
		{"USR-CS1", "Claire Martin", "sector_chief", "SITE-A", "SEC-1", "", "+33600000001", "claire.martin@example.com", true},
		{"USR-CS2", "Hugo Bernard", "sector_chief", "SITE-A", "SEC-2", "", "+33600000002", "hugo.bernard@example.com", true},
		{"USR-CH1", "Nadia Petit", "service_chief", "SITE-A", "SEC-1", "SRV-1", "+33600000011", "nadia.petit@example.com", true},
		{"USR-CH2", "Louis Robert", "service_chief", "SITE-A", "SEC-1", "SRV-2", "+33600000012", "louis.robert@example.com", true},
		{"USR-CH3", "Emma Durand", "service_chief", "SITE-A", "SEC-2", "SRV-3", "+33600000013", "emma.durand@example.com", true},
		{"ENG-001", "Paul Moreau", "engineer", "SITE-A", "SEC-1", "", "+33600000021", "paul.moreau@example.com", true},
		{"ENG-002", "Lea Simon", "engineer", "SITE-A", "SEC-1", "", "+33600000022", "lea.simon@example.com", true},
		{"ENG-003", "Jules Laurent", "engineer", "SITE-A", "SEC-2", "", "+33600000023", "jules.laurent@example.com", true},
		{"USR-001", "Alice Lefebvre", "collaborator", "SITE-A", "SEC-1", "SRV-1", "+33600000101", "alice.lefebvre@example.com", true},
		{"USR-002", "Bruno Michel", "collaborator", "SITE-A", "SEC-1", "SRV-1", "+33600000102", "bruno.michel@example.com", true},
		{"USR-003", "Chloe Garcia", "collaborator", "SITE-A", "SEC-1", "SRV-1", "+33600000103", "chloe.garcia@example.com", true},
		{"USR-004", "David Roux", "collaborator", "SITE-A", "SEC-1", "SRV-2", "+33600000104", "david.roux@example.com", true},
		{"USR-005", "Eva Fournier", "collaborator", "SITE-A", "SEC-1", "SRV-2", "+33600000105", "eva.fournier@example.com", true},
		{"USR-006", "Felix Girard", "collaborator", "SITE-A", "SEC-2", "SRV-3", "+33600000106", "felix.girard@example.com", true},
		{"USR-007", "Gaelle Andre", "collaborator", "SITE-A", "SEC-2", "SRV-3", "+33600000107", "gaelle.andre@example.com", true},
		{"USR-008", "Henri Mercier", "collaborator", "SITE-A", "SEC-1", "SRV-1", "", "", false},
	}
	for _, u := range users {
		if _, err := database.Exec(
			"INSERT INTO users (id, name, role, site_id, sector_id, service_id, phone, email, active) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			u.id, u.name, u.role, nullable(u.site), nullable(u.sector), nullable(u.service), nullable(u.phone), nullable(u.email), u.active,
		); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
	}

	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
