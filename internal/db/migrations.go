package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_replacement_index_to_roster_assignments",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_audit_log_timestamp_index",
		Up:      migrationV3,
	},
	{
		Version: 4,
		Name:    "add_scope_to_audit_log",
		Up:      migrationV4,
	},
}

// MigrationLogger receives progress lines while migrations run.
var MigrationLogger = func(format string, args ...any) {}

func ensureVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// LatestVersion is the version the schema reaches after every migration.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// CurrentVersion returns the highest applied migration.
func CurrentVersion(db *sql.DB) (int, error) {
	if err := ensureVersionTable(db); err != nil {
		return 0, err
	}
	var v int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return v, nil
}

// RunMigrations applies every pending migration, each in its own transaction.
func RunMigrations(db *sql.DB) error {
	currentVersion, err := CurrentVersion(db)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		MigrationLogger("running migration %d: %s", migration.Version, migration.Name)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}
		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		MigrationLogger("migration %d completed", migration.Version)
	}

	return nil
}

// migrationV1 creates the tables as they were first released.
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(SchemaSQL)
	return err
}

// migrationV2 speeds up the unavailability impact scan on replaced slots.
func migrationV2(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_roster_assignments_replacement ON roster_assignments(replacement_id, date)`)
	return err
}

// migrationV3 speeds up log pruning.
func migrationV3(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp)`)
	return err
}

// migrationV4 tags audit entries with the site and sector they belong to.
// Databases created from the current schema already have the columns.
func migrationV4(tx *sql.Tx) error {
	for _, col := range []string{"site_id", "sector_id"} {
		var n int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('audit_log') WHERE name = ?`, col).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		if _, err := tx.Exec(`ALTER TABLE audit_log ADD COLUMN ` + col + ` TEXT`); err != nil {
			return err
		}
	}
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_log_scope ON audit_log(site_id, sector_id, timestamp)`)
	return err
}
