package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh garde installs.
// This schema reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(): repository code referencing a column that
// doesn't exist here fails immediately with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//
// Days are stored as TEXT "YYYY-MM-DD", instants as RFC3339 TEXT. Aggregate
// tables carry a version column for optimistic locking.
const SchemaSQL = `
-- Organization directory (read-only for the engine, filled by seed or sync)
CREATE TABLE IF NOT EXISTS sites (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sectors (
	id TEXT PRIMARY KEY,
	site_id TEXT NOT NULL,
	name TEXT NOT NULL,
	chief_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (site_id) REFERENCES sites(id)
);

CREATE TABLE IF NOT EXISTS services (
	id TEXT PRIMARY KEY,
	sector_id TEXT NOT NULL,
	name TEXT NOT NULL,
	chief_id TEXT,
	include_chief_in_rotation INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (sector_id) REFERENCES sectors(id)
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	role TEXT NOT NULL CHECK(role IN ('admin', 'sector_chief', 'service_chief', 'engineer', 'collaborator')),
	site_id TEXT,
	sector_id TEXT,
	service_id TEXT,
	phone TEXT,
	email TEXT,
	active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_users_scope ON users(role, site_id, sector_id, service_id);

-- Rosters (on-call schedules for one scope and period)
CREATE TABLE IF NOT EXISTS rosters (
	id TEXT PRIMARY KEY,
	scope_type TEXT NOT NULL CHECK(scope_type IN ('service', 'sector')),
	site_id TEXT NOT NULL,
	sector_id TEXT NOT NULL,
	service_id TEXT,
	period_start TEXT NOT NULL,
	period_end TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('draft', 'pending_validation', 'validated', 'published', 'archived')) DEFAULT 'draft',
	generation_meta TEXT,
	requested_by TEXT,
	requested_at TEXT,
	approved_by TEXT,
	approved_at TEXT,
	published_at TEXT,
	rejected INTEGER NOT NULL DEFAULT 0,
	rejection_reason TEXT,
	created_by TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	archived_at TEXT,
	version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_rosters_scope ON rosters(site_id, sector_id, service_id, status);

CREATE TABLE IF NOT EXISTS roster_assignments (
	roster_id TEXT NOT NULL,
	date TEXT NOT NULL,
	user_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('planned', 'confirmed', 'absent', 'replaced')) DEFAULT 'planned',
	replacement_id TEXT,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	comment TEXT,
	coverage TEXT CHECK(coverage IS NULL OR coverage IN ('weekend', 'holiday')),
	PRIMARY KEY (roster_id, date),
	FOREIGN KEY (roster_id) REFERENCES rosters(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_roster_assignments_user ON roster_assignments(user_id, date);
CREATE INDEX IF NOT EXISTS idx_roster_assignments_replacement ON roster_assignments(replacement_id, date);

-- Unavailabilities (declared absences and their approval)
CREATE TABLE IF NOT EXISTS unavailabilities (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	reason TEXT NOT NULL CHECK(reason IN ('conge', 'maladie', 'formation', 'mission', 'personnel', 'autre')),
	description TEXT,
	status TEXT NOT NULL CHECK(status IN ('pending', 'approved', 'refused', 'cancelled')) DEFAULT 'pending',
	priority TEXT NOT NULL CHECK(priority IN ('normal', 'urgent', 'critical')) DEFAULT 'normal',
	approver_id TEXT,
	decided_at TEXT,
	approval_comment TEXT,
	approval_level TEXT CHECK(approval_level IN ('sector_chief', 'service_chief', 'automatic')),
	refusal_reason TEXT,
	recalc_needed INTEGER NOT NULL DEFAULT 0,
	replacement_found INTEGER NOT NULL DEFAULT 0,
	scanned_at TEXT,
	cancelled_by TEXT,
	cancelled_at TEXT,
	cancellation_reason TEXT,
	created_by TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_unavailabilities_user ON unavailabilities(user_id, status, start_date);

CREATE TABLE IF NOT EXISTS unavailability_impacts (
	unavailability_id TEXT NOT NULL,
	roster_id TEXT NOT NULL,
	date TEXT NOT NULL,
	PRIMARY KEY (unavailability_id, roster_id, date),
	FOREIGN KEY (unavailability_id) REFERENCES unavailabilities(id) ON DELETE CASCADE
);

-- Escalations (incident escalation cases)
CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	incident_type TEXT,
	priority TEXT NOT NULL DEFAULT 'normal',
	incident_time TEXT NOT NULL,
	site_id TEXT NOT NULL,
	sector_id TEXT NOT NULL,
	service_id TEXT,
	declarant_name TEXT,
	declarant_contact TEXT,
	declarant_user_id TEXT,
	status TEXT NOT NULL CHECK(status IN ('in_progress', 'resolved', 'failed', 'cancelled', 'forwarded')) DEFAULT 'in_progress',
	timeout_level1 INTEGER NOT NULL,
	timeout_level2 INTEGER NOT NULL,
	timeout_level3 INTEGER NOT NULL,
	max_attempts_per_level INTEGER NOT NULL,
	min_interval_minutes INTEGER NOT NULL,
	resolver_id TEXT,
	resolved_at TEXT,
	resolution_minutes INTEGER,
	resolution_method TEXT CHECK(resolution_method IN ('on_site', 'remote', 'phone', 'other')),
	resolution_comment TEXT,
	satisfaction INTEGER,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_escalations_status ON escalations(status, site_id, sector_id);

CREATE TABLE IF NOT EXISTS escalation_levels (
	escalation_id TEXT NOT NULL,
	level INTEGER NOT NULL CHECK(level BETWEEN 1 AND 3),
	responder_id TEXT NOT NULL,
	contacted_at TEXT NOT NULL,
	responded INTEGER NOT NULL DEFAULT 0,
	responded_at TEXT,
	response_time_minutes INTEGER,
	response_type TEXT CHECK(response_type IN ('accepted', 'declined', 'forwarded', 'timeout')),
	forwarded_to TEXT,
	comment TEXT,
	PRIMARY KEY (escalation_id, level),
	FOREIGN KEY (escalation_id) REFERENCES escalations(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS contact_attempts (
	escalation_id TEXT NOT NULL,
	level INTEGER NOT NULL,
	attempt INTEGER NOT NULL,
	channel TEXT NOT NULL CHECK(channel IN ('sms', 'call', 'email', 'push')),
	sent_at TEXT NOT NULL,
	delivery_status TEXT NOT NULL CHECK(delivery_status IN ('pending', 'sent', 'delivered', 'failed')) DEFAULT 'pending',
	PRIMARY KEY (escalation_id, level, attempt),
	FOREIGN KEY (escalation_id) REFERENCES escalations(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS escalation_history (
	escalation_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	at TEXT NOT NULL,
	actor_id TEXT,
	level INTEGER NOT NULL DEFAULT 0,
	action TEXT NOT NULL,
	detail TEXT,
	PRIMARY KEY (escalation_id, seq),
	FOREIGN KEY (escalation_id) REFERENCES escalations(id) ON DELETE CASCADE
);

-- Audit log (create/update/delete trail per entity)
CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	actor_id TEXT,
	entity_type TEXT NOT NULL CHECK(entity_type IN ('roster', 'unavailability', 'escalation')),
	entity_id TEXT NOT NULL,
	action TEXT NOT NULL CHECK(action IN ('create', 'update', 'delete')),
	field_name TEXT,
	old_value TEXT,
	new_value TEXT,
	site_id TEXT,
	sector_id TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_scope ON audit_log(site_id, sector_id, timestamp);
`

// InitSchema creates the schema on a fresh database, or runs pending
// migrations on an existing one.
func InitSchema(db *sql.DB) error {
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(db)
	}

	// Fresh install - create the current schema directly and mark every
	// migration as applied.
	if _, err := db.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := ensureVersionTable(db); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return err
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
