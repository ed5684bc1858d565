// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use setupTestDB()
// and the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// a second pooled connection would open a different, empty database
	testDB.SetMaxOpenConns(1)

	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedDirectory loads the demo organization.
func seedDirectory(t *testing.T, conn *sql.DB) {
	t.Helper()
	if err := db.SeedFixtures(conn); err != nil {
		t.Fatalf("failed to seed directory: %v", err)
	}
}

// breakCommit makes the next transaction writing to table fail at COMMIT:
// each insert leaves a dangling deferred foreign key behind.
func breakCommit(t *testing.T, conn *sql.DB, table string) {
	t.Helper()
	for _, stmt := range []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE commit_guard (ref TEXT REFERENCES rosters(id) DEFERRABLE INITIALLY DEFERRED)`,
		`CREATE TRIGGER commit_guard_trigger AFTER INSERT ON ` + table + ` BEGIN INSERT INTO commit_guard (ref) VALUES ('missing'); END`,
	} {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("breakCommit: %v", err)
		}
	}
}

func restoreCommit(t *testing.T, conn *sql.DB) {
	t.Helper()
	for _, stmt := range []string{`DROP TRIGGER commit_guard_trigger`, `DROP TABLE commit_guard`} {
		if _, err := conn.Exec(stmt); err != nil {
			t.Fatalf("restoreCommit: %v", err)
		}
	}
}

func day(s string) time.Time {
	d, err := calendar.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

var testNow = time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)
