package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/core/roster"
	"github.com/example/garde/internal/core/rotation"
	"github.com/example/garde/internal/ports/secondary"
)

// RosterRepository implements secondary.RosterRepository with SQLite.
type RosterRepository struct {
	db *sql.DB
}

// NewRosterRepository creates a new SQLite roster repository.
func NewRosterRepository(db *sql.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

const rosterColumns = `id, scope_type, site_id, sector_id, service_id, period_start, period_end, status, generation_meta,
	requested_by, requested_at, approved_by, approved_at, published_at, rejected, rejection_reason,
	created_by, created_at, updated_at, archived_at, version`

// generationMetaJSON is the stored shape of roster.GenerationMeta.
type generationMetaJSON struct {
	Algorithm    string         `json:"algorithm"`
	LookbackDays int            `json:"lookback_days"`
	Candidates   []string       `json:"candidates"`
	Uncovered    []string       `json:"uncovered,omitempty"`
	Stats        rotation.Stats `json:"stats"`
}

func encodeMeta(m *roster.GenerationMeta) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	stored := generationMetaJSON{
		Algorithm:    m.Algorithm,
		LookbackDays: m.LookbackDays,
		Candidates:   m.Candidates,
		Stats:        m.Stats,
	}
	for _, d := range m.Uncovered {
		stored.Uncovered = append(stored.Uncovered, calendar.FormatDay(d))
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode generation metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeMeta(s sql.NullString) (*roster.GenerationMeta, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var stored generationMetaJSON
	if err := json.Unmarshal([]byte(s.String), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode generation metadata: %w", err)
	}
	m := &roster.GenerationMeta{
		Algorithm:    stored.Algorithm,
		LookbackDays: stored.LookbackDays,
		Candidates:   stored.Candidates,
		Stats:        stored.Stats,
	}
	for _, d := range stored.Uncovered {
		day, err := parseDay(d)
		if err != nil {
			return nil, err
		}
		m.Uncovered = append(m.Uncovered, day)
	}
	return m, nil
}

// Create persists a new roster with its assignments.
func (r *RosterRepository) Create(ctx context.Context, ros *roster.Roster) error {
	meta, err := encodeMeta(ros.Meta)
	if err != nil {
		return err
	}
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO rosters (`+rosterColumns+`) VALUES (`+placeholders(21)+`)`,
			ros.ID,
			string(ros.Scope.Type),
			ros.Scope.Site,
			ros.Scope.Sector,
			nullString(ros.Scope.Service),
			calendar.FormatDay(ros.Start),
			calendar.FormatDay(ros.End),
			string(ros.Status),
			meta,
			nullString(ros.Validation.RequestedBy),
			nullTime(ros.Validation.RequestedAt),
			nullString(ros.Validation.ApprovedBy),
			nullTime(ros.Validation.ApprovedAt),
			nullTime(ros.Validation.PublishedAt),
			ros.Validation.Rejected,
			nullString(ros.Validation.RejectionReason),
			ros.CreatedBy,
			formatTime(ros.CreatedAt),
			formatTime(ros.UpdatedAt),
			nullTime(ros.ArchivedAt),
			1,
		)
		if err != nil {
			return fmt.Errorf("failed to create roster: %w", err)
		}
		return insertAssignments(ctx, tx, ros)
	})
	if err != nil {
		return err
	}
	ros.Version = 1
	return nil
}

func insertAssignments(ctx context.Context, tx *sql.Tx, ros *roster.Roster) error {
	for _, a := range ros.Assignments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO roster_assignments (roster_id, date, user_id, status, replacement_id, start_time, end_time, comment, coverage) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ros.ID,
			calendar.FormatDay(a.Date),
			a.UserID,
			string(a.Status),
			nullString(a.Replacement),
			a.StartTime,
			a.EndTime,
			nullString(a.Comment),
			nullString(string(a.Coverage)),
		)
		if err != nil {
			return fmt.Errorf("failed to store assignment %s of roster %s: %w", calendar.FormatDay(a.Date), ros.ID, err)
		}
	}
	return nil
}

// GetByID retrieves a roster by its ID.
func (r *RosterRepository) GetByID(ctx context.Context, id string) (*roster.Roster, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+rosterColumns+` FROM rosters WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}
	rosters, err := scanRosters(rows)
	if err != nil {
		return nil, err
	}
	if len(rosters) == 0 {
		return nil, fault.New(fault.KindNotFound, "roster %s not found", id)
	}
	if err := r.loadAssignments(ctx, rosters); err != nil {
		return nil, err
	}
	return rosters[0], nil
}

// Update replaces the stored roster and its assignments.
func (r *RosterRepository) Update(ctx context.Context, ros *roster.Roster) error {
	meta, err := encodeMeta(ros.Meta)
	if err != nil {
		return err
	}
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE rosters SET period_start = ?, period_end = ?, status = ?, generation_meta = ?,
				requested_by = ?, requested_at = ?, approved_by = ?, approved_at = ?, published_at = ?,
				rejected = ?, rejection_reason = ?, updated_at = ?, archived_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			calendar.FormatDay(ros.Start),
			calendar.FormatDay(ros.End),
			string(ros.Status),
			meta,
			nullString(ros.Validation.RequestedBy),
			nullTime(ros.Validation.RequestedAt),
			nullString(ros.Validation.ApprovedBy),
			nullTime(ros.Validation.ApprovedAt),
			nullTime(ros.Validation.PublishedAt),
			ros.Validation.Rejected,
			nullString(ros.Validation.RejectionReason),
			formatTime(ros.UpdatedAt),
			nullTime(ros.ArchivedAt),
			ros.ID,
			ros.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update roster: %w", err)
		}
		if err := checkVersion(ctx, tx, "rosters", "roster", ros.ID, res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM roster_assignments WHERE roster_id = ?`, ros.ID); err != nil {
			return fmt.Errorf("failed to clear assignments: %w", err)
		}
		return insertAssignments(ctx, tx, ros)
	})
	if err != nil {
		return err
	}
	ros.Version++
	return nil
}

// Delete removes a roster and its assignments.
func (r *RosterRepository) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM roster_assignments WHERE roster_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete assignments: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM rosters WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete roster: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fault.New(fault.KindNotFound, "roster %s not found", id)
		}
		return nil
	})
}

// List retrieves rosters matching the given filters, ordered by period start then ID.
func (r *RosterRepository) List(ctx context.Context, filters secondary.RosterFilters) ([]*roster.Roster, error) {
	query := `SELECT ` + rosterColumns + ` FROM rosters WHERE 1=1`
	args := []any{}

	if filters.ScopeType != "" {
		query += " AND scope_type = ?"
		args = append(args, filters.ScopeType)
	}
	if filters.Site != "" {
		query += " AND site_id = ?"
		args = append(args, filters.Site)
	}
	if filters.Sector != "" {
		query += " AND sector_id = ?"
		args = append(args, filters.Sector)
	}
	if filters.Service != "" {
		query += " AND service_id = ?"
		args = append(args, filters.Service)
	}
	if len(filters.Statuses) > 0 {
		var clause string
		clause, args = inClause("status", filters.Statuses, args)
		query += clause
	}
	if filters.OverlapStart != nil {
		query += " AND period_end >= ?"
		args = append(args, calendar.FormatDay(*filters.OverlapStart))
	}
	if filters.OverlapEnd != nil {
		query += " AND period_start <= ?"
		args = append(args, calendar.FormatDay(*filters.OverlapEnd))
	}
	if filters.StartsOnOrAfter != nil {
		query += " AND period_start >= ?"
		args = append(args, calendar.FormatDay(*filters.StartsOnOrAfter))
	}
	if filters.UserID != "" {
		query += " AND id IN (SELECT roster_id FROM roster_assignments WHERE user_id = ? OR replacement_id = ?)"
		args = append(args, filters.UserID, filters.UserID)
	}

	query += " ORDER BY period_start, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rosters: %w", err)
	}
	rosters, err := scanRosters(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadAssignments(ctx, rosters); err != nil {
		return nil, err
	}
	return rosters, nil
}

// GetNextID returns the next available roster ID.
func (r *RosterRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "rosters", "ROSTER-", 3)
}

// scanRosters reads and closes rows.
func scanRosters(rows *sql.Rows) ([]*roster.Roster, error) {
	defer rows.Close()

	var out []*roster.Roster
	for rows.Next() {
		var (
			ros                     roster.Roster
			scopeType, status       string
			service                 sql.NullString
			start, end              string
			meta                    sql.NullString
			requestedBy, approvedBy sql.NullString
			requestedAt, approvedAt sql.NullString
			publishedAt, archivedAt sql.NullString
			rejectionReason         sql.NullString
			createdAt, updatedAt    string
		)
		err := rows.Scan(&ros.ID, &scopeType, &ros.Scope.Site, &ros.Scope.Sector, &service, &start, &end, &status, &meta,
			&requestedBy, &requestedAt, &approvedBy, &approvedAt, &publishedAt, &ros.Validation.Rejected, &rejectionReason,
			&ros.CreatedBy, &createdAt, &updatedAt, &archivedAt, &ros.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to scan roster: %w", err)
		}

		ros.Scope.Type = identity.ScopeType(scopeType)
		ros.Scope.Service = service.String
		ros.Status = roster.Status(status)
		ros.Validation.RequestedBy = requestedBy.String
		ros.Validation.ApprovedBy = approvedBy.String
		ros.Validation.RejectionReason = rejectionReason.String

		if ros.Start, err = parseDay(start); err != nil {
			return nil, err
		}
		if ros.End, err = parseDay(end); err != nil {
			return nil, err
		}
		if ros.Meta, err = decodeMeta(meta); err != nil {
			return nil, err
		}
		if ros.Validation.RequestedAt, err = parseNullTime(requestedAt); err != nil {
			return nil, err
		}
		if ros.Validation.ApprovedAt, err = parseNullTime(approvedAt); err != nil {
			return nil, err
		}
		if ros.Validation.PublishedAt, err = parseNullTime(publishedAt); err != nil {
			return nil, err
		}
		if ros.ArchivedAt, err = parseNullTime(archivedAt); err != nil {
			return nil, err
		}
		if ros.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if ros.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, &ros)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rosters: %w", err)
	}
	return out, nil
}

// loadAssignments fills the assignments of already-scanned rosters.
func (r *RosterRepository) loadAssignments(ctx context.Context, rosters []*roster.Roster) error {
	if len(rosters) == 0 {
		return nil
	}
	byID := make(map[string]*roster.Roster, len(rosters))
	ids := make([]string, 0, len(rosters))
	for _, ros := range rosters {
		byID[ros.ID] = ros
		ids = append(ids, ros.ID)
	}

	clause, args := inClause("roster_id", ids, nil)
	rows, err := r.db.QueryContext(ctx,
		`SELECT roster_id, date, user_id, status, replacement_id, start_time, end_time, comment, coverage
		FROM roster_assignments WHERE 1=1`+clause+` ORDER BY roster_id, date`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to load assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rosterID, date, status         string
			replacement, comment, coverage sql.NullString
			a                                roster.Assignment
		)
		if err := rows.Scan(&rosterID, &date, &a.UserID, &status, &replacement, &a.StartTime, &a.EndTime, &comment, &coverage); err != nil {
			return fmt.Errorf("failed to scan assignment: %w", err)
		}
		if a.Date, err = parseDay(date); err != nil {
			return err
		}
		a.Status = roster.AssignmentStatus(status)
		a.Replacement = replacement.String
		a.Comment = comment.String
		a.Coverage = calendar.CoverageType(coverage.String)
		if ros := byID[rosterID]; ros != nil {
			ros.Assignments = append(ros.Assignments, a)
		}
	}
	return rows.Err()
}

// Ensure RosterRepository implements the interface
var _ secondary.RosterRepository = (*RosterRepository)(nil)
