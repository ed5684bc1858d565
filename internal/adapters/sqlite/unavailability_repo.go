package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/core/unavailability"
	"github.com/example/garde/internal/ports/secondary"
)

// UnavailabilityRepository implements secondary.UnavailabilityRepository with SQLite.
type UnavailabilityRepository struct {
	db *sql.DB
}

// NewUnavailabilityRepository creates a new SQLite unavailability repository.
func NewUnavailabilityRepository(db *sql.DB) *UnavailabilityRepository {
	return &UnavailabilityRepository{db: db}
}

const unavailabilityColumns = `id, user_id, start_date, end_date, reason, description, status, priority,
	approver_id, decided_at, approval_comment, approval_level, refusal_reason,
	recalc_needed, replacement_found, scanned_at, cancelled_by, cancelled_at, cancellation_reason,
	created_by, created_at, updated_at, version`

// Create persists a new unavailability.
func (r *UnavailabilityRepository) Create(ctx context.Context, u *unavailability.Unavailability) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO unavailabilities (`+unavailabilityColumns+`) VALUES (`+placeholders(23)+`)`,
			u.ID,
			u.UserID,
			calendar.FormatDay(u.Start),
			calendar.FormatDay(u.End),
			string(u.Reason),
			nullString(u.Description),
			string(u.Status),
			string(u.Priority),
			nullString(u.Approval.ApproverID),
			nullTime(u.Approval.DecidedAt),
			nullString(u.Approval.Comment),
			nullString(string(u.Approval.Level)),
			nullString(u.Approval.RefusalReason),
			u.Impact.RecalcNeeded,
			u.Impact.ReplacementFound,
			nullTime(u.Impact.ScannedAt),
			nullString(u.Cancellation.By),
			nullTime(u.Cancellation.At),
			nullString(u.Cancellation.Reason),
			u.CreatedBy,
			formatTime(u.CreatedAt),
			formatTime(u.UpdatedAt),
			1,
		)
		if err != nil {
			return fmt.Errorf("failed to create unavailability: %w", err)
		}
		return insertImpacts(ctx, tx, u)
	})
	if err != nil {
		return err
	}
	u.Version = 1
	return nil
}

func insertImpacts(ctx context.Context, tx *sql.Tx, u *unavailability.Unavailability) error {
	for _, affected := range u.Impact.Affected {
		for _, d := range affected.Dates {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO unavailability_impacts (unavailability_id, roster_id, date) VALUES (?, ?, ?)`,
				u.ID, affected.RosterID, calendar.FormatDay(d),
			)
			if err != nil {
				return fmt.Errorf("failed to store impact on roster %s: %w", affected.RosterID, err)
			}
		}
	}
	return nil
}

// GetByID retrieves an unavailability by its ID.
func (r *UnavailabilityRepository) GetByID(ctx context.Context, id string) (*unavailability.Unavailability, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+unavailabilityColumns+` FROM unavailabilities WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get unavailability: %w", err)
	}
	items, err := scanUnavailabilities(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fault.New(fault.KindNotFound, "unavailability %s not found", id)
	}
	if err := r.loadImpacts(ctx, items); err != nil {
		return nil, err
	}
	return items[0], nil
}

// Update replaces the stored unavailability and its impact rows.
func (r *UnavailabilityRepository) Update(ctx context.Context, u *unavailability.Unavailability) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE unavailabilities SET status = ?, approver_id = ?, decided_at = ?, approval_comment = ?,
				approval_level = ?, refusal_reason = ?, recalc_needed = ?, replacement_found = ?, scanned_at = ?,
				cancelled_by = ?, cancelled_at = ?, cancellation_reason = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			string(u.Status),
			nullString(u.Approval.ApproverID),
			nullTime(u.Approval.DecidedAt),
			nullString(u.Approval.Comment),
			nullString(string(u.Approval.Level)),
			nullString(u.Approval.RefusalReason),
			u.Impact.RecalcNeeded,
			u.Impact.ReplacementFound,
			nullTime(u.Impact.ScannedAt),
			nullString(u.Cancellation.By),
			nullTime(u.Cancellation.At),
			nullString(u.Cancellation.Reason),
			formatTime(u.UpdatedAt),
			u.ID,
			u.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update unavailability: %w", err)
		}
		if err := checkVersion(ctx, tx, "unavailabilities", "unavailability", u.ID, res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM unavailability_impacts WHERE unavailability_id = ?`, u.ID); err != nil {
			return fmt.Errorf("failed to clear impacts: %w", err)
		}
		return insertImpacts(ctx, tx, u)
	})
	if err != nil {
		return err
	}
	u.Version++
	return nil
}

// List retrieves unavailabilities matching the given filters, ordered by start.
func (r *UnavailabilityRepository) List(ctx context.Context, filters secondary.UnavailabilityFilters) ([]*unavailability.Unavailability, error) {
	query := `SELECT ` + unavailabilityColumns + ` FROM unavailabilities WHERE 1=1`
	args := []any{}

	if filters.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filters.UserID)
	}
	if len(filters.UserIDs) > 0 {
		var clause string
		clause, args = inClause("user_id", filters.UserIDs, args)
		query += clause
	}
	if len(filters.Statuses) > 0 {
		var clause string
		clause, args = inClause("status", filters.Statuses, args)
		query += clause
	}
	if filters.OverlapStart != nil {
		query += " AND end_date >= ?"
		args = append(args, calendar.FormatDay(*filters.OverlapStart))
	}
	if filters.OverlapEnd != nil {
		query += " AND start_date <= ?"
		args = append(args, calendar.FormatDay(*filters.OverlapEnd))
	}

	query += " ORDER BY start_date, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unavailabilities: %w", err)
	}
	items, err := scanUnavailabilities(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadImpacts(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetNextID returns the next available unavailability ID.
func (r *UnavailabilityRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "unavailabilities", "UNAV-", 3)
}

func scanUnavailabilities(rows *sql.Rows) ([]*unavailability.Unavailability, error) {
	defer rows.Close()

	var out []*unavailability.Unavailability
	for rows.Next() {
		var (
			u                                       unavailability.Unavailability
			start, end, reason, status, priority    string
			description, approverID, comment, level sql.NullString
			refusal, cancelledBy, cancelReason      sql.NullString
			decidedAt, scannedAt, cancelledAt       sql.NullString
			createdAt, updatedAt                    string
		)
		err := rows.Scan(&u.ID, &u.UserID, &start, &end, &reason, &description, &status, &priority,
			&approverID, &decidedAt, &comment, &level, &refusal,
			&u.Impact.RecalcNeeded, &u.Impact.ReplacementFound, &scannedAt, &cancelledBy, &cancelledAt, &cancelReason,
			&u.CreatedBy, &createdAt, &updatedAt, &u.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unavailability: %w", err)
		}

		u.Reason = unavailability.Reason(reason)
		u.Description = description.String
		u.Status = unavailability.Status(status)
		u.Priority = unavailability.Priority(priority)
		u.Approval.ApproverID = approverID.String
		u.Approval.Comment = comment.String
		u.Approval.Level = unavailability.ApprovalLevel(level.String)
		u.Approval.RefusalReason = refusal.String
		u.Cancellation.By = cancelledBy.String
		u.Cancellation.Reason = cancelReason.String

		if u.Start, err = parseDay(start); err != nil {
			return nil, err
		}
		if u.End, err = parseDay(end); err != nil {
			return nil, err
		}
		if u.Approval.DecidedAt, err = parseNullTime(decidedAt); err != nil {
			return nil, err
		}
		if u.Impact.ScannedAt, err = parseNullTime(scannedAt); err != nil {
			return nil, err
		}
		if u.Cancellation.At, err = parseNullTime(cancelledAt); err != nil {
			return nil, err
		}
		if u.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read unavailabilities: %w", err)
	}
	return out, nil
}

// loadImpacts fills Impact.Affected, grouping dates by roster in roster ID order.
func (r *UnavailabilityRepository) loadImpacts(ctx context.Context, items []*unavailability.Unavailability) error {
	if len(items) == 0 {
		return nil
	}
	byID := make(map[string]*unavailability.Unavailability, len(items))
	ids := make([]string, 0, len(items))
	for _, u := range items {
		byID[u.ID] = u
		ids = append(ids, u.ID)
	}

	clause, args := inClause("unavailability_id", ids, nil)
	rows, err := r.db.QueryContext(ctx,
		`SELECT unavailability_id, roster_id, date FROM unavailability_impacts WHERE 1=1`+clause+
			` ORDER BY unavailability_id, roster_id, date`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to load impacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var unavID, rosterID, date string
		if err := rows.Scan(&unavID, &rosterID, &date); err != nil {
			return fmt.Errorf("failed to scan impact: %w", err)
		}
		var d time.Time
		if d, err = parseDay(date); err != nil {
			return err
		}
		u := byID[unavID]
		if u == nil {
			continue
		}
		n := len(u.Impact.Affected)
		if n == 0 || u.Impact.Affected[n-1].RosterID != rosterID {
			u.Impact.Affected = append(u.Impact.Affected, unavailability.AffectedRoster{RosterID: rosterID})
			n++
		}
		u.Impact.Affected[n-1].Dates = append(u.Impact.Affected[n-1].Dates, d)
	}
	return rows.Err()
}

// Ensure UnavailabilityRepository implements the interface
var _ secondary.UnavailabilityRepository = (*UnavailabilityRepository)(nil)
