// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/fault"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDay(s string) (time.Time, error) {
	d, err := calendar.ParseDay(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored day %q: %w", s, err)
	}
	return d, nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func inClause(column string, values []string, args []any) (string, []any) {
	for _, v := range values {
		args = append(args, v)
	}
	return fmt.Sprintf(" AND %s IN (%s)", column, placeholders(len(values))), args
}

// checkVersion turns a zero-row optimistic update into the right typed error.
func checkVersion(ctx context.Context, q querier, table, entity, id string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table), id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check %s existence: %w", entity, err)
	}
	if exists == 0 {
		return fault.New(fault.KindNotFound, "%s %s not found", entity, id)
	}
	return fault.New(fault.KindConcurrencyConflict, "%s %s was modified concurrently", entity, id)
}

// nextID returns prefix + (max numeric suffix + 1) zero-padded to width.
func nextID(ctx context.Context, q querier, table, prefix string, width int) (string, error) {
	var maxID int
	prefixLen := len(prefix) + 1
	err := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM %s WHERE id LIKE ?", prefixLen, table),
		prefix+"%",
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next %s ID: %w", table, err)
	}
	return fmt.Sprintf("%s%0*d", prefix, width, maxID+1), nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
