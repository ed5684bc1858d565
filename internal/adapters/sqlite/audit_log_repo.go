package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/example/garde/internal/ctxutil"
	"github.com/example/garde/internal/ports/secondary"
)

// fixed width, so stored instants sort as text
const auditTimeLayout = "2006-01-02T15:04:05.000000000Z"

// AuditLogRepository implements secondary.AuditLogRepository with SQLite.
type AuditLogRepository struct {
	db  *sql.DB
	now func() time.Time

	// serializes ID allocation with the insert
	mu sync.Mutex
}

// NewAuditLogRepository creates a new SQLite audit log repository.
func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db, now: time.Now}
}

// Record appends an entry, allocating its ID.
func (r *AuditLogRepository) Record(ctx context.Context, e secondary.AuditEntry) error {
	if e.ActorID == "" {
		e.ActorID = ctxutil.ActorFromContext(ctx)
	}
	if e.At.IsZero() {
		e.At = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := nextID(ctx, r.db, "audit_log", "LOG-", 4)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, timestamp, actor_id, entity_type, entity_id, action, field_name, old_value, new_value, site_id, sector_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		e.At.UTC().Format(auditTimeLayout),
		nullString(e.ActorID),
		e.EntityType,
		e.EntityID,
		e.Action,
		nullString(e.Field),
		nullString(e.OldValue),
		nullString(e.NewValue),
		nullString(e.Site),
		nullString(e.Sector),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry for %s %s: %w", e.EntityType, e.EntityID, err)
	}
	return nil
}

// List retrieves entries matching q, newest first.
func (r *AuditLogRepository) List(ctx context.Context, q secondary.AuditQuery) ([]*secondary.AuditEntry, error) {
	query := `SELECT id, timestamp, actor_id, entity_type, entity_id, action, field_name, old_value, new_value, site_id, sector_id
		FROM audit_log WHERE 1=1`
	var args []any

	for _, f := range []struct {
		column, value string
	}{
		{"entity_type", q.EntityType},
		{"entity_id", q.EntityID},
		{"actor_id", q.ActorID},
		{"action", q.Action},
		{"site_id", q.Site},
		{"sector_id", q.Sector},
	} {
		if f.value != "" {
			query += " AND " + f.column + " = ?"
			args = append(args, f.value)
		}
	}
	if !q.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, q.Since.UTC().Format(auditTimeLayout))
	}

	query += " ORDER BY timestamp DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit trail: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.AuditEntry
	for rows.Next() {
		var (
			e                                   secondary.AuditEntry
			at                                  string
			actor, field, oldV, newV, site, sec sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &actor, &e.EntityType, &e.EntityID, &e.Action, &field, &oldV, &newV, &site, &sec); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		e.ActorID, e.Field, e.OldValue, e.NewValue = actor.String, field.String, oldV.String, newV.String
		e.Site, e.Sector = site.String, sec.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// PruneBefore deletes entries recorded before cutoff.
func (r *AuditLogRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audit_log WHERE timestamp < ?`, cutoff.UTC().Format(auditTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit trail: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Ensure AuditLogRepository implements the interface
var _ secondary.AuditLogRepository = (*AuditLogRepository)(nil)
