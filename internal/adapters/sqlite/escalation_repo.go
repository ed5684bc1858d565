package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/garde/internal/core/escalation"
	"github.com/example/garde/internal/core/fault"
	"github.com/example/garde/internal/ports/secondary"
)

// EscalationRepository implements secondary.EscalationRepository with SQLite.
type EscalationRepository struct {
	db *sql.DB
}

// NewEscalationRepository creates a new SQLite escalation repository.
func NewEscalationRepository(db *sql.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

const escalationColumns = `id, description, incident_type, priority, incident_time, site_id, sector_id, service_id,
	declarant_name, declarant_contact, declarant_user_id, status,
	timeout_level1, timeout_level2, timeout_level3, max_attempts_per_level, min_interval_minutes,
	resolver_id, resolved_at, resolution_minutes, resolution_method, resolution_comment, satisfaction,
	created_at, updated_at, version`

// Create persists a new case with its levels, attempts and history.
func (r *EscalationRepository) Create(ctx context.Context, c *escalation.Case) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		args := []any{
			c.ID,
			c.Incident.Description,
			nullString(c.Incident.Type),
			c.Incident.Priority,
			formatTime(c.Incident.Time),
			c.Site,
			c.Sector,
			nullString(c.Service),
			nullString(c.Declarant.Name),
			nullString(c.Declarant.Contact),
			nullString(c.Declarant.UserID),
			string(c.Status),
			c.Config.TimeoutMinutes[0],
			c.Config.TimeoutMinutes[1],
			c.Config.TimeoutMinutes[2],
			c.Config.MaxAttemptsPerLevel,
			c.Config.MinIntervalMinutes,
		}
		args = append(args, resolutionArgs(c.Resolution)...)
		args = append(args, formatTime(c.CreatedAt), formatTime(c.UpdatedAt), 1)

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO escalations (`+escalationColumns+`) VALUES (`+placeholders(26)+`)`,
			args...,
		); err != nil {
			return fmt.Errorf("failed to create escalation: %w", err)
		}
		return insertCaseChildren(ctx, tx, c)
	})
	if err != nil {
		return err
	}
	c.Version = 1
	return nil
}

func resolutionArgs(res *escalation.Resolution) []any {
	if res == nil {
		return []any{nil, nil, nil, nil, nil, nil}
	}
	minutes := res.Minutes
	var satisfaction *int
	if res.Satisfaction > 0 {
		s := res.Satisfaction
		satisfaction = &s
	}
	return []any{
		nullString(res.ResolverID),
		formatTime(res.ResolvedAt),
		nullInt(&minutes),
		nullString(string(res.Method)),
		nullString(res.Comment),
		nullInt(satisfaction),
	}
}

func insertCaseChildren(ctx context.Context, tx *sql.Tx, c *escalation.Case) error {
	for _, l := range c.Levels {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO escalation_levels (escalation_id, level, responder_id, contacted_at, responded, responded_at, response_time_minutes, response_type, forwarded_to, comment) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, l.Number, l.ResponderID, formatTime(l.ContactedAt), l.Responded, nullTime(l.RespondedAt),
			nullInt(l.ResponseTimeMinutes), nullString(string(l.ResponseType)), nullString(l.ForwardedTo), nullString(l.Comment),
		)
		if err != nil {
			return fmt.Errorf("failed to store level %d of %s: %w", l.Number, c.ID, err)
		}
		for _, a := range l.Attempts {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO contact_attempts (escalation_id, level, attempt, channel, sent_at, delivery_status) VALUES (?, ?, ?, ?, ?, ?)`,
				c.ID, l.Number, a.Number, string(a.Channel), formatTime(a.SentAt), string(a.DeliveryStatus),
			)
			if err != nil {
				return fmt.Errorf("failed to store attempt %d on level %d of %s: %w", a.Number, l.Number, c.ID, err)
			}
		}
	}
	for i, h := range c.History {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO escalation_history (escalation_id, seq, at, actor_id, level, action, detail) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, i+1, formatTime(h.At), nullString(h.ActorID), h.Level, h.Action, nullString(h.Detail),
		)
		if err != nil {
			return fmt.Errorf("failed to store history of %s: %w", c.ID, err)
		}
	}
	return nil
}

// GetByID retrieves a case with its levels, attempts and history.
func (r *EscalationRepository) GetByID(ctx context.Context, id string) (*escalation.Case, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+escalationColumns+` FROM escalations WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}
	cases, err := scanCases(rows)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fault.New(fault.KindNotFound, "escalation %s not found", id)
	}
	if err := r.loadChildren(ctx, cases[0]); err != nil {
		return nil, err
	}
	return cases[0], nil
}

// Update replaces the stored case and its child rows. A copy whose history is
// shorter than the stored one is stale.
func (r *EscalationRepository) Update(ctx context.Context, c *escalation.Case) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		args := []any{string(c.Status)}
		args = append(args, resolutionArgs(c.Resolution)...)
		args = append(args, formatTime(c.UpdatedAt), c.ID, c.Version)

		res, err := tx.ExecContext(ctx,
			`UPDATE escalations SET status = ?, resolver_id = ?, resolved_at = ?, resolution_minutes = ?,
				resolution_method = ?, resolution_comment = ?, satisfaction = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("failed to update escalation: %w", err)
		}
		if err := checkVersion(ctx, tx, "escalations", "escalation", c.ID, res); err != nil {
			return err
		}

		var stored int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM escalation_history WHERE escalation_id = ?`, c.ID).Scan(&stored); err != nil {
			return fmt.Errorf("failed to count history: %w", err)
		}
		if stored > len(c.History) {
			return fault.New(fault.KindConcurrencyConflict, "escalation %s history is ahead of this copy", c.ID)
		}
		for _, stmt := range []string{
			`DELETE FROM contact_attempts WHERE escalation_id = ?`,
			`DELETE FROM escalation_levels WHERE escalation_id = ?`,
			`DELETE FROM escalation_history WHERE escalation_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, c.ID); err != nil {
				return fmt.Errorf("failed to clear escalation children: %w", err)
			}
		}
		return insertCaseChildren(ctx, tx, c)
	})
	if err != nil {
		return err
	}
	c.Version++
	return nil
}

// List retrieves cases matching the given filters, newest first.
func (r *EscalationRepository) List(ctx context.Context, filters secondary.EscalationFilters) ([]*escalation.Case, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE 1=1`
	args := []any{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.Site != "" {
		query += " AND site_id = ?"
		args = append(args, filters.Site)
	}
	if filters.Sector != "" {
		query += " AND sector_id = ?"
		args = append(args, filters.Sector)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	cases, err := scanCases(rows)
	if err != nil {
		return nil, err
	}
	for _, c := range cases {
		if err := r.loadChildren(ctx, c); err != nil {
			return nil, err
		}
	}
	return cases, nil
}

// GetNextID returns the next available case ID.
func (r *EscalationRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "escalations", "ESC-", 3)
}

func scanCases(rows *sql.Rows) ([]*escalation.Case, error) {
	defer rows.Close()

	var out []*escalation.Case
	for rows.Next() {
		var (
			c                               escalation.Case
			incidentType, service           sql.NullString
			declName, declContact, declUser sql.NullString
			incidentTime, status            string
			resolverID, resolvedAt          sql.NullString
			resMethod, resComment           sql.NullString
			resMinutes, satisfaction        sql.NullInt64
			createdAt, updatedAt            string
		)
		err := rows.Scan(&c.ID, &c.Incident.Description, &incidentType, &c.Incident.Priority, &incidentTime,
			&c.Site, &c.Sector, &service, &declName, &declContact, &declUser, &status,
			&c.Config.TimeoutMinutes[0], &c.Config.TimeoutMinutes[1], &c.Config.TimeoutMinutes[2],
			&c.Config.MaxAttemptsPerLevel, &c.Config.MinIntervalMinutes,
			&resolverID, &resolvedAt, &resMinutes, &resMethod, &resComment, &satisfaction,
			&createdAt, &updatedAt, &c.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}

		c.Incident.Type = incidentType.String
		c.Service = service.String
		c.Declarant = escalation.Declarant{Name: declName.String, Contact: declContact.String, UserID: declUser.String}
		c.Status = escalation.Status(status)

		if c.Incident.Time, err = parseTime(incidentTime); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		if resolvedAt.Valid {
			at, err := parseTime(resolvedAt.String)
			if err != nil {
				return nil, err
			}
			c.Resolution = &escalation.Resolution{
				ResolverID:   resolverID.String,
				ResolvedAt:   at,
				Minutes:      int(resMinutes.Int64),
				Method:       escalation.ResolutionMethod(resMethod.String),
				Comment:      resComment.String,
				Satisfaction: int(satisfaction.Int64),
			}
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read escalations: %w", err)
	}
	return out, nil
}

func (r *EscalationRepository) loadChildren(ctx context.Context, c *escalation.Case) error {
	if err := r.loadLevels(ctx, c); err != nil {
		return err
	}
	if err := r.loadAttempts(ctx, c); err != nil {
		return err
	}
	if err := r.loadHistory(ctx, c); err != nil {
		return err
	}
	c.Rehydrate()
	return nil
}

func (r *EscalationRepository) loadLevels(ctx context.Context, c *escalation.Case) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT level, responder_id, contacted_at, responded, responded_at, response_time_minutes, response_type, forwarded_to, comment
		FROM escalation_levels WHERE escalation_id = ? ORDER BY level`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l                                   escalation.Level
			contactedAt                         string
			respondedAt, responseType, fwd, cmt sql.NullString
			responseMinutes                     sql.NullInt64
		)
		if err := rows.Scan(&l.Number, &l.ResponderID, &contactedAt, &l.Responded, &respondedAt, &responseMinutes, &responseType, &fwd, &cmt); err != nil {
			return fmt.Errorf("failed to scan level: %w", err)
		}
		if l.ContactedAt, err = parseTime(contactedAt); err != nil {
			return err
		}
		if l.RespondedAt, err = parseNullTime(respondedAt); err != nil {
			return err
		}
		l.ResponseTimeMinutes = intPtr(responseMinutes)
		l.ResponseType = escalation.ResponseType(responseType.String)
		l.ForwardedTo = fwd.String
		l.Comment = cmt.String
		c.Levels = append(c.Levels, l)
	}
	return rows.Err()
}

func (r *EscalationRepository) loadAttempts(ctx context.Context, c *escalation.Case) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT level, attempt, channel, sent_at, delivery_status FROM contact_attempts WHERE escalation_id = ? ORDER BY level, attempt`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load contact attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			level                   int
			a                       escalation.ContactAttempt
			channel, sentAt, status string
		)
		if err := rows.Scan(&level, &a.Number, &channel, &sentAt, &status); err != nil {
			return fmt.Errorf("failed to scan contact attempt: %w", err)
		}
		if a.SentAt, err = parseTime(sentAt); err != nil {
			return err
		}
		a.Channel = escalation.Channel(channel)
		a.DeliveryStatus = escalation.DeliveryStatus(status)
		lvl, lerr := c.Level(level)
		if lerr != nil {
			return fmt.Errorf("attempt %d references missing level %d of %s", a.Number, level, c.ID)
		}
		lvl.Attempts = append(lvl.Attempts, a)
	}
	return rows.Err()
}

func (r *EscalationRepository) loadHistory(ctx context.Context, c *escalation.Case) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT at, actor_id, level, action, detail FROM escalation_history WHERE escalation_id = ? ORDER BY seq`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			h             escalation.HistoryEntry
			at            string
			actor, detail sql.NullString
		)
		if err := rows.Scan(&at, &actor, &h.Level, &h.Action, &detail); err != nil {
			return fmt.Errorf("failed to scan history: %w", err)
		}
		if h.At, err = parseTime(at); err != nil {
			return err
		}
		h.ActorID = actor.String
		h.Detail = detail.String
		c.History = append(c.History, h)
	}
	return rows.Err()
}

// Ensure EscalationRepository implements the interface
var _ secondary.EscalationRepository = (*EscalationRepository)(nil)
