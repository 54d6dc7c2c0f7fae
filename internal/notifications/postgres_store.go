package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"teamhub-notifications/internal/common/database"
	"teamhub-notifications/internal/models"

	"github.com/lib/pq"
)

const (
	queryAnnouncements = `
		SELECT id, title, content, team_id, created_by, priority, notification_type, metadata, created_at, expiry_date
		FROM announcements
		WHERE expiry_date >= $1 AND (team_id = $2 OR team_id IS NULL)
		ORDER BY created_at DESC
		LIMIT $3`

	queryPendingLeave = `
		SELECT lp.id, lp.user_id, COALESCE(u.full_name, ''), lp.team_id, lp.leave_type,
		       lp.start_date, lp.end_date, COALESCE(lp.reason, ''), lp.status, lp.created_at
		FROM leave_plans lp
		LEFT JOIN users u ON u.id = lp.user_id
		WHERE lp.status = 'pending' AND ($1 = '' OR lp.team_id = $1)
		ORDER BY lp.created_at DESC
		LIMIT $2`

	queryPendingTimesheets = `
		SELECT ts.id, ts.user_id, COALESCE(u.full_name, ''), ts.team_id, ts.week_start,
		       ts.total_hours, ts.status, ts.created_at
		FROM timesheet_submissions ts
		LEFT JOIN users u ON u.id = ts.user_id
		WHERE ts.status = 'pending' AND ($1 = '' OR ts.team_id = $1)
		ORDER BY ts.created_at DESC
		LIMIT $2`

	queryTaskNotifications = `
		SELECT id, user_id, type, title, COALESCE(message, ''), is_read, COALESCE(priority, ''), data, created_at
		FROM notifications
		WHERE user_id = $1 AND type = ANY($2)
		ORDER BY created_at DESC
		LIMIT $3`

	execMarkRead = `
		UPDATE notifications SET is_read = TRUE, read_at = NOW()
		WHERE id = $1 AND user_id = $2`

	execInsertAnnouncement = `
		INSERT INTO announcements
			(id, title, content, team_id, created_by, priority, notification_type, metadata, created_at, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	execDeleteAnnouncement = `DELETE FROM announcements WHERE id = $1`

	queryTeamIDs = `SELECT id FROM teams ORDER BY id`

	queryContacts = `
		SELECT id, COALESCE(full_name, ''), COALESCE(email, ''), COALESCE(phone, ''), team_id
		FROM users
		WHERE team_id = ANY($1)`
)

// Schema creates the tables the service reads when they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS teams (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	id        TEXT PRIMARY KEY,
	full_name TEXT,
	email     TEXT,
	phone     TEXT,
	role      TEXT NOT NULL DEFAULT 'employee',
	team_id   TEXT REFERENCES teams(id)
);
CREATE TABLE IF NOT EXISTS announcements (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL,
	content           TEXT NOT NULL DEFAULT '',
	team_id           TEXT REFERENCES teams(id) ON DELETE CASCADE,
	created_by        TEXT NOT NULL,
	priority          TEXT NOT NULL DEFAULT 'Medium',
	notification_type TEXT,
	metadata          JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expiry_date       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS leave_plans (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	team_id    TEXT NOT NULL,
	leave_type TEXT NOT NULL,
	start_date DATE NOT NULL,
	end_date   DATE NOT NULL,
	reason     TEXT,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS timesheet_submissions (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES users(id),
	team_id     TEXT NOT NULL,
	week_start  DATE NOT NULL,
	total_hours NUMERIC(6,2) NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'pending',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	type       TEXT NOT NULL,
	title      TEXT NOT NULL,
	message    TEXT,
	is_read    BOOLEAN NOT NULL DEFAULT FALSE,
	read_at    TIMESTAMPTZ,
	priority   TEXT,
	data       JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// PostgresStore implements Store over lib/pq.
type PostgresStore struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func NewPostgresStore(db *sql.DB, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, queryTimeout: queryTimeout}
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// EnsureSchema applies Schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnnouncements(ctx context.Context, teamID string, now time.Time, limit int) ([]models.Announcement, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryAnnouncements, now, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("query announcements: %w", err)
	}
	defer rows.Close()

	var out []models.Announcement
	for rows.Next() {
		var (
			a        models.Announcement
			team     sql.NullString
			nType    sql.NullString
			metadata []byte
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &team, &a.CreatedBy, &a.Priority,
			&nType, &metadata, &a.CreatedAt, &a.ExpiryDate); err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		if team.Valid {
			a.TeamID = &team.String
		}
		a.NotificationType = nType.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode announcement %s metadata: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPendingLeave(ctx context.Context, teamID string, limit int) ([]models.LeavePlan, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryPendingLeave, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("query leave_plans: %w", err)
	}
	defer rows.Close()

	var out []models.LeavePlan
	for rows.Next() {
		var l models.LeavePlan
		if err := rows.Scan(&l.ID, &l.UserID, &l.EmployeeName, &l.TeamID, &l.LeaveType,
			&l.StartDate, &l.EndDate, &l.Reason, &l.Status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan leave plan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPendingTimesheets(ctx context.Context, teamID string, limit int) ([]models.TimesheetSubmission, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryPendingTimesheets, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("query timesheet_submissions: %w", err)
	}
	defer rows.Close()

	var out []models.TimesheetSubmission
	for rows.Next() {
		var ts models.TimesheetSubmission
		if err := rows.Scan(&ts.ID, &ts.UserID, &ts.EmployeeName, &ts.TeamID, &ts.WeekStart,
			&ts.TotalHours, &ts.Status, &ts.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan timesheet: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListTaskNotifications(ctx context.Context, userID string, types []string, limit int) ([]models.TaskNotification, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryTaskNotifications, userID, pq.Array(types), limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.TaskNotification
	for rows.Next() {
		var (
			n    models.TaskNotification
			data []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.IsRead,
			&n.Priority, &data, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("decode notification %s data: %w", n.ID, err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkTaskNotificationRead(ctx context.Context, id, userID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, execMarkRead, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: task-%s", ErrNotFound, id)
	}
	return nil
}

// InsertAnnouncements writes all rows in one transaction.
func (s *PostgresStore) InsertAnnouncements(ctx context.Context, rows []models.Announcement) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return database.InTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, execInsertAnnouncement)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, a := range rows {
			var metadata []byte
			if len(a.Metadata) > 0 {
				if metadata, err = json.Marshal(a.Metadata); err != nil {
					return fmt.Errorf("encode metadata: %w", err)
				}
			}
			if _, err := stmt.ExecContext(ctx,
				a.ID, a.Title, a.Content, nullString(a.TeamIDValue()), a.CreatedBy, a.Priority,
				nullString(a.NotificationType), metadata, a.CreatedAt, a.ExpiryDate,
			); err != nil {
				return fmt.Errorf("insert announcement %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) DeleteAnnouncement(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, execDeleteAnnouncement, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: announcement-%s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) ListTeamIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryTeamIDs)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListContacts returns the members of the given teams. It backs email and SMS
// delivery.
func (s *PostgresStore) ListContacts(ctx context.Context, teamIDs []string) ([]models.Contact, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryContacts, pq.Array(teamIDs))
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var out []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.UserID, &c.FullName, &c.Email, &c.Phone, &c.TeamID); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
