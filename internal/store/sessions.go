// ABOUTME: Session store methods for browser session persistence
// ABOUTME: Supports sliding-expiry updates and expired-session sweeps

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateSession inserts a new session.
func (q *queries) CreateSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (id, user_id, organization_id, created_at, expires_at, last_active_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.CurrentOrganizationID,
		fmtTime(session.CreatedAt),
		fmtTime(session.ExpiresAt),
		fmtTime(session.LastActiveAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	q.logger.Debug("created session", "id", session.ID, "user_id", session.UserID)
	return nil
}

// GetSession retrieves a session by ID. Returns ErrNotFound if absent.
func (q *queries) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	var createdAt, expiresAt, lastActiveAt string

	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, organization_id, created_at, expires_at, last_active_at
		FROM sessions
		WHERE id = ?
	`, id).Scan(&s.ID, &s.UserID, &s.CurrentOrganizationID, &createdAt, &expiresAt, &lastActiveAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if s.LastActiveAt, err = parseTime(lastActiveAt); err != nil {
		return nil, fmt.Errorf("parsing last_active_at: %w", err)
	}
	return &s, nil
}

// UpdateSession persists the mutable session fields (organization, expiry,
// activity timestamp).
func (q *queries) UpdateSession(ctx context.Context, session *Session) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE sessions
		SET organization_id = ?, expires_at = ?, last_active_at = ?
		WHERE id = ?
	`,
		session.CurrentOrganizationID,
		fmtTime(session.ExpiresAt),
		fmtTime(session.LastActiveAt),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session. Deleting an absent session is not an
// error; revocation is idempotent.
func (q *queries) DeleteSession(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions that expired before now and
// returns how many were swept.
func (q *queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	result, err := q.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, fmtTime(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}
