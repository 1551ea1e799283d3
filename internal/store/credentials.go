// ABOUTME: Passkey credential store methods keyed by WebAuthn credential ID
// ABOUTME: Tracks monotonic signature counters for replay detection

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateCredential inserts a new passkey credential. Returns ErrDuplicate if
// the credential ID is already registered.
func (q *queries) CreateCredential(ctx context.Context, cred *Credential) error {
	query := `
		INSERT INTO credentials
			(id, user_id, public_key, counter, transports, device_type, backed_up, name, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		cred.ID,
		cred.UserID,
		cred.PublicKey,
		cred.Counter,
		cred.Transports,
		cred.DeviceType,
		cred.BackedUp,
		cred.Name,
		fmtTime(cred.CreatedAt),
		nullTime(cred.LastUsedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("credential %q: %w", cred.ID, ErrDuplicate)
		}
		return fmt.Errorf("inserting credential: %w", err)
	}

	q.logger.Debug("created credential", "id", cred.ID, "user_id", cred.UserID)
	return nil
}

// GetCredential retrieves a credential by its WebAuthn credential ID.
func (q *queries) GetCredential(ctx context.Context, id string) (*Credential, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, public_key, counter, transports, device_type, backed_up, name, created_at, last_used_at
		FROM credentials
		WHERE id = ?
	`, id)

	cred, err := scanCredential(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cred, err
}

// ListCredentialsByUser returns all credentials registered by a user, oldest
// first.
func (q *queries) ListCredentialsByUser(ctx context.Context, userID string) ([]*Credential, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, public_key, counter, transports, device_type, backed_up, name, created_at, last_used_at
		FROM credentials
		WHERE user_id = ?
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var creds []*Credential
	for rows.Next() {
		cred, err := scanCredential(rows.Scan)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// UpdateCredentialCounter stores the authenticator's new signature counter
// and stamps last_used_at after a successful authentication.
func (q *queries) UpdateCredentialCounter(ctx context.Context, id string, counter uint32, usedAt time.Time) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE credentials SET counter = ?, last_used_at = ? WHERE id = ?
	`, counter, fmtTime(usedAt), id)
	if err != nil {
		return fmt.Errorf("updating credential counter: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCredential removes a credential. The at-least-one-credential
// invariant is the caller's responsibility, not the store's.
func (q *queries) DeleteCredential(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCredential(scan func(dest ...any) error) (*Credential, error) {
	var c Credential
	var createdAt string
	var lastUsedAt sql.NullString

	err := scan(&c.ID, &c.UserID, &c.PublicKey, &c.Counter, &c.Transports,
		&c.DeviceType, &c.BackedUp, &c.Name, &createdAt, &lastUsedAt)
	if err != nil {
		return nil, err
	}

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.LastUsedAt, err = scanNullTime(lastUsedAt); err != nil {
		return nil, fmt.Errorf("parsing last_used_at: %w", err)
	}
	return &c, nil
}
