// ABOUTME: API token store methods, hash-indexed by token ID
// ABOUTME: Raw secrets are never persisted; only bcrypt hashes are stored

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateToken inserts a new API token record.
func (q *queries) CreateToken(ctx context.Context, token *APIToken) error {
	query := `
		INSERT INTO api_tokens (id, user_id, organization_id, secret_hash, name, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.OrganizationID,
		token.SecretHash,
		token.Name,
		fmtTime(token.CreatedAt),
		nullTime(token.LastUsedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}

	q.logger.Debug("created api token", "id", token.ID, "user_id", token.UserID)
	return nil
}

// GetToken retrieves a token record by ID. Returns ErrNotFound if absent.
func (q *queries) GetToken(ctx context.Context, id string) (*APIToken, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, organization_id, secret_hash, name, created_at, last_used_at
		FROM api_tokens
		WHERE id = ?
	`, id)

	token, err := scanToken(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return token, err
}

// ListTokensByUser returns all tokens owned by a user, newest first.
func (q *queries) ListTokensByUser(ctx context.Context, userID string) ([]*APIToken, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, organization_id, secret_hash, name, created_at, last_used_at
		FROM api_tokens
		WHERE user_id = ?
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*APIToken
	for rows.Next() {
		token, err := scanToken(rows.Scan)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// TouchToken records token usage. Missing tokens are ignored; the update is
// best-effort bookkeeping.
func (q *queries) TouchToken(ctx context.Context, id string, at time.Time) error {
	if _, err := q.db.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = ? WHERE id = ?`, fmtTime(at), id); err != nil {
		return fmt.Errorf("touching token: %w", err)
	}
	return nil
}

// DeleteToken revokes a token.
func (q *queries) DeleteToken(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanToken(scan func(dest ...any) error) (*APIToken, error) {
	var t APIToken
	var createdAt string
	var lastUsedAt sql.NullString

	err := scan(&t.ID, &t.UserID, &t.OrganizationID, &t.SecretHash, &t.Name, &createdAt, &lastUsedAt)
	if err != nil {
		return nil, err
	}

	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.LastUsedAt, err = scanNullTime(lastUsedAt); err != nil {
		return nil, fmt.Errorf("parsing last_used_at: %w", err)
	}
	return &t, nil
}
