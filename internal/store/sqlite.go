// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides schema creation, shared query helpers, and the transaction wrapper

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// dbtx is the subset of *sql.DB and *sql.Tx the query methods rely on, so the
// same method set serves both transactional and non-transactional calls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements every entity operation against a dbtx. SQLiteStore runs
// it over the database handle; InTx runs it over an open transaction.
type queries struct {
	db     dbtx
	logger *slog.Logger
}

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	queries
	sqlDB *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		queries: queries{db: db, logger: logger},
		sqlDB:   db,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			email        TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			created_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS organizations (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			is_personal_org INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS memberships (
			user_id         TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			role            TEXT NOT NULL,
			joined_at       TEXT NOT NULL,

			PRIMARY KEY (user_id, organization_id),
			FOREIGN KEY (user_id) REFERENCES users(id),
			FOREIGN KEY (organization_id) REFERENCES organizations(id),
			CHECK (role IN ('owner', 'admin', 'member'))
		);

		CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships(user_id);

		CREATE TABLE IF NOT EXISTS sessions (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			expires_at      TEXT NOT NULL,
			last_active_at  TEXT NOT NULL,

			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

		CREATE TABLE IF NOT EXISTS api_tokens (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			secret_hash     TEXT NOT NULL,
			name            TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			last_used_at    TEXT,

			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_api_tokens_user ON api_tokens(user_id);

		CREATE TABLE IF NOT EXISTS credentials (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			public_key   BLOB NOT NULL,
			counter      INTEGER NOT NULL DEFAULT 0,
			transports   TEXT NOT NULL DEFAULT '[]',
			device_type  TEXT NOT NULL DEFAULT 'singleDevice',
			backed_up    INTEGER NOT NULL DEFAULT 0,
			name         TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			last_used_at TEXT,

			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_credentials_user ON credentials(user_id);

		CREATE TABLE IF NOT EXISTS captures (
			id                TEXT PRIMARY KEY,
			organization_id   TEXT NOT NULL,
			created_by_id     TEXT NOT NULL,
			content           TEXT NOT NULL,
			title             TEXT NOT NULL DEFAULT '',
			source_url        TEXT NOT NULL DEFAULT '',
			source_app        TEXT NOT NULL DEFAULT '',
			status            TEXT NOT NULL DEFAULT 'inbox',
			captured_at       TEXT NOT NULL,
			trashed_at        TEXT,
			snoozed_until     TEXT,
			pinned_at         TEXT,
			processed_at      TEXT,
			processed_to_type TEXT NOT NULL DEFAULT '',
			processed_to_id   TEXT NOT NULL DEFAULT '',

			FOREIGN KEY (organization_id) REFERENCES organizations(id),
			CHECK (status IN ('inbox', 'trashed', 'processed'))
		);

		CREATE INDEX IF NOT EXISTS idx_captures_org_status
			ON captures(organization_id, status, captured_at);
		CREATE INDEX IF NOT EXISTS idx_captures_org_snoozed
			ON captures(organization_id, snoozed_until);

		CREATE TABLE IF NOT EXISTS tasks (
			id              TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			created_by_id   TEXT NOT NULL,
			title           TEXT NOT NULL,
			capture_id      TEXT NOT NULL DEFAULT '',
			due_date        TEXT,
			created_at      TEXT NOT NULL,
			completed_at    TEXT,
			pinned_at       TEXT,
			deleted_at      TEXT,

			FOREIGN KEY (organization_id) REFERENCES organizations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_org ON tasks(organization_id, created_at);
	`

	if _, err := s.sqlDB.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// InTx runs fn inside a single SQLite transaction. Commit happens only when
// fn returns nil; an error or panic from fn rolls back, and the inner error
// is returned unchanged so callers can match it with errors.Is.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				s.logger.Warn("transaction rollback failed", "error", rbErr)
			}
		}
	}()

	if err := fn(&queries{db: sqlTx, logger: s.logger}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.sqlDB.Close()
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "constraint failed")
}

// nullTime returns nil for nil times, otherwise the RFC3339 string.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// fmtTime formats a time for storage.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a stored timestamp, tolerating both RFC3339 variants.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}

// scanNullTime converts a nullable column into a *time.Time.
func scanNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
