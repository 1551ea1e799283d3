// ABOUTME: Task store methods with soft deletion and idempotent flag updates
// ABOUTME: Soft-deleted tasks are invisible to reads but remain for the cascade audit trail

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const taskColumns = `id, organization_id, created_by_id, title, capture_id, due_date,
	created_at, completed_at, pinned_at, deleted_at`

// CreateTask inserts a new task.
func (q *queries) CreateTask(ctx context.Context, t *Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		t.ID,
		t.OrganizationID,
		t.CreatedByID,
		t.Title,
		t.CaptureID,
		nullTime(t.DueDate),
		fmtTime(t.CreatedAt),
		nullTime(t.CompletedAt),
		nullTime(t.PinnedAt),
		nullTime(t.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}

	q.logger.Debug("created task", "id", t.ID, "org_id", t.OrganizationID)
	return nil
}

// GetTask retrieves a task by ID. Soft-deleted tasks read as ErrNotFound.
func (q *queries) GetTask(ctx context.Context, id string) (*Task, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND deleted_at IS NULL`, id)

	t, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// ListTasks returns live tasks for an organization, pinned first, then
// newest-first.
func (q *queries) ListTasks(ctx context.Context, orgID string, f TaskFilter) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE organization_id = ? AND deleted_at IS NULL`
	args := []any{orgID}

	if !f.IncludeCompleted {
		query += ` AND completed_at IS NULL`
	}
	query += ` ORDER BY pinned_at IS NULL, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CompleteTask marks a task complete. Completing an already-complete task
// matches no row, preserving the original completed_at.
func (q *queries) CompleteTask(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE tasks SET completed_at = ?
		WHERE id = ? AND completed_at IS NULL AND deleted_at IS NULL
	`, fmtTime(at), id)
	if err != nil {
		return false, fmt.Errorf("completing task: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ReopenTask clears completion.
func (q *queries) ReopenTask(ctx context.Context, id string) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE tasks SET completed_at = NULL
		WHERE id = ? AND completed_at IS NOT NULL AND deleted_at IS NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("reopening task: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// PinTask pins an unpinned task, preserving the original pinned_at on
// repeat calls.
func (q *queries) PinTask(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE tasks SET pinned_at = ?
		WHERE id = ? AND pinned_at IS NULL AND deleted_at IS NULL
	`, fmtTime(at), id)
	if err != nil {
		return false, fmt.Errorf("pinning task: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// UnpinTask clears the pin flag.
func (q *queries) UnpinTask(ctx context.Context, id string) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE tasks SET pinned_at = NULL
		WHERE id = ? AND pinned_at IS NOT NULL AND deleted_at IS NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("unpinning task: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// SoftDeleteTask marks a live task deleted.
func (q *queries) SoftDeleteTask(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE tasks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, fmtTime(at), id)
	if err != nil {
		return false, fmt.Errorf("soft-deleting task: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func scanTask(scan func(dest ...any) error) (*Task, error) {
	var t Task
	var createdAt string
	var dueDate, completedAt, pinnedAt, deletedAt sql.NullString

	err := scan(&t.ID, &t.OrganizationID, &t.CreatedByID, &t.Title, &t.CaptureID,
		&dueDate, &createdAt, &completedAt, &pinnedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.DueDate, err = scanNullTime(dueDate); err != nil {
		return nil, fmt.Errorf("parsing due_date: %w", err)
	}
	if t.CompletedAt, err = scanNullTime(completedAt); err != nil {
		return nil, fmt.Errorf("parsing completed_at: %w", err)
	}
	if t.PinnedAt, err = scanNullTime(pinnedAt); err != nil {
		return nil, fmt.Errorf("parsing pinned_at: %w", err)
	}
	if t.DeletedAt, err = scanNullTime(deletedAt); err != nil {
		return nil, fmt.Errorf("parsing deleted_at: %w", err)
	}
	return &t, nil
}
