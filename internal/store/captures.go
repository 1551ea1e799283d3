// ABOUTME: Capture store methods including the conditional state transitions
// ABOUTME: Transition writes re-check status in the WHERE clause so races lose cleanly

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const captureColumns = `id, organization_id, created_by_id, content, title, source_url, source_app,
	status, captured_at, trashed_at, snoozed_until, pinned_at, processed_at, processed_to_type, processed_to_id`

// CreateCapture inserts a new capture in inbox state unless a status is
// already set.
func (q *queries) CreateCapture(ctx context.Context, c *Capture) error {
	if c.Status == "" {
		c.Status = CaptureStatusInbox
	}

	query := `
		INSERT INTO captures
			(` + captureColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		c.ID,
		c.OrganizationID,
		c.CreatedByID,
		c.Content,
		c.Title,
		c.SourceURL,
		c.SourceApp,
		string(c.Status),
		fmtTime(c.CapturedAt),
		nullTime(c.TrashedAt),
		nullTime(c.SnoozedUntil),
		nullTime(c.PinnedAt),
		nullTime(c.ProcessedAt),
		c.ProcessedToType,
		c.ProcessedToID,
	)
	if err != nil {
		return fmt.Errorf("inserting capture: %w", err)
	}

	q.logger.Debug("created capture", "id", c.ID, "org_id", c.OrganizationID)
	return nil
}

// GetCapture retrieves a capture by ID. Returns ErrNotFound if absent.
func (q *queries) GetCapture(ctx context.Context, id string) (*Capture, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+captureColumns+` FROM captures WHERE id = ?`, id)

	c, err := scanCapture(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListCaptures returns captures for an organization filtered by view.
// Inbox, trashed, and processed views order newest-first by captured_at;
// the snoozed view orders soonest-first by snoozed_until.
func (q *queries) ListCaptures(ctx context.Context, orgID string, f CaptureFilter) ([]*Capture, error) {
	query := `SELECT ` + captureColumns + ` FROM captures WHERE organization_id = ?`
	args := []any{orgID}

	switch f.View {
	case CaptureViewSnoozed:
		query += ` AND status = 'inbox' AND snoozed_until IS NOT NULL ORDER BY snoozed_until ASC`
	case CaptureViewTrashed:
		query += ` AND status = 'trashed' ORDER BY captured_at DESC`
	case CaptureViewProcessed:
		query += ` AND status = 'processed' ORDER BY captured_at DESC`
	case CaptureViewInbox, "":
		query += ` AND status = 'inbox' AND (snoozed_until IS NULL OR snoozed_until <= ?) ORDER BY pinned_at IS NULL, captured_at DESC`
		args = append(args, fmtTime(time.Now()))
	default:
		return nil, fmt.Errorf("unknown capture view %q", f.View)
	}

	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying captures: %w", err)
	}
	defer rows.Close()

	var captures []*Capture
	for rows.Next() {
		c, err := scanCapture(rows.Scan)
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}

// TrashCapture moves an inbox capture to the trash. Trashing clears the pin.
// Reports false when no row matched (absent, already trashed, or processed).
func (q *queries) TrashCapture(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE captures
		SET status = 'trashed', trashed_at = ?, pinned_at = NULL
		WHERE id = ? AND status = 'inbox'
	`, fmtTime(at), id)
	if err != nil {
		return false, fmt.Errorf("trashing capture: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// RestoreCapture moves a trashed capture back to the inbox.
func (q *queries) RestoreCapture(ctx context.Context, id string) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE captures
		SET status = 'inbox', trashed_at = NULL
		WHERE id = ? AND status = 'trashed'
	`, id)
	if err != nil {
		return false, fmt.Errorf("restoring capture: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// MarkCaptureProcessed transitions inbox -> processed. The status re-check in
// the WHERE clause is the sole guard against concurrent double-processing.
func (q *queries) MarkCaptureProcessed(ctx context.Context, id, toType, toID string, at time.Time) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE captures
		SET status = 'processed', processed_at = ?, processed_to_type = ?, processed_to_id = ?
		WHERE id = ? AND status = 'inbox'
	`, fmtTime(at), toType, toID, id)
	if err != nil {
		return false, fmt.Errorf("marking capture processed: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// PinCapture pins an unpinned inbox capture. A second pin matches no row,
// preserving the original pinned_at.
func (q *queries) PinCapture(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE captures
		SET pinned_at = ?
		WHERE id = ? AND status = 'inbox' AND pinned_at IS NULL
	`, fmtTime(at), id)
	if err != nil {
		return false, fmt.Errorf("pinning capture: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// UnpinCapture clears the pin flag.
func (q *queries) UnpinCapture(ctx context.Context, id string) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE captures SET pinned_at = NULL WHERE id = ? AND pinned_at IS NOT NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("unpinning capture: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// SnoozeCapture sets snoozed_until on an inbox capture. Re-snoozing moves
// the wake time; snooze is a flag, not a status transition.
func (q *queries) SnoozeCapture(ctx context.Context, id string, until time.Time) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE captures SET snoozed_until = ? WHERE id = ? AND status = 'inbox'
	`, fmtTime(until), id)
	if err != nil {
		return false, fmt.Errorf("snoozing capture: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// UnsnoozeCapture clears snoozed_until.
func (q *queries) UnsnoozeCapture(ctx context.Context, id string) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE captures SET snoozed_until = NULL WHERE id = ? AND snoozed_until IS NOT NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("unsnoozing capture: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ForceTrashCapture trashes a capture whatever its status, for cascade
// deletes of processed captures. An earlier trashed_at wins.
func (q *queries) ForceTrashCapture(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE captures
		SET status = 'trashed', trashed_at = COALESCE(trashed_at, ?), pinned_at = NULL
		WHERE id = ?
	`, fmtTime(at), id)
	if err != nil {
		return false, fmt.Errorf("force-trashing capture: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// DeleteCapture physically removes a capture, but only from the trash.
func (q *queries) DeleteCapture(ctx context.Context, id string) (bool, error) {
	result, err := q.db.ExecContext(ctx,
		`DELETE FROM captures WHERE id = ? AND status = 'trashed'`, id)
	if err != nil {
		return false, fmt.Errorf("deleting capture: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// EmptyTrash physically removes all trashed captures in an organization.
func (q *queries) EmptyTrash(ctx context.Context, orgID string) (int, error) {
	result, err := q.db.ExecContext(ctx,
		`DELETE FROM captures WHERE organization_id = ? AND status = 'trashed'`, orgID)
	if err != nil {
		return 0, fmt.Errorf("emptying trash: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func scanCapture(scan func(dest ...any) error) (*Capture, error) {
	var c Capture
	var status, capturedAt string
	var trashedAt, snoozedUntil, pinnedAt, processedAt sql.NullString

	err := scan(&c.ID, &c.OrganizationID, &c.CreatedByID, &c.Content, &c.Title,
		&c.SourceURL, &c.SourceApp, &status, &capturedAt, &trashedAt,
		&snoozedUntil, &pinnedAt, &processedAt, &c.ProcessedToType, &c.ProcessedToID)
	if err != nil {
		return nil, err
	}

	c.Status = CaptureStatus(status)
	if c.CapturedAt, err = parseTime(capturedAt); err != nil {
		return nil, fmt.Errorf("parsing captured_at: %w", err)
	}
	if c.TrashedAt, err = scanNullTime(trashedAt); err != nil {
		return nil, fmt.Errorf("parsing trashed_at: %w", err)
	}
	if c.SnoozedUntil, err = scanNullTime(snoozedUntil); err != nil {
		return nil, fmt.Errorf("parsing snoozed_until: %w", err)
	}
	if c.PinnedAt, err = scanNullTime(pinnedAt); err != nil {
		return nil, fmt.Errorf("parsing pinned_at: %w", err)
	}
	if c.ProcessedAt, err = scanNullTime(processedAt); err != nil {
		return nil, fmt.Errorf("parsing processed_at: %w", err)
	}
	return &c, nil
}
