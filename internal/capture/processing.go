// ABOUTME: Capture-to-task conversion and cascade deletion, both transactional
// ABOUTME: A conditional status re-check inside the transaction prevents double-processing

package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/snagbox/snagbox/internal/store"
)

// titleLimit is the hard cutoff when deriving a task title from capture
// content. No ellipsis.
const titleLimit = 100

// processedToTask is the processed_to_type written for task conversions.
const processedToTask = "task"

// ProcessParams identifies the capture to convert and optional task fields.
type ProcessParams struct {
	ID             string
	OrganizationID string
	CreatedByID    string
	Title          string
	DueDate        *time.Time
}

// ProcessToTask converts an inbox capture into a task. Task creation and the
// capture's processed mark commit in one transaction; the mark re-checks
// status=inbox at write time, so of two concurrent calls exactly one
// succeeds and the other reports ErrCaptureNotInInbox.
func (s *Service) ProcessToTask(ctx context.Context, p ProcessParams) (*store.Task, error) {
	c, err := s.scoped(ctx, p.ID, p.OrganizationID)
	if err != nil {
		return nil, err
	}
	if c.Status != store.CaptureStatusInbox {
		return nil, ErrCaptureNotInInbox
	}

	title := p.Title
	if title == "" {
		title = truncate(c.Content, titleLimit)
	}

	task := &store.Task{
		ID:             s.newID(),
		OrganizationID: p.OrganizationID,
		CreatedByID:    p.CreatedByID,
		Title:          title,
		CaptureID:      c.ID,
		DueDate:        p.DueDate,
		CreatedAt:      s.now(),
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("creating task: %w", err)
		}
		ok, err := tx.MarkCaptureProcessed(ctx, c.ID, processedToTask, task.ID, s.now())
		if err != nil {
			return fmt.Errorf("marking capture processed: %w", err)
		}
		if !ok {
			// A concurrent processor won; roll the task back.
			return ErrCaptureNotInInbox
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("capture processed to task", "capture_id", c.ID, "task_id", task.ID)
	return task, nil
}

// DeleteTaskWithCascade soft-deletes a task and, when the task came from a
// capture, trashes that capture in the same transaction.
func (s *Service) DeleteTaskWithCascade(ctx context.Context, id, orgID string) error {
	task, err := s.scopedTask(ctx, id, orgID)
	if err != nil {
		return err
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		ok, err := tx.SoftDeleteTask(ctx, id, s.now())
		if err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
		if !ok {
			return ErrTaskNotFound
		}
		if task.CaptureID != "" {
			if _, err := tx.ForceTrashCapture(ctx, task.CaptureID, s.now()); err != nil {
				return fmt.Errorf("trashing source capture: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("task deleted", "task_id", id, "capture_id", task.CaptureID)
	return nil
}

// GetTask returns a task scoped to an organization.
func (s *Service) GetTask(ctx context.Context, id, orgID string) (*store.Task, error) {
	return s.scopedTask(ctx, id, orgID)
}

// ListTasks returns an organization's tasks.
func (s *Service) ListTasks(ctx context.Context, orgID string, f store.TaskFilter) ([]*store.Task, error) {
	tasks, err := s.store.ListTasks(ctx, orgID, f)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// CompleteTask marks a task done. Completing a completed task keeps the
// original completedAt.
func (s *Service) CompleteTask(ctx context.Context, id, orgID string) (*store.Task, error) {
	if _, err := s.scopedTask(ctx, id, orgID); err != nil {
		return nil, err
	}
	if _, err := s.store.CompleteTask(ctx, id, s.now()); err != nil {
		return nil, fmt.Errorf("completing task: %w", err)
	}
	return s.scopedTask(ctx, id, orgID)
}

// ReopenTask clears a task's completion.
func (s *Service) ReopenTask(ctx context.Context, id, orgID string) (*store.Task, error) {
	if _, err := s.scopedTask(ctx, id, orgID); err != nil {
		return nil, err
	}
	if _, err := s.store.ReopenTask(ctx, id); err != nil {
		return nil, fmt.Errorf("reopening task: %w", err)
	}
	return s.scopedTask(ctx, id, orgID)
}

// PinTask flags a task; re-pinning keeps the original pinnedAt.
func (s *Service) PinTask(ctx context.Context, id, orgID string) (*store.Task, error) {
	if _, err := s.scopedTask(ctx, id, orgID); err != nil {
		return nil, err
	}
	if _, err := s.store.PinTask(ctx, id, s.now()); err != nil {
		return nil, fmt.Errorf("pinning task: %w", err)
	}
	return s.scopedTask(ctx, id, orgID)
}

// UnpinTask clears a task's pin flag.
func (s *Service) UnpinTask(ctx context.Context, id, orgID string) (*store.Task, error) {
	if _, err := s.scopedTask(ctx, id, orgID); err != nil {
		return nil, err
	}
	if _, err := s.store.UnpinTask(ctx, id); err != nil {
		return nil, fmt.Errorf("unpinning task: %w", err)
	}
	return s.scopedTask(ctx, id, orgID)
}

// scopedTask fetches a live task, hiding soft-deleted rows and tasks owned
// by other organizations.
func (s *Service) scopedTask(ctx context.Context, id, orgID string) (*store.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("looking up task: %w", err)
	}
	if task.OrganizationID != orgID {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// truncate hard-cuts a string to at most limit characters, counting runes so
// multi-byte content never splits mid-character.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
