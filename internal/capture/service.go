// ABOUTME: Capture lifecycle service: create, list views, trash, restore, pin, snooze, delete
// ABOUTME: Status transitions are idempotent and guarded by conditional writes in the store

package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/snagbox/snagbox/internal/ids"
	"github.com/snagbox/snagbox/internal/store"
)

var (
	ErrCaptureNotFound = errors.New("capture not found")
	// ErrCaptureNotInInbox means a transition required status=inbox and the
	// capture is trashed or already processed.
	ErrCaptureNotInInbox = errors.New("capture not in inbox")
	// ErrCaptureAlreadyTrashed means a flag operation (pin, snooze) hit a
	// trashed capture.
	ErrCaptureAlreadyTrashed = errors.New("capture already trashed")
	// ErrCaptureNotInTrash means delete or restore targeted a capture that
	// is not trashed.
	ErrCaptureNotInTrash = errors.New("capture not in trash")
	ErrTaskNotFound      = errors.New("task not found")
)

// Service implements the capture and task lifecycle for one store.
type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a capture service.
func NewService(st store.Store) *Service {
	return &Service{
		store:  st,
		logger: slog.Default().With("component", "capture"),
		now:    time.Now,
		newID:  ids.ULID,
	}
}

// CreateParams carries a new capture.
type CreateParams struct {
	OrganizationID string
	CreatedByID    string
	Content        string
	Title          string
	SourceURL      string
	SourceApp      string
}

// Create stores a new capture in the inbox.
func (s *Service) Create(ctx context.Context, p CreateParams) (*store.Capture, error) {
	c := &store.Capture{
		ID:             s.newID(),
		OrganizationID: p.OrganizationID,
		CreatedByID:    p.CreatedByID,
		Content:        p.Content,
		Title:          p.Title,
		SourceURL:      p.SourceURL,
		SourceApp:      p.SourceApp,
		Status:         store.CaptureStatusInbox,
		CapturedAt:     s.now(),
	}
	if err := s.store.CreateCapture(ctx, c); err != nil {
		return nil, fmt.Errorf("creating capture: %w", err)
	}
	s.logger.Debug("capture created", "capture_id", c.ID, "org_id", p.OrganizationID)
	return c, nil
}

// Get returns a capture scoped to an organization.
func (s *Service) Get(ctx context.Context, id, orgID string) (*store.Capture, error) {
	return s.scoped(ctx, id, orgID)
}

// List returns an organization's captures for one view.
func (s *Service) List(ctx context.Context, orgID string, f store.CaptureFilter) ([]*store.Capture, error) {
	captures, err := s.store.ListCaptures(ctx, orgID, f)
	if err != nil {
		return nil, fmt.Errorf("listing captures: %w", err)
	}
	return captures, nil
}

// Trash moves a capture to the trash, clearing its pin. Trashing an
// already-trashed capture succeeds and keeps the original trashedAt.
func (s *Service) Trash(ctx context.Context, id, orgID string) (*store.Capture, error) {
	c, err := s.scoped(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if c.Status == store.CaptureStatusTrashed {
		return c, nil
	}

	ok, err := s.store.TrashCapture(ctx, id, s.now())
	if err != nil {
		return nil, fmt.Errorf("trashing capture: %w", err)
	}
	if !ok {
		// Lost a race or the capture is processed; re-read to tell which.
		return s.afterMissedTransition(ctx, id, orgID, store.CaptureStatusTrashed, ErrCaptureNotInInbox)
	}

	s.logger.Debug("capture trashed", "capture_id", id)
	return s.scoped(ctx, id, orgID)
}

// Restore moves a trashed capture back to the inbox. Restoring a capture
// already in the inbox is a no-op success.
func (s *Service) Restore(ctx context.Context, id, orgID string) (*store.Capture, error) {
	c, err := s.scoped(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if c.Status == store.CaptureStatusInbox {
		return c, nil
	}

	ok, err := s.store.RestoreCapture(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("restoring capture: %w", err)
	}
	if !ok {
		return s.afterMissedTransition(ctx, id, orgID, store.CaptureStatusInbox, ErrCaptureNotInTrash)
	}

	s.logger.Debug("capture restored", "capture_id", id)
	return s.scoped(ctx, id, orgID)
}

// Pin flags an inbox capture. Re-pinning preserves the original pinnedAt.
func (s *Service) Pin(ctx context.Context, id, orgID string) (*store.Capture, error) {
	c, err := s.scoped(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if err := requireInbox(c); err != nil {
		return nil, err
	}
	if c.PinnedAt != nil {
		return c, nil
	}

	if _, err := s.store.PinCapture(ctx, id, s.now()); err != nil {
		return nil, fmt.Errorf("pinning capture: %w", err)
	}
	return s.scoped(ctx, id, orgID)
}

// Unpin clears the pin flag; a capture that is not pinned is left alone.
func (s *Service) Unpin(ctx context.Context, id, orgID string) (*store.Capture, error) {
	if _, err := s.scoped(ctx, id, orgID); err != nil {
		return nil, err
	}
	if _, err := s.store.UnpinCapture(ctx, id); err != nil {
		return nil, fmt.Errorf("unpinning capture: %w", err)
	}
	return s.scoped(ctx, id, orgID)
}

// Snooze hides an inbox capture from the inbox view until the wake time.
// Re-snoozing moves the wake time.
func (s *Service) Snooze(ctx context.Context, id, orgID string, until time.Time) (*store.Capture, error) {
	c, err := s.scoped(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if err := requireInbox(c); err != nil {
		return nil, err
	}

	if _, err := s.store.SnoozeCapture(ctx, id, until); err != nil {
		return nil, fmt.Errorf("snoozing capture: %w", err)
	}
	return s.scoped(ctx, id, orgID)
}

// Unsnooze clears the wake time, returning the capture to the inbox view.
func (s *Service) Unsnooze(ctx context.Context, id, orgID string) (*store.Capture, error) {
	if _, err := s.scoped(ctx, id, orgID); err != nil {
		return nil, err
	}
	if _, err := s.store.UnsnoozeCapture(ctx, id); err != nil {
		return nil, fmt.Errorf("unsnoozing capture: %w", err)
	}
	return s.scoped(ctx, id, orgID)
}

// DeleteFromTrash permanently removes a trashed capture.
func (s *Service) DeleteFromTrash(ctx context.Context, id, orgID string) error {
	c, err := s.scoped(ctx, id, orgID)
	if err != nil {
		return err
	}
	if c.Status != store.CaptureStatusTrashed {
		return ErrCaptureNotInTrash
	}

	ok, err := s.store.DeleteCapture(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting capture: %w", err)
	}
	if !ok {
		// Restored or already purged between the read and the delete.
		if _, err := s.scoped(ctx, id, orgID); err != nil {
			return err
		}
		return ErrCaptureNotInTrash
	}

	s.logger.Info("capture deleted", "capture_id", id)
	return nil
}

// EmptyTrash permanently removes all trashed captures in an organization and
// returns how many went.
func (s *Service) EmptyTrash(ctx context.Context, orgID string) (int, error) {
	n, err := s.store.EmptyTrash(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("emptying trash: %w", err)
	}
	if n > 0 {
		s.logger.Info("trash emptied", "org_id", orgID, "count", n)
	}
	return n, nil
}

// scoped fetches a capture and hides it when it belongs to another
// organization.
func (s *Service) scoped(ctx context.Context, id, orgID string) (*store.Capture, error) {
	c, err := s.store.GetCapture(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCaptureNotFound
		}
		return nil, fmt.Errorf("looking up capture: %w", err)
	}
	if c.OrganizationID != orgID {
		return nil, ErrCaptureNotFound
	}
	return c, nil
}

// afterMissedTransition disambiguates a conditional update that matched no
// row: the capture may have reached the desired status concurrently (treated
// as idempotent success), vanished, or sit in a state the transition does
// not accept.
func (s *Service) afterMissedTransition(ctx context.Context, id, orgID string, want store.CaptureStatus, stateErr error) (*store.Capture, error) {
	c, err := s.scoped(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if c.Status == want {
		return c, nil
	}
	return nil, stateErr
}

// requireInbox gates flag operations on live captures.
func requireInbox(c *store.Capture) error {
	switch c.Status {
	case store.CaptureStatusInbox:
		return nil
	case store.CaptureStatusTrashed:
		return ErrCaptureAlreadyTrashed
	case store.CaptureStatusProcessed:
		return ErrCaptureNotInInbox
	default:
		return fmt.Errorf("unknown capture status %q", c.Status)
	}
}
