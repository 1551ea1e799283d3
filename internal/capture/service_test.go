// ABOUTME: Unit tests for capture lifecycle transitions and flag operations
// ABOUTME: Verifies idempotence, timestamp preservation, and organization scoping

package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snagbox/snagbox/internal/store"
)

type fixture struct {
	svc   *Service
	store *store.MockStore
	clock *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &now

	st := store.NewMockStore()
	svc := NewService(st)
	svc.now = func() time.Time { return *clock }

	ctx := context.Background()
	require.NoError(t, st.CreateUser(ctx, &store.User{ID: "user-1", Email: "ada@example.com", CreatedAt: now}))
	require.NoError(t, st.CreateOrganization(ctx, &store.Organization{ID: "org-1", Name: "Org", CreatedAt: now}))
	require.NoError(t, st.CreateOrganization(ctx, &store.Organization{ID: "org-2", Name: "Other", CreatedAt: now}))

	return &fixture{svc: svc, store: st, clock: clock}
}

func (f *fixture) capture(t *testing.T, content string) *store.Capture {
	t.Helper()
	c, err := f.svc.Create(context.Background(), CreateParams{
		OrganizationID: "org-1",
		CreatedByID:    "user-1",
		Content:        content,
	})
	require.NoError(t, err)
	return c
}

func TestCreate_StartsInInbox(t *testing.T) {
	f := newFixture(t)

	c := f.capture(t, "call the plumber")
	assert.Equal(t, store.CaptureStatusInbox, c.Status)
	assert.Equal(t, *f.clock, c.CapturedAt)
	assert.NotEmpty(t, c.ID)
}

func TestGet_OrgScoping(t *testing.T) {
	f := newFixture(t)
	c := f.capture(t, "x")
	ctx := context.Background()

	_, err := f.svc.Get(ctx, c.ID, "org-1")
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, c.ID, "org-2")
	assert.ErrorIs(t, err, ErrCaptureNotFound)

	_, err = f.svc.Get(ctx, "ghost", "org-1")
	assert.ErrorIs(t, err, ErrCaptureNotFound)
}

func TestTrash_IdempotentAndClearsPin(t *testing.T) {
	f := newFixture(t)
	c := f.capture(t, "x")
	ctx := context.Background()

	_, err := f.svc.Pin(ctx, c.ID, "org-1")
	require.NoError(t, err)

	got, err := f.svc.Trash(ctx, c.ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, store.CaptureStatusTrashed, got.Status)
	require.NotNil(t, got.TrashedAt)
	assert.Nil(t, got.PinnedAt)
	first := *got.TrashedAt

	// Re-trash later: success, original timestamp preserved.
	*f.clock = f.clock.Add(time.Hour)
	again, err := f.svc.Trash(ctx, c.ID, "org-1")
	require.NoError(t, err)
	require.NotNil(t, again.TrashedAt)
	assert.Equal(t, first, *again.TrashedAt)
}

func TestTrash_ProcessedCapture(t *testing.T) {
	f := newFixture(t)
	c := f.capture(t, "x")
	ctx := context.Background()

	_, err := f.svc.ProcessToTask(ctx, ProcessParams{ID: c.ID, OrganizationID: "org-1", CreatedByID: "user-1"})
	require.NoError(t, err)

	_, err = f.svc.Trash(ctx, c.ID, "org-1")
	assert.ErrorIs(t, err, ErrCaptureNotInInbox)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	c := f.capture(t, "x")
	ctx := context.Background()

	_, err := f.svc.Trash(ctx, c.ID, "org-1")
	require.NoError(t, err)

	got, err := f.svc.Restore(ctx, c.ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, store.CaptureStatusInbox, got.Status)
	assert.Nil(t, got.TrashedAt)

	// Restoring an inbox capture is a no-op success.
	again, err := f.svc.Restore(ctx, c.ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, store.CaptureStatusInbox, again.Status)
}

func TestRestore_ProcessedCapture(t *testing.T) {
	f := newFixture(t)
	c := f.capture(t, "x")
	ctx := context.Background()

	_, err := f.svc.ProcessToTask(ctx, ProcessParams{ID: c.ID, OrganizationID: "org-1", CreatedByID: "user-1"})
	require.NoError(t, err)

	_, err = f.svc.Restore(ctx, c.ID, "org-1")
	assert.ErrorIs(t, err, ErrCaptureNotInTrash)
}

func TestPin_PreservesOriginalTimestamp(t *testing.T) {
	f := newFixture(t)
	c := f.capture(t, "x")
	ctx := context.Background()

	got, err := f.svc.Pin(ctx, c.ID, "org-1")
	require.NoError(t, err)
	require.NotNil(t, got.PinnedAt)
	first := *got.PinnedAt

	*f.clock = f.clock.Add(time.Hour)
	again, err := f.svc.Pin(ctx, c.ID, "org-1")
	require.NoError(t, err)
	require.NotNil(t, again.PinnedAt)
	assert.Equal(t, first, *again.PinnedAt)
}

func TestPin_TrashedCapture(t *testing.T) {
	f := newFixture(t)
	c := f.capture(t, "x")
	ctx := context.Background()

	_, err := f.svc.Trash(ctx, c.ID, "org-1")
	require.NoError(t, err)

	_, err = f.svc.Pin(ctx, c.ID, "org-1")
	assert.ErrorIs(t, err, ErrCaptureAlreadyTrashed)
}

func TestUnpin_Idempotent(t *testing.T) {
	f := newFixture(t)
	c := f.capture(t, "x")
	ctx := context.Background()

	_, err := f.svc.Pin(ctx, c.ID, "org-1")
	require.NoError(t, err)

	got, err := f.svc.Unpin(ctx, c.ID, "org-1")
	require.NoError(t, err)
	assert.Nil(t, got.PinnedAt)

	_, err = f.svc.Unpin(ctx, c.ID, "org-1")
	assert.NoError(t, err)
}

func TestSnooze(t *testing.T) {
	f := newFixture(t)
	c := f.capture(t, "x")
	ctx := context.Background()

	wake := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	got, err := f.svc.Snooze(ctx, c.ID, "org-1", wake)
	require.NoError(t, err)
	require.NotNil(t, got.SnoozedUntil)
	assert.Equal(t, wake, got.SnoozedUntil.UTC())

	// A future-snoozed capture leaves the inbox view but stays in snoozed.
	inbox, err := f.svc.List(ctx, "org-1", store.CaptureFilter{View: store.CaptureViewInbox})
	require.NoError(t, err)
	assert.Empty(t, inbox)

	snoozed, err := f.svc.List(ctx, "org-1", store.CaptureFilter{View: store.CaptureViewSnoozed})
	require.NoError(t, err)
	assert.Len(t, snoozed, 1)

	got, err = f.svc.Unsnooze(ctx, c.ID, "org-1")
	require.NoError(t, err)
	assert.Nil(t, got.SnoozedUntil)
}

func TestSnooze_TrashedCapture(t *testing.T) {
	f := newFixture(t)
	c := f.capture(t, "x")
	ctx := context.Background()

	_, err := f.svc.Trash(ctx, c.ID, "org-1")
	require.NoError(t, err)

	_, err = f.svc.Snooze(ctx, c.ID, "org-1", f.clock.Add(time.Hour))
	assert.ErrorIs(t, err, ErrCaptureAlreadyTrashed)
}

func TestDeleteFromTrash(t *testing.T) {
	f := newFixture(t)
	c := f.capture(t, "x")
	ctx := context.Background()

	// Only trashed captures can be deleted.
	err := f.svc.DeleteFromTrash(ctx, c.ID, "org-1")
	assert.ErrorIs(t, err, ErrCaptureNotInTrash)

	_, err = f.svc.Trash(ctx, c.ID, "org-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteFromTrash(ctx, c.ID, "org-1"))

	_, err = f.svc.Get(ctx, c.ID, "org-1")
	assert.ErrorIs(t, err, ErrCaptureNotFound)
}

func TestEmptyTrash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	kept := f.capture(t, "keep me")
	for i := 0; i < 3; i++ {
		c := f.capture(t, "junk")
		_, err := f.svc.Trash(ctx, c.ID, "org-1")
		require.NoError(t, err)
	}

	n, err := f.svc.EmptyTrash(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = f.svc.Get(ctx, kept.ID, "org-1")
	assert.NoError(t, err)

	trashed, err := f.svc.List(ctx, "org-1", store.CaptureFilter{View: store.CaptureViewTrashed})
	require.NoError(t, err)
	assert.Empty(t, trashed)
}
