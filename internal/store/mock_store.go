// ABOUTME: Mock Store implementation for testing
// ABOUTME: In-memory maps with snapshot-based transaction rollback

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	txMu        sync.Mutex // serializes InTx like a single-writer database
	users       map[string]*User
	usersByMail map[string]string // email -> user ID
	orgs        map[string]*Organization
	memberships map[string]*Membership // keyed by "userID:orgID"
	sessions    map[string]*Session
	tokens      map[string]*APIToken
	credentials map[string]*Credential
	captures    map[string]*Capture
	tasks       map[string]*Task

	// FailWrites forces every mutating call to fail, for exercising
	// rollback and storage-error paths.
	FailWrites bool
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:       make(map[string]*User),
		usersByMail: make(map[string]string),
		orgs:        make(map[string]*Organization),
		memberships: make(map[string]*Membership),
		sessions:    make(map[string]*Session),
		tokens:      make(map[string]*APIToken),
		credentials: make(map[string]*Credential),
		captures:    make(map[string]*Capture),
		tasks:       make(map[string]*Task),
	}
}

func (m *MockStore) failing() error {
	if m.FailWrites {
		return fmt.Errorf("mock store: writes disabled")
	}
	return nil
}

// InTx runs fn against the same store under a write lock, snapshotting the
// maps first so an error or panic restores the pre-transaction state.
func (m *MockStore) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			m.restore(snapshot)
			panic(r)
		}
		if err != nil {
			m.restore(snapshot)
		}
	}()

	return fn(m)
}

type mockSnapshot struct {
	users       map[string]*User
	usersByMail map[string]string
	orgs        map[string]*Organization
	memberships map[string]*Membership
	captures    map[string]*Capture
	tasks       map[string]*Task
}

func (m *MockStore) snapshotLocked() *mockSnapshot {
	s := &mockSnapshot{
		users:       make(map[string]*User, len(m.users)),
		usersByMail: make(map[string]string, len(m.usersByMail)),
		orgs:        make(map[string]*Organization, len(m.orgs)),
		memberships: make(map[string]*Membership, len(m.memberships)),
		captures:    make(map[string]*Capture, len(m.captures)),
		tasks:       make(map[string]*Task, len(m.tasks)),
	}
	for k, v := range m.users {
		u := *v
		s.users[k] = &u
	}
	for k, v := range m.usersByMail {
		s.usersByMail[k] = v
	}
	for k, v := range m.orgs {
		o := *v
		s.orgs[k] = &o
	}
	for k, v := range m.memberships {
		mm := *v
		s.memberships[k] = &mm
	}
	for k, v := range m.captures {
		c := *v
		s.captures[k] = &c
	}
	for k, v := range m.tasks {
		t := *v
		s.tasks[k] = &t
	}
	return s
}

func (m *MockStore) restore(s *mockSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = s.users
	m.usersByMail = s.usersByMail
	m.orgs = s.orgs
	m.memberships = s.memberships
	m.captures = s.captures
	m.tasks = s.tasks
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error { return nil }

// ---- users / organizations / memberships ----

func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.usersByMail[user.Email]; ok {
		return fmt.Errorf("user %q: %w", user.Email, ErrDuplicate)
	}
	u := *user
	m.users[u.ID] = &u
	m.usersByMail[u.Email] = u.ID
	return nil
}

func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usersByMail[email]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *m.users[id]
	return &copied, nil
}

func (m *MockStore) CreateOrganization(ctx context.Context, org *Organization) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o := *org
	m.orgs[o.ID] = &o
	return nil
}

func (m *MockStore) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func membershipKey(userID, orgID string) string {
	return userID + ":" + orgID
}

func (m *MockStore) CreateMembership(ctx context.Context, mem *Membership) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := membershipKey(mem.UserID, mem.OrganizationID)
	if _, ok := m.memberships[key]; ok {
		return fmt.Errorf("membership: %w", ErrDuplicate)
	}
	copied := *mem
	m.memberships[key] = &copied
	return nil
}

func (m *MockStore) GetMembership(ctx context.Context, userID, orgID string) (*Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.memberships[membershipKey(userID, orgID)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *mem
	return &copied, nil
}

func (m *MockStore) ListMembershipsByUser(ctx context.Context, userID string) ([]*Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Membership
	for _, mem := range m.memberships {
		if mem.UserID == userID {
			copied := *mem
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := m.orgs[out[i].OrganizationID], m.orgs[out[j].OrganizationID]
		pi := oi != nil && oi.IsPersonalOrg
		pj := oj != nil && oj.IsPersonalOrg
		if pi != pj {
			return pi
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (m *MockStore) ListMembershipsByOrg(ctx context.Context, orgID string) ([]*Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Membership
	for _, mem := range m.memberships {
		if mem.OrganizationID == orgID {
			copied := *mem
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *MockStore) DeleteMembership(ctx context.Context, userID, orgID string) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := membershipKey(userID, orgID)
	if _, ok := m.memberships[key]; !ok {
		return ErrNotFound
	}
	delete(m.memberships, key)
	return nil
}

// ---- sessions ----

func (m *MockStore) CreateSession(ctx context.Context, session *Session) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *session
	m.sessions[s.ID] = &s
	return nil
}

func (m *MockStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *MockStore) UpdateSession(ctx context.Context, session *Session) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return ErrNotFound
	}
	s := *session
	m.sessions[s.ID] = &s
	return nil
}

func (m *MockStore) DeleteSession(ctx context.Context, id string) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MockStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// ---- api tokens ----

func (m *MockStore) CreateToken(ctx context.Context, token *APIToken) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t := *token
	m.tokens[t.ID] = &t
	return nil
}

func (m *MockStore) GetToken(ctx context.Context, id string) (*APIToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *MockStore) ListTokensByUser(ctx context.Context, userID string) ([]*APIToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*APIToken
	for _, t := range m.tokens {
		if t.UserID == userID {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStore) TouchToken(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok {
		used := at
		t.LastUsedAt = &used
	}
	return nil
}

func (m *MockStore) DeleteToken(ctx context.Context, id string) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[id]; !ok {
		return ErrNotFound
	}
	delete(m.tokens, id)
	return nil
}

// ---- credentials ----

func (m *MockStore) CreateCredential(ctx context.Context, cred *Credential) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credentials[cred.ID]; ok {
		return fmt.Errorf("credential %q: %w", cred.ID, ErrDuplicate)
	}
	c := *cred
	m.credentials[c.ID] = &c
	return nil
}

func (m *MockStore) GetCredential(ctx context.Context, id string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.credentials[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *MockStore) ListCredentialsByUser(ctx context.Context, userID string) ([]*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Credential
	for _, c := range m.credentials {
		if c.UserID == userID {
			copied := *c
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStore) UpdateCredentialCounter(ctx context.Context, id string, counter uint32, usedAt time.Time) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credentials[id]
	if !ok {
		return ErrNotFound
	}
	c.Counter = counter
	used := usedAt
	c.LastUsedAt = &used
	return nil
}

func (m *MockStore) DeleteCredential(ctx context.Context, id string) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credentials[id]; !ok {
		return ErrNotFound
	}
	delete(m.credentials, id)
	return nil
}

// ---- captures ----

func (m *MockStore) CreateCapture(ctx context.Context, c *Capture) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *c
	if copied.Status == "" {
		copied.Status = CaptureStatusInbox
	}
	m.captures[copied.ID] = &copied
	return nil
}

func (m *MockStore) GetCapture(ctx context.Context, id string) (*Capture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.captures[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *MockStore) ListCaptures(ctx context.Context, orgID string, f CaptureFilter) ([]*Capture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var out []*Capture
	for _, c := range m.captures {
		if c.OrganizationID != orgID {
			continue
		}
		switch f.View {
		case CaptureViewSnoozed:
			if c.Status != CaptureStatusInbox || c.SnoozedUntil == nil {
				continue
			}
		case CaptureViewTrashed:
			if c.Status != CaptureStatusTrashed {
				continue
			}
		case CaptureViewProcessed:
			if c.Status != CaptureStatusProcessed {
				continue
			}
		case CaptureViewInbox, "":
			if c.Status != CaptureStatusInbox {
				continue
			}
			if c.SnoozedUntil != nil && c.SnoozedUntil.After(now) {
				continue
			}
		default:
			return nil, fmt.Errorf("unknown capture view %q", f.View)
		}
		copied := *c
		out = append(out, &copied)
	}

	if f.View == CaptureViewSnoozed {
		sort.Slice(out, func(i, j int) bool { return out[i].SnoozedUntil.Before(*out[j].SnoozedUntil) })
	} else {
		sort.Slice(out, func(i, j int) bool {
			pi, pj := out[i].PinnedAt != nil, out[j].PinnedAt != nil
			if pi != pj {
				return pi
			}
			return out[i].CapturedAt.After(out[j].CapturedAt)
		})
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MockStore) TrashCapture(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok || c.Status != CaptureStatusInbox {
		return false, nil
	}
	trashed := at
	c.Status = CaptureStatusTrashed
	c.TrashedAt = &trashed
	c.PinnedAt = nil
	return true, nil
}

func (m *MockStore) ForceTrashCapture(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok {
		return false, nil
	}
	c.Status = CaptureStatusTrashed
	if c.TrashedAt == nil {
		trashed := at
		c.TrashedAt = &trashed
	}
	c.PinnedAt = nil
	return true, nil
}

func (m *MockStore) RestoreCapture(ctx context.Context, id string) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok || c.Status != CaptureStatusTrashed {
		return false, nil
	}
	c.Status = CaptureStatusInbox
	c.TrashedAt = nil
	return true, nil
}

func (m *MockStore) MarkCaptureProcessed(ctx context.Context, id, toType, toID string, at time.Time) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok || c.Status != CaptureStatusInbox {
		return false, nil
	}
	processed := at
	c.Status = CaptureStatusProcessed
	c.ProcessedAt = &processed
	c.ProcessedToType = toType
	c.ProcessedToID = toID
	return true, nil
}

func (m *MockStore) PinCapture(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok || c.Status != CaptureStatusInbox || c.PinnedAt != nil {
		return false, nil
	}
	pinned := at
	c.PinnedAt = &pinned
	return true, nil
}

func (m *MockStore) UnpinCapture(ctx context.Context, id string) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok || c.PinnedAt == nil {
		return false, nil
	}
	c.PinnedAt = nil
	return true, nil
}

func (m *MockStore) SnoozeCapture(ctx context.Context, id string, until time.Time) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok || c.Status != CaptureStatusInbox {
		return false, nil
	}
	u := until
	c.SnoozedUntil = &u
	return true, nil
}

func (m *MockStore) UnsnoozeCapture(ctx context.Context, id string) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok || c.SnoozedUntil == nil {
		return false, nil
	}
	c.SnoozedUntil = nil
	return true, nil
}

func (m *MockStore) DeleteCapture(ctx context.Context, id string) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok || c.Status != CaptureStatusTrashed {
		return false, nil
	}
	delete(m.captures, id)
	return true, nil
}

func (m *MockStore) EmptyTrash(ctx context.Context, orgID string) (int, error) {
	if err := m.failing(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, c := range m.captures {
		if c.OrganizationID == orgID && c.Status == CaptureStatusTrashed {
			delete(m.captures, id)
			n++
		}
	}
	return n, nil
}

// ---- tasks ----

func (m *MockStore) CreateTask(ctx context.Context, t *Task) error {
	if err := m.failing(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *t
	m.tasks[copied.ID] = &copied
	return nil
}

func (m *MockStore) GetTask(ctx context.Context, id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok || t.DeletedAt != nil {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (m *MockStore) ListTasks(ctx context.Context, orgID string, f TaskFilter) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Task
	for _, t := range m.tasks {
		if t.OrganizationID != orgID || t.DeletedAt != nil {
			continue
		}
		if !f.IncludeCompleted && t.CompletedAt != nil {
			continue
		}
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].PinnedAt != nil, out[j].PinnedAt != nil
		if pi != pj {
			return pi
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return strings.Compare(out[i].ID, out[j].ID) < 0
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MockStore) CompleteTask(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.DeletedAt != nil || t.CompletedAt != nil {
		return false, nil
	}
	done := at
	t.CompletedAt = &done
	return true, nil
}

func (m *MockStore) ReopenTask(ctx context.Context, id string) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.DeletedAt != nil || t.CompletedAt == nil {
		return false, nil
	}
	t.CompletedAt = nil
	return true, nil
}

func (m *MockStore) PinTask(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.DeletedAt != nil || t.PinnedAt != nil {
		return false, nil
	}
	pinned := at
	t.PinnedAt = &pinned
	return true, nil
}

func (m *MockStore) UnpinTask(ctx context.Context, id string) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.DeletedAt != nil || t.PinnedAt == nil {
		return false, nil
	}
	t.PinnedAt = nil
	return true, nil
}

func (m *MockStore) SoftDeleteTask(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := m.failing(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.DeletedAt != nil {
		return false, nil
	}
	deleted := at
	t.DeletedAt = &deleted
	return true, nil
}
