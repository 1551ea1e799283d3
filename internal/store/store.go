// ABOUTME: Store interfaces and data types for snagbox persistence
// ABOUTME: Defines users, organizations, sessions, credentials, captures, and tasks

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint is violated.
var ErrDuplicate = errors.New("already exists")

// User represents an account holder.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

// Organization is the tenancy boundary. Every capture and task belongs to
// exactly one organization.
type Organization struct {
	ID            string
	Name          string
	IsPersonalOrg bool
	CreatedAt     time.Time
}

// Role constants for organization memberships.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Membership links a user to an organization with a role.
type Membership struct {
	UserID         string
	OrganizationID string
	Role           string // "owner", "admin", "member"
	JoinedAt       time.Time
}

// Session represents an authenticated browser session. A user may hold many
// concurrent sessions (multi-device).
type Session struct {
	ID                    string
	UserID                string
	CurrentOrganizationID string
	CreatedAt             time.Time
	ExpiresAt             time.Time
	LastActiveAt          time.Time
}

// APIToken is the legacy bearer credential. The raw secret is handed out
// exactly once at mint time; only the bcrypt hash is persisted.
type APIToken struct {
	ID             string
	UserID         string
	OrganizationID string
	SecretHash     string
	Name           string
	CreatedAt      time.Time
	LastUsedAt     *time.Time
}

// Credential is a stored WebAuthn passkey. ID is the base64url-encoded
// credential ID reported by the authenticator.
type Credential struct {
	ID         string
	UserID     string
	PublicKey  []byte
	Counter    uint32
	Transports string // JSON array of transport hints
	DeviceType string // "singleDevice" or "multiDevice"
	BackedUp   bool
	Name       string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// CaptureStatus is the lifecycle state of a capture.
type CaptureStatus string

// Capture lifecycle states. Inbox is the initial state; trashed captures can
// be restored or physically deleted; processed is terminal.
const (
	CaptureStatusInbox     CaptureStatus = "inbox"
	CaptureStatusTrashed   CaptureStatus = "trashed"
	CaptureStatusProcessed CaptureStatus = "processed"
)

// Capture is a quick-captured note awaiting triage.
type Capture struct {
	ID              string
	OrganizationID  string
	CreatedByID     string
	Content         string
	Title           string
	SourceURL       string
	SourceApp       string
	Status          CaptureStatus
	CapturedAt      time.Time
	TrashedAt       *time.Time
	SnoozedUntil    *time.Time
	PinnedAt        *time.Time
	ProcessedAt     *time.Time
	ProcessedToType string
	ProcessedToID   string
}

// Task is an actionable item, optionally converted from a capture.
type Task struct {
	ID             string
	OrganizationID string
	CreatedByID    string
	Title          string
	CaptureID      string
	DueDate        *time.Time
	CreatedAt      time.Time
	CompletedAt    *time.Time
	PinnedAt       *time.Time
	DeletedAt      *time.Time
}

// CaptureView selects which slice of captures a list query returns.
type CaptureView string

// Capture list views. Inbox and trashed order newest-first by captured_at;
// the snoozed view orders soonest-first by snoozed_until.
const (
	CaptureViewInbox     CaptureView = "inbox"
	CaptureViewTrashed   CaptureView = "trashed"
	CaptureViewSnoozed   CaptureView = "snoozed"
	CaptureViewProcessed CaptureView = "processed"
)

// CaptureFilter narrows ListCaptures results.
type CaptureFilter struct {
	View  CaptureView
	Limit int // 0 = no limit
}

// TaskFilter narrows ListTasks results.
type TaskFilter struct {
	IncludeCompleted bool
	Limit            int
}

// UserStore defines persistence for users.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// OrgStore defines persistence for organizations and memberships.
type OrgStore interface {
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	CreateMembership(ctx context.Context, m *Membership) error
	GetMembership(ctx context.Context, userID, orgID string) (*Membership, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]*Membership, error)
	ListMembershipsByOrg(ctx context.Context, orgID string) ([]*Membership, error)
	DeleteMembership(ctx context.Context, userID, orgID string) error
}

// SessionStore defines persistence for browser sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// TokenStore defines persistence for API tokens, indexed by token ID. The
// secret is never stored; only its hash.
type TokenStore interface {
	CreateToken(ctx context.Context, token *APIToken) error
	GetToken(ctx context.Context, id string) (*APIToken, error)
	ListTokensByUser(ctx context.Context, userID string) ([]*APIToken, error)
	TouchToken(ctx context.Context, id string, at time.Time) error
	DeleteToken(ctx context.Context, id string) error
}

// CredentialStore defines persistence for passkey credentials.
type CredentialStore interface {
	CreateCredential(ctx context.Context, cred *Credential) error
	GetCredential(ctx context.Context, id string) (*Credential, error)
	ListCredentialsByUser(ctx context.Context, userID string) ([]*Credential, error)
	UpdateCredentialCounter(ctx context.Context, id string, counter uint32, usedAt time.Time) error
	DeleteCredential(ctx context.Context, id string) error
}

// CaptureStore defines persistence for captures. State-transition methods use
// conditional writes and report whether a row was updated, so callers can
// distinguish a lost race or a no-op from a hard failure with a follow-up
// read.
type CaptureStore interface {
	CreateCapture(ctx context.Context, c *Capture) error
	GetCapture(ctx context.Context, id string) (*Capture, error)
	ListCaptures(ctx context.Context, orgID string, f CaptureFilter) ([]*Capture, error)

	// TrashCapture moves an inbox capture to the trash, clearing pinned_at.
	TrashCapture(ctx context.Context, id string, at time.Time) (bool, error)
	// RestoreCapture moves a trashed capture back to the inbox.
	RestoreCapture(ctx context.Context, id string) (bool, error)
	// MarkCaptureProcessed transitions inbox -> processed. The WHERE clause
	// re-checks status so a concurrent processor loses the race cleanly.
	MarkCaptureProcessed(ctx context.Context, id, toType, toID string, at time.Time) (bool, error)
	// PinCapture sets pinned_at on an unpinned inbox capture.
	PinCapture(ctx context.Context, id string, at time.Time) (bool, error)
	UnpinCapture(ctx context.Context, id string) (bool, error)
	// SnoozeCapture sets snoozed_until on an inbox capture.
	SnoozeCapture(ctx context.Context, id string, until time.Time) (bool, error)
	UnsnoozeCapture(ctx context.Context, id string) (bool, error)
	// ForceTrashCapture trashes a capture regardless of its current status,
	// used when a task delete cascades to its source capture. An earlier
	// trashed_at is preserved.
	ForceTrashCapture(ctx context.Context, id string, at time.Time) (bool, error)
	// DeleteCapture physically removes a trashed capture.
	DeleteCapture(ctx context.Context, id string) (bool, error)
	// EmptyTrash physically removes all trashed captures in an organization.
	EmptyTrash(ctx context.Context, orgID string) (int, error)
}

// TaskStore defines persistence for tasks. Soft-deleted tasks are excluded
// from reads.
type TaskStore interface {
	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, orgID string, f TaskFilter) ([]*Task, error)
	CompleteTask(ctx context.Context, id string, at time.Time) (bool, error)
	ReopenTask(ctx context.Context, id string) (bool, error)
	PinTask(ctx context.Context, id string, at time.Time) (bool, error)
	UnpinTask(ctx context.Context, id string) (bool, error)
	SoftDeleteTask(ctx context.Context, id string, at time.Time) (bool, error)
}

// Tx is the slice of store operations available inside a transaction.
type Tx interface {
	UserStore
	OrgStore
	CaptureStore
	TaskStore
}

// Store combines all persistence interfaces with transactional execution.
type Store interface {
	UserStore
	OrgStore
	SessionStore
	TokenStore
	CredentialStore
	CaptureStore
	TaskStore

	// InTx runs fn inside a single transaction. The transaction commits when
	// fn returns nil and rolls back when fn returns an error or panics; the
	// inner error is propagated unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources held by the store.
	Close() error
}
