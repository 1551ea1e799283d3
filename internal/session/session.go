// ABOUTME: Browser session lifecycle: creation, sliding-window refresh, revocation
// ABOUTME: Resolves sessions to a user plus their currently selected organization

package session

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
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	// ErrNotMember means the user has no membership in the requested
	// organization (or no memberships at all).
	ErrNotMember = errors.New("not a member of organization")
)

// Default lifetimes. A session lives a week; any request seen in its final
// day slides the window forward.
const (
	DefaultTTL              = 7 * 24 * time.Hour
	DefaultRefreshThreshold = 24 * time.Hour
)

// MembershipSource resolves which organizations a user belongs to.
type MembershipSource interface {
	GetMembership(ctx context.Context, userID, orgID string) (*store.Membership, error)
	ListMembershipsByUser(ctx context.Context, userID string) ([]*store.Membership, error)
}

// Config controls session lifetimes. Zero values take the defaults.
type Config struct {
	TTL              time.Duration
	RefreshThreshold time.Duration
}

// Service creates, validates, and revokes browser sessions.
type Service struct {
	sessions    store.SessionStore
	memberships MembershipSource
	ttl         time.Duration
	threshold   time.Duration
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// NewService creates a session service.
func NewService(sessions store.SessionStore, memberships MembershipSource, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = DefaultRefreshThreshold
	}
	return &Service{
		sessions:    sessions,
		memberships: memberships,
		ttl:         cfg.TTL,
		threshold:   cfg.RefreshThreshold,
		logger:      slog.Default().With("component", "session"),
		now:         time.Now,
		newID:       ids.ULID,
	}
}

// Create opens a new session for a user. The session starts in the user's
// personal organization; users always have one from signup.
func (s *Service) Create(ctx context.Context, userID string) (*store.Session, error) {
	memberships, err := s.memberships.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving memberships: %w", err)
	}
	if len(memberships) == 0 {
		return nil, fmt.Errorf("%w: user %s has no organizations", ErrNotMember, userID)
	}

	now := s.now()
	sess := &store.Session{
		ID:                    s.newID(),
		UserID:                userID,
		CurrentOrganizationID: memberships[0].OrganizationID,
		CreatedAt:             now,
		ExpiresAt:             now.Add(s.ttl),
		LastActiveAt:          now,
	}

	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Info("session created", "session_id", sess.ID, "user_id", userID)
	return sess, nil
}

// Validate resolves a session ID to a live session. Sessions seen within
// the refresh threshold of expiry are extended by a full TTL; the refresh is
// opportunistic and a failed write never fails validation.
func (s *Service) Validate(ctx context.Context, sessionID string) (*store.Session, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	now := s.now()
	if now.After(sess.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	if sess.ExpiresAt.Sub(now) < s.threshold {
		sess.ExpiresAt = now.Add(s.ttl)
		sess.LastActiveAt = now
		if err := s.sessions.UpdateSession(ctx, sess); err != nil {
			s.logger.Warn("session refresh failed", "error", err, "session_id", sessionID)
		} else {
			s.logger.Debug("session refreshed", "session_id", sessionID, "expires_at", sess.ExpiresAt)
		}
	}

	return sess, nil
}

// Revoke deletes a session. Revoking a session that no longer exists is not
// an error.
func (s *Service) Revoke(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	s.logger.Info("session revoked", "session_id", sessionID)
	return nil
}

// SwitchOrganization repoints a session at another organization the user
// belongs to.
func (s *Service) SwitchOrganization(ctx context.Context, sessionID, orgID string) (*store.Session, error) {
	sess, err := s.Validate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.memberships.GetMembership(ctx, sess.UserID, orgID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: organization %s", ErrNotMember, orgID)
		}
		return nil, fmt.Errorf("checking membership: %w", err)
	}

	sess.CurrentOrganizationID = orgID
	if err := s.sessions.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("switching organization: %w", err)
	}

	s.logger.Info("session switched organization", "session_id", sessionID, "org_id", orgID)
	return sess, nil
}

// PurgeExpired deletes all sessions past their expiry. Meant for a periodic
// background sweep.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("purged expired sessions", "count", n)
	}
	return n, nil
}
