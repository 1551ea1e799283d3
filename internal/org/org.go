// ABOUTME: Organization service: signup, organization creation, and membership management
// ABOUTME: Signup creates the user, their personal organization, and the owner membership atomically

package org

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/snagbox/snagbox/internal/ids"
	"github.com/snagbox/snagbox/internal/store"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
	ErrOrgNotFound  = errors.New("organization not found")
	ErrNotMember    = errors.New("not a member of organization")
	// ErrForbidden means the acting member lacks the role for the operation.
	ErrForbidden = errors.New("insufficient role")
	// ErrPersonalOrg guards operations that make no sense on a personal
	// organization: inviting into it, leaving it, removing its owner.
	ErrPersonalOrg = errors.New("operation not allowed on personal organization")
	// ErrLastOwner blocks removing or demoting an organization's only owner.
	ErrLastOwner = errors.New("organization must keep at least one owner")
)

// Service manages users, organizations, and memberships.
type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates an organization service.
func NewService(st store.Store) *Service {
	return &Service{
		store:  st,
		logger: slog.Default().With("component", "org"),
		now:    time.Now,
		newID:  ids.UUID,
	}
}

// SignupParams carries a new account.
type SignupParams struct {
	Email       string
	DisplayName string
}

// SignupResult is the freshly created account.
type SignupResult struct {
	User        *store.User
	Personal    *store.Organization
	Memberships []*store.Membership
}

// Signup creates a user together with their personal organization and owner
// membership in a single transaction. Every user always has at least the
// personal organization.
func (s *Service) Signup(ctx context.Context, p SignupParams) (*SignupResult, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	now := s.now()
	user := &store.User{
		ID:          s.newID(),
		Email:       email,
		DisplayName: p.DisplayName,
		CreatedAt:   now,
	}
	orgName := p.DisplayName
	if orgName == "" {
		orgName = email
	}
	personal := &store.Organization{
		ID:            s.newID(),
		Name:          orgName,
		IsPersonalOrg: true,
		CreatedAt:     now,
	}
	membership := &store.Membership{
		UserID:         user.ID,
		OrganizationID: personal.ID,
		Role:           store.RoleOwner,
		JoinedAt:       now,
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrEmailTaken
			}
			return fmt.Errorf("creating user: %w", err)
		}
		if err := tx.CreateOrganization(ctx, personal); err != nil {
			return fmt.Errorf("creating personal organization: %w", err)
		}
		if err := tx.CreateMembership(ctx, membership); err != nil {
			return fmt.Errorf("creating membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", "user_id", user.ID, "org_id", personal.ID)
	return &SignupResult{
		User:        user,
		Personal:    personal,
		Memberships: []*store.Membership{membership},
	}, nil
}

// CreateOrganization creates a shared organization with the caller as owner.
func (s *Service) CreateOrganization(ctx context.Context, userID, name string) (*store.Organization, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("organization name is required")
	}

	now := s.now()
	org := &store.Organization{
		ID:        s.newID(),
		Name:      name,
		CreatedAt: now,
	}
	membership := &store.Membership{
		UserID:         userID,
		OrganizationID: org.ID,
		Role:           store.RoleOwner,
		JoinedAt:       now,
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateOrganization(ctx, org); err != nil {
			return fmt.Errorf("creating organization: %w", err)
		}
		if err := tx.CreateMembership(ctx, membership); err != nil {
			return fmt.Errorf("creating membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("organization created", "org_id", org.ID, "owner", userID)
	return org, nil
}

// Organizations lists the organizations a user belongs to, personal first.
func (s *Service) Organizations(ctx context.Context, userID string) ([]*store.Membership, error) {
	return s.store.ListMembershipsByUser(ctx, userID)
}

// Members lists an organization's memberships, visible only to members.
func (s *Service) Members(ctx context.Context, actorID, orgID string) ([]*store.Membership, error) {
	if _, err := s.membership(ctx, actorID, orgID); err != nil {
		return nil, err
	}
	return s.store.ListMembershipsByOrg(ctx, orgID)
}

// Leave removes the caller from an organization. The personal organization
// cannot be left, and neither can an organization whose only owner is the
// caller.
func (s *Service) Leave(ctx context.Context, userID, orgID string) error {
	return s.removeMember(ctx, userID, userID, orgID)
}

// RemoveMember ejects another member; requires owner or admin role, and
// only owners may remove owners.
func (s *Service) RemoveMember(ctx context.Context, actorID, targetID, orgID string) error {
	if actorID == targetID {
		return s.Leave(ctx, actorID, orgID)
	}

	actor, err := s.membership(ctx, actorID, orgID)
	if err != nil {
		return err
	}
	if actor.Role != store.RoleOwner && actor.Role != store.RoleAdmin {
		return ErrForbidden
	}

	target, err := s.membership(ctx, targetID, orgID)
	if err != nil {
		return err
	}
	if target.Role == store.RoleOwner && actor.Role != store.RoleOwner {
		return ErrForbidden
	}

	return s.removeMember(ctx, actorID, targetID, orgID)
}

func (s *Service) removeMember(ctx context.Context, actorID, targetID, orgID string) error {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOrgNotFound
		}
		return fmt.Errorf("looking up organization: %w", err)
	}
	if org.IsPersonalOrg {
		return ErrPersonalOrg
	}

	target, err := s.membership(ctx, targetID, orgID)
	if err != nil {
		return err
	}

	if target.Role == store.RoleOwner {
		members, err := s.store.ListMembershipsByOrg(ctx, orgID)
		if err != nil {
			return fmt.Errorf("listing members: %w", err)
		}
		owners := 0
		for _, m := range members {
			if m.Role == store.RoleOwner {
				owners++
			}
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	if err := s.store.DeleteMembership(ctx, targetID, orgID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotMember
		}
		return fmt.Errorf("deleting membership: %w", err)
	}

	s.logger.Info("member removed", "org_id", orgID, "user_id", targetID, "actor", actorID)
	return nil
}

// membership resolves one membership, mapping absence to ErrNotMember.
func (s *Service) membership(ctx context.Context, userID, orgID string) (*store.Membership, error) {
	m, err := s.store.GetMembership(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("looking up membership: %w", err)
	}
	return m, nil
}
