// ABOUTME: Organization invitations as signed, time-boxed JWTs
// ABOUTME: Issuance requires owner/admin role; acceptance binds the token to the invitee's email

package org

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/snagbox/snagbox/internal/store"
)

var (
	ErrInviteInvalid = errors.New("invalid invitation")
	ErrInviteExpired = errors.New("invitation expired")
)

// DefaultInviteTTL is how long an invitation token stays redeemable.
const DefaultInviteTTL = 7 * 24 * time.Hour

// Inviter issues and redeems invitation tokens for a Service.
type Inviter struct {
	svc    *Service
	secret []byte
	ttl    time.Duration
}

// NewInviter wires invitation handling onto an organization service. The
// secret signs invite tokens and must survive restarts for outstanding
// invites to stay valid.
func NewInviter(svc *Service, secret []byte, ttl time.Duration) (*Inviter, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("invite secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	return &Inviter{svc: svc, secret: secret, ttl: ttl}, nil
}

// Invite issues a signed invitation for an email address to join an
// organization with the given role. Only owners and admins may invite, and
// only owners may grant the owner role. Personal organizations accept no
// invitations.
func (i *Inviter) Invite(ctx context.Context, actorID, orgID, email, role string) (string, error) {
	switch role {
	case store.RoleOwner, store.RoleAdmin, store.RoleMember:
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}

	org, err := i.svc.store.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrOrgNotFound
		}
		return "", fmt.Errorf("looking up organization: %w", err)
	}
	if org.IsPersonalOrg {
		return "", ErrPersonalOrg
	}

	actor, err := i.svc.membership(ctx, actorID, orgID)
	if err != nil {
		return "", err
	}
	if actor.Role != store.RoleOwner && actor.Role != store.RoleAdmin {
		return "", ErrForbidden
	}
	if role == store.RoleOwner && actor.Role != store.RoleOwner {
		return "", ErrForbidden
	}

	now := i.svc.now()
	claims := jwt.MapClaims{
		"org":   orgID,
		"email": strings.ToLower(strings.TrimSpace(email)),
		"role":  role,
		"iat":   now.Unix(),
		"exp":   now.Add(i.ttl).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing invitation: %w", err)
	}

	i.svc.logger.Info("invitation issued", "org_id", orgID, "actor", actorID, "role", role)
	return signed, nil
}

// Accept redeems an invitation for a user. The user's email must match the
// one the invitation was issued to. Accepting an invitation to an
// organization the user already belongs to succeeds without changing the
// existing membership.
func (i *Inviter) Accept(ctx context.Context, userID, tokenString string) (*store.Membership, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrInviteExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInviteInvalid, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInviteInvalid
	}
	orgID, _ := claims["org"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if orgID == "" || email == "" || role == "" {
		return nil, ErrInviteInvalid
	}

	user, err := i.svc.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !strings.EqualFold(user.Email, email) {
		return nil, fmt.Errorf("%w: issued for a different address", ErrInviteInvalid)
	}

	membership := &store.Membership{
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		JoinedAt:       i.svc.now(),
	}
	if err := i.svc.store.CreateMembership(ctx, membership); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return i.svc.membership(ctx, userID, orgID)
		}
		return nil, fmt.Errorf("creating membership: %w", err)
	}

	i.svc.logger.Info("invitation accepted", "org_id", orgID, "user_id", userID, "role", role)
	return membership, nil
}
