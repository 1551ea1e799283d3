// ABOUTME: Unit tests for signup, organization creation, and membership rules
// ABOUTME: Covers personal-org guards, role checks, and the last-owner rule

package org

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
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMockStore()
	return &fixture{svc: NewService(st), store: st}
}

// signup creates an account and returns the user.
func (f *fixture) signup(t *testing.T, email, name string) *SignupResult {
	t.Helper()
	res, err := f.svc.Signup(context.Background(), SignupParams{Email: email, DisplayName: name})
	require.NoError(t, err)
	return res
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.signup(t, "Ada@Example.com", "Ada")

	assert.Equal(t, "ada@example.com", res.User.Email, "email is normalized")
	assert.True(t, res.Personal.IsPersonalOrg)
	assert.Equal(t, "Ada", res.Personal.Name)

	memberships, err := f.svc.Organizations(ctx, res.User.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	assert.Equal(t, store.RoleOwner, memberships[0].Role)
	assert.Equal(t, res.Personal.ID, memberships[0].OrganizationID)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newFixture(t)

	f.signup(t, "ada@example.com", "Ada")

	_, err := f.svc.Signup(context.Background(), SignupParams{Email: "ADA@example.com", DisplayName: "Imposter"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignup_EmptyEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Signup(context.Background(), SignupParams{Email: "   "})
	assert.Error(t, err)
}

func TestCreateOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.signup(t, "ada@example.com", "Ada")

	org, err := f.svc.CreateOrganization(ctx, res.User.ID, "Snagbox HQ")
	require.NoError(t, err)
	assert.False(t, org.IsPersonalOrg)

	memberships, err := f.svc.Organizations(ctx, res.User.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	// Personal organization stays first.
	assert.Equal(t, res.Personal.ID, memberships[0].OrganizationID)
	assert.Equal(t, org.ID, memberships[1].OrganizationID)
}

func TestMembers_RequiresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.signup(t, "ada@example.com", "Ada")
	eve := f.signup(t, "eve@example.com", "Eve")

	org, err := f.svc.CreateOrganization(ctx, ada.User.ID, "HQ")
	require.NoError(t, err)

	members, err := f.svc.Members(ctx, ada.User.ID, org.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	_, err = f.svc.Members(ctx, eve.User.ID, org.ID)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestLeave_PersonalOrgForbidden(t *testing.T) {
	f := newFixture(t)
	res := f.signup(t, "ada@example.com", "Ada")

	err := f.svc.Leave(context.Background(), res.User.ID, res.Personal.ID)
	assert.ErrorIs(t, err, ErrPersonalOrg)
}

func TestLeave_LastOwnerBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.signup(t, "ada@example.com", "Ada")

	org, err := f.svc.CreateOrganization(ctx, ada.User.ID, "HQ")
	require.NoError(t, err)

	err = f.svc.Leave(ctx, ada.User.ID, org.ID)
	assert.ErrorIs(t, err, ErrLastOwner)
}

func TestLeave_AsMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.signup(t, "ada@example.com", "Ada")
	bob := f.signup(t, "bob@example.com", "Bob")

	org, err := f.svc.CreateOrganization(ctx, ada.User.ID, "HQ")
	require.NoError(t, err)
	require.NoError(t, f.store.CreateMembership(ctx, &store.Membership{
		UserID: bob.User.ID, OrganizationID: org.ID, Role: store.RoleMember, JoinedAt: time.Now(),
	}))

	require.NoError(t, f.svc.Leave(ctx, bob.User.ID, org.ID))

	_, err = f.svc.Members(ctx, bob.User.ID, org.ID)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestRemoveMember_Roles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.signup(t, "ada@example.com", "Ada")
	bob := f.signup(t, "bob@example.com", "Bob")
	eve := f.signup(t, "eve@example.com", "Eve")

	org, err := f.svc.CreateOrganization(ctx, ada.User.ID, "HQ")
	require.NoError(t, err)
	require.NoError(t, f.store.CreateMembership(ctx, &store.Membership{
		UserID: bob.User.ID, OrganizationID: org.ID, Role: store.RoleAdmin, JoinedAt: time.Now(),
	}))
	require.NoError(t, f.store.CreateMembership(ctx, &store.Membership{
		UserID: eve.User.ID, OrganizationID: org.ID, Role: store.RoleMember, JoinedAt: time.Now(),
	}))

	// A member cannot remove anyone.
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, eve.User.ID, bob.User.ID, org.ID), ErrForbidden)

	// An admin cannot remove an owner.
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, bob.User.ID, ada.User.ID, org.ID), ErrForbidden)

	// An admin removes a member.
	require.NoError(t, f.svc.RemoveMember(ctx, bob.User.ID, eve.User.ID, org.ID))

	members, err := f.svc.Members(ctx, ada.User.ID, org.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}
