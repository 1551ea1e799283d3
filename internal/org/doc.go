// Package org manages accounts, organizations, and memberships.
//
// Signup creates the user, their personal organization, and the owner
// membership in one transaction; a user therefore always has at least one
// organization to land in at login. Personal organizations are single-user:
// they accept no invitations and cannot be left.
//
// Invitations are stateless signed tokens (HS256 JWTs) carrying the target
// organization, invitee email, role, and expiry. Redemption checks the
// token against the accepting user's email, so a forwarded invite link is
// useless to anyone else.
package org
