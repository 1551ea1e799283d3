// Package challenge issues and validates the signed nonces that bind a
// WebAuthn ceremony to a specific invocation.
//
// A challenge is a self-contained token:
//
//	base64url(JSON(payload)) + "." + base64url(HMAC-SHA256(payload))
//
// The payload carries the ceremony purpose, an optional user ID, 16 random
// bytes, and the issuance timestamp in milliseconds. Nothing is stored
// server-side; validity is entirely a function of the signed payload and the
// current clock. Challenges expire 5 minutes after issuance.
//
// Because challenges are stateless, the manager does not enforce single use.
// The WebAuthn response itself is bound to the challenge bytes by the
// authenticator signature, which is what prevents a replayed challenge from
// producing a second valid response.
package challenge
