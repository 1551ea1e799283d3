// Package session manages browser sessions for snagbox.
//
// A session binds a user to their currently selected organization and lives
// for a fixed TTL. Validation applies a sliding window: any lookup inside
// the final refresh-threshold of the session's life extends the expiry by a
// full TTL and stamps lastActiveAt. The refresh write is best-effort; a
// failure is logged and the validation still succeeds.
//
// Revocation is idempotent, and an expired session is indistinguishable
// from a missing one at the HTTP boundary (both map to 401).
package session
