// Package store provides persistent storage for snagbox using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with one interface
// per entity family:
//
//   - UserStore / OrgStore: accounts, organizations, memberships
//   - SessionStore: browser sessions with sliding expiry
//   - TokenStore: API tokens (bcrypt hash at rest, never the raw secret)
//   - CredentialStore: WebAuthn passkey credentials with signature counters
//   - CaptureStore / TaskStore: the capture inbox and converted tasks
//
// SQLiteStore implements all interfaces in a single struct. MockStore is an
// in-memory equivalent for tests.
//
// # Transactions
//
// Multi-row invariants (capture->task conversion, task deletion with capture
// cascade, signup) run through InTx:
//
//	err := st.InTx(ctx, func(tx store.Tx) error {
//	    ...
//	})
//
// The callback's error rolls the transaction back and is propagated
// unchanged; a nil return commits. Panics roll back and re-panic.
//
// # Conditional transitions
//
// Capture and task state transitions are conditional UPDATEs that re-check
// the expected state in the WHERE clause and report whether a row matched.
// Callers follow a zero-row result with a read to distinguish "not found"
// from "wrong state". This is the only concurrency control the capture
// state machine needs.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite.
package store
