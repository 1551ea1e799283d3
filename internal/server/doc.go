// Package server wires the snagbox services together and runs the HTTP
// server.
//
// New builds the full stack from configuration: SQLite store, challenge
// manager, WebAuthn verifier, and the passkey, session, token, capture, and
// organization services, all mounted on one mux behind /api/. Run blocks
// until the context is canceled, sweeping expired sessions hourly in the
// background, then shuts down gracefully.
package server
