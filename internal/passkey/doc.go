// Package passkey implements WebAuthn registration and authentication for
// snagbox users.
//
// # Ceremonies
//
// Both ceremonies run in two legs. The begin leg produces browser options
// together with a signed challenge from the challenge package; the finish
// leg validates that challenge, parses the authenticator response, and
// delegates cryptographic verification to a Verifier.
//
// No ceremony state is kept server-side between the legs: the challenge
// token is self-contained and the WebAuthn session data is reconstructed
// from it at verification time.
//
// # Replay protection
//
// Each successful authentication advances the credential's stored signature
// counter. A response whose counter does not strictly advance (when either
// side is non-zero) fails with ErrCounterReplay and leaves the stored
// counter untouched.
//
// # Verifier
//
// CeremonyVerifier is the production Verifier backed by go-webauthn. Tests
// substitute a stub so ceremonies can be driven without an authenticator.
package passkey
