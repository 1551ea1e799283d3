// ABOUTME: WebAuthn ceremony verification backed by the go-webauthn library
// ABOUTME: Injects snagbox challenges into options and session data on both ceremony legs

package passkey

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/snagbox/snagbox/internal/challenge"
)

// Verifier abstracts the WebAuthn ceremony engine so the service can be
// tested without real authenticators. rawChallenge is the exact byte string
// the client is expected to have signed; response is the browser's JSON
// ceremony response, parsed and verified by the implementation.
type Verifier interface {
	RegistrationOptions(user webauthn.User, rawChallenge []byte) (*protocol.CredentialCreation, error)
	VerifyRegistration(user webauthn.User, rawChallenge []byte, response []byte) (*webauthn.Credential, error)
	// AuthenticationOptions accepts a nil user for the discoverable-credential
	// flow, producing an empty allow-list.
	AuthenticationOptions(user webauthn.User, rawChallenge []byte) (*protocol.CredentialAssertion, error)
	VerifyAuthentication(user webauthn.User, rawChallenge []byte, response []byte) (*webauthn.Credential, error)
}

// RelyingParty identifies the service that credentials are bound to.
type RelyingParty struct {
	ID      string   // rpId, usually the bare hostname
	Name    string   // human-readable service name
	Origins []string // allowed web origins
}

// DeriveRelyingParty extracts a RelyingParty from a base URL, falling back
// to localhost defaults when the URL is empty or unparseable.
func DeriveRelyingParty(name, baseURL string) RelyingParty {
	rp := RelyingParty{
		ID:      "localhost",
		Name:    name,
		Origins: []string{"http://localhost", "https://localhost"},
	}

	if baseURL == "" {
		return rp
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Hostname() == "" {
		return rp
	}

	rp.ID = parsed.Hostname()
	rp.Origins = []string{baseURL}
	if parsed.Scheme == "https" {
		rp.Origins = append(rp.Origins, "http://"+parsed.Host)
	} else {
		rp.Origins = append(rp.Origins, "https://"+parsed.Host)
	}
	return rp
}

// CeremonyVerifier implements Verifier using go-webauthn.
type CeremonyVerifier struct {
	wa *webauthn.WebAuthn
}

var _ Verifier = (*CeremonyVerifier)(nil)

// NewCeremonyVerifier creates a verifier for the given relying party.
func NewCeremonyVerifier(rp RelyingParty) (*CeremonyVerifier, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: rp.Name,
		RPID:          rp.ID,
		RPOrigins:     rp.Origins,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring webauthn: %w", err)
	}
	return &CeremonyVerifier{wa: wa}, nil
}

// RegistrationOptions produces creation options carrying the supplied
// challenge, excluding the user's already-registered authenticators.
func (v *CeremonyVerifier) RegistrationOptions(user webauthn.User, rawChallenge []byte) (*protocol.CredentialCreation, error) {
	exclusions := make([]protocol.CredentialDescriptor, 0, len(user.WebAuthnCredentials()))
	for _, cred := range user.WebAuthnCredentials() {
		exclusions = append(exclusions, cred.Descriptor())
	}

	options, _, err := v.wa.BeginRegistration(user, webauthn.WithExclusions(exclusions))
	if err != nil {
		return nil, err
	}

	// The library's own random challenge is discarded; the signed snagbox
	// challenge is authoritative and is re-derived at verification time.
	options.Response.Challenge = rawChallenge
	return options, nil
}

// VerifyRegistration parses and verifies a registration response against
// the expected challenge and returns the new credential.
func (v *CeremonyVerifier) VerifyRegistration(user webauthn.User, rawChallenge []byte, response []byte) (*webauthn.Credential, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("parsing registration response: %w", err)
	}
	return v.wa.CreateCredential(user, v.session(user.WebAuthnID(), rawChallenge), parsed)
}

// AuthenticationOptions produces assertion options carrying the supplied
// challenge. A nil user yields the discoverable-credential flow.
func (v *CeremonyVerifier) AuthenticationOptions(user webauthn.User, rawChallenge []byte) (*protocol.CredentialAssertion, error) {
	var options *protocol.CredentialAssertion
	var err error
	if user == nil {
		options, _, err = v.wa.BeginDiscoverableLogin()
	} else {
		options, _, err = v.wa.BeginLogin(user)
	}
	if err != nil {
		return nil, err
	}

	options.Response.Challenge = rawChallenge
	return options, nil
}

// VerifyAuthentication parses and verifies an assertion response for the
// credential owner. The returned credential carries the authenticator's new
// signature counter.
func (v *CeremonyVerifier) VerifyAuthentication(user webauthn.User, rawChallenge []byte, response []byte) (*webauthn.Credential, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(response))
	if err != nil {
		return nil, fmt.Errorf("parsing authentication response: %w", err)
	}
	return v.wa.ValidateLogin(user, v.session(user.WebAuthnID(), rawChallenge), parsed)
}

// session reconstructs the ceremony session from the validated challenge;
// no server-side ceremony state is kept between the two legs.
func (v *CeremonyVerifier) session(userID, rawChallenge []byte) webauthn.SessionData {
	return webauthn.SessionData{
		Challenge: base64.RawURLEncoding.EncodeToString(rawChallenge),
		UserID:    userID,
		Expires:   time.Now().Add(challenge.TTL),
	}
}
