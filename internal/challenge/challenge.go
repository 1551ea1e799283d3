// ABOUTME: Signed, purpose-bound, time-boxed challenges for WebAuthn ceremonies
// ABOUTME: Stateless HMAC-SHA256 tokens; validity is a function of payload and clock only

package challenge

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TTL is how long a challenge stays valid after issuance. The check is
// strict: a challenge aged exactly TTL is already expired.
const TTL = 5 * time.Minute

// nonceSize is the number of random bytes embedded per challenge.
const nonceSize = 16

// minSecretLen is the minimum HMAC secret length in bytes.
const minSecretLen = 32

// Challenge validation errors. All of them are recoverable by restarting
// the ceremony.
var (
	// ErrInvalid covers malformed encodings, truncated payloads, purpose
	// mismatches, and undecodable payloads.
	ErrInvalid = errors.New("challenge invalid")
	// ErrTampered means the HMAC did not verify: the payload was modified
	// or signed with a different secret.
	ErrTampered = errors.New("challenge tampered")
	// ErrExpired means the challenge was issued more than TTL ago.
	ErrExpired = errors.New("challenge expired")
)

// Purpose binds a challenge to the ceremony it was issued for.
type Purpose string

// Ceremony purposes.
const (
	PurposeRegistration   Purpose = "registration"
	PurposeAuthentication Purpose = "authentication"
)

// Payload is the signed content of a challenge.
type Payload struct {
	Purpose  Purpose `json:"purpose"`
	UserID   string  `json:"userId,omitempty"`
	Nonce    []byte  `json:"nonce"`
	IssuedAt int64   `json:"issuedAtMs"`
}

// Manager issues and validates signed challenges. Challenges are fully
// self-contained; the manager keeps no per-challenge state.
type Manager struct {
	secret []byte
	now    func() time.Time
}

// NewManager creates a Manager signing with the given secret. The secret
// must be at least 32 bytes.
func NewManager(secret []byte) (*Manager, error) {
	return NewManagerWithClock(secret, time.Now)
}

// NewManagerWithClock is NewManager with a substitutable clock for
// deterministic tests.
func NewManagerWithClock(secret []byte, now func() time.Time) (*Manager, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("challenge secret must be at least %d bytes, got %d", minSecretLen, len(secret))
	}
	return &Manager{secret: secret, now: now}, nil
}

// GenerateRegistration issues a challenge for a registration ceremony bound
// to the given user.
func (m *Manager) GenerateRegistration(userID string) (string, error) {
	return m.generate(PurposeRegistration, userID)
}

// GenerateAuthentication issues a challenge for an authentication ceremony.
// userID may be empty for the discoverable-credential flow.
func (m *Manager) GenerateAuthentication(userID string) (string, error) {
	return m.generate(PurposeAuthentication, userID)
}

func (m *Manager) generate(purpose Purpose, userID string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	payload := Payload{
		Purpose:  purpose,
		UserID:   userID,
		Nonce:    nonce,
		IssuedAt: m.now().UnixMilli(),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(raw) + "." +
		base64.RawURLEncoding.EncodeToString(m.sign(raw)), nil
}

// Validate decodes and verifies a challenge. On success it returns the
// payload. Failure modes, checked in order: malformed encoding or truncated
// payload (ErrInvalid), signature mismatch (ErrTampered), purpose mismatch
// (ErrInvalid), age >= TTL (ErrExpired).
func (m *Manager) Validate(encoded string, want Purpose) (*Payload, error) {
	payloadPart, sigPart, ok := strings.Cut(encoded, ".")
	if !ok {
		return nil, fmt.Errorf("%w: missing signature separator", ErrInvalid)
	}

	raw, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	// A syntactically valid but truncated payload cannot carry a nonce.
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("%w: payload too short", ErrInvalid)
	}

	if !hmac.Equal(sig, m.sign(raw)) {
		return nil, ErrTampered
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if payload.Purpose != want {
		return nil, fmt.Errorf("%w: purpose %q, want %q", ErrInvalid, payload.Purpose, want)
	}

	issued := time.UnixMilli(payload.IssuedAt)
	if m.now().Sub(issued) >= TTL {
		return nil, ErrExpired
	}

	return &payload, nil
}

func (m *Manager) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
