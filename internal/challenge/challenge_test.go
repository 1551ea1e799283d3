// ABOUTME: Unit tests for challenge generation and validation
// ABOUTME: Covers round-trips, uniqueness, TTL boundaries, and tamper detection

package challenge

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManagerWithClock(testSecret, now)
	if err != nil {
		t.Fatalf("NewManagerWithClock() error = %v", err)
	}
	return m
}

func TestNewManager_ShortSecret(t *testing.T) {
	if _, err := NewManager([]byte("too-short")); err == nil {
		t.Error("NewManager() should reject secrets under 32 bytes")
	}
}

func TestChallenge_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		purpose Purpose
	}{
		{name: "registration with user", userID: "user-1", purpose: PurposeRegistration},
		{name: "authentication with user", userID: "user-1", purpose: PurposeAuthentication},
		{name: "authentication discoverable", userID: "", purpose: PurposeAuthentication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, time.Now)

			var encoded string
			var err error
			if tt.purpose == PurposeRegistration {
				encoded, err = m.GenerateRegistration(tt.userID)
			} else {
				encoded, err = m.GenerateAuthentication(tt.userID)
			}
			if err != nil {
				t.Fatalf("generate error = %v", err)
			}

			payload, err := m.Validate(encoded, tt.purpose)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if payload.UserID != tt.userID {
				t.Errorf("payload.UserID = %q, want %q", payload.UserID, tt.userID)
			}
			if payload.Purpose != tt.purpose {
				t.Errorf("payload.Purpose = %q, want %q", payload.Purpose, tt.purpose)
			}
		})
	}
}

func TestChallenge_UniqueWithFrozenClock(t *testing.T) {
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newTestManager(t, func() time.Time { return frozen })

	a, err := m.GenerateRegistration("user-1")
	if err != nil {
		t.Fatalf("GenerateRegistration() error = %v", err)
	}
	b, err := m.GenerateRegistration("user-1")
	if err != nil {
		t.Fatalf("GenerateRegistration() error = %v", err)
	}

	if a == b {
		t.Error("two challenges with identical inputs must differ")
	}
}

func TestChallenge_TTLBoundary(t *testing.T) {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := issued
	m := newTestManager(t, func() time.Time { return now })

	encoded, err := m.GenerateRegistration("user-1")
	if err != nil {
		t.Fatalf("GenerateRegistration() error = %v", err)
	}

	// 4m59s after issuance: still valid.
	now = issued.Add(299 * time.Second)
	if _, err := m.Validate(encoded, PurposeRegistration); err != nil {
		t.Errorf("Validate() at 4m59s error = %v, want nil", err)
	}

	// Exactly 5m: expired.
	now = issued.Add(300 * time.Second)
	if _, err := m.Validate(encoded, PurposeRegistration); !errors.Is(err, ErrExpired) {
		t.Errorf("Validate() at 5m error = %v, want ErrExpired", err)
	}

	// Well past: still expired.
	now = issued.Add(time.Hour)
	if _, err := m.Validate(encoded, PurposeRegistration); !errors.Is(err, ErrExpired) {
		t.Errorf("Validate() at 1h error = %v, want ErrExpired", err)
	}
}

func TestChallenge_PurposeMismatch(t *testing.T) {
	m := newTestManager(t, time.Now)

	encoded, err := m.GenerateRegistration("user-1")
	if err != nil {
		t.Fatalf("GenerateRegistration() error = %v", err)
	}

	if _, err := m.Validate(encoded, PurposeAuthentication); !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate() with wrong purpose error = %v, want ErrInvalid", err)
	}
}

func TestChallenge_Malformed(t *testing.T) {
	m := newTestManager(t, time.Now)

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "no separator", encoded: "abcdef"},
		{name: "bad base64 payload", encoded: "!!!.abcd"},
		{name: "bad base64 signature", encoded: "abcd.!!!"},
		{name: "short payload", encoded: "YWJj.YWJj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Validate(tt.encoded, PurposeRegistration); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate(%q) error = %v, want ErrInvalid", tt.encoded, err)
			}
		})
	}
}

func TestChallenge_TamperDetection(t *testing.T) {
	m := newTestManager(t, time.Now)

	encoded, err := m.GenerateRegistration("user-1")
	if err != nil {
		t.Fatalf("GenerateRegistration() error = %v", err)
	}

	// Replace each character with one outside the base64url alphabet; every
	// mutation must fail, never succeed.
	for i := 0; i < len(encoded); i++ {
		mutated := encoded[:i] + "*" + encoded[i+1:]
		_, err := m.Validate(mutated, PurposeRegistration)
		if !errors.Is(err, ErrTampered) && !errors.Is(err, ErrInvalid) {
			t.Fatalf("Validate() with flip at %d error = %v, want ErrTampered or ErrInvalid", i, err)
		}
	}

	// Flip a byte inside the signed payload and re-encode: the HMAC must
	// catch it.
	payloadPart, sigPart, _ := strings.Cut(encoded, ".")
	raw, err := base64.RawURLEncoding.DecodeString(payloadPart)
	if err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	raw[0] ^= 0x01
	mutated := base64.RawURLEncoding.EncodeToString(raw) + "." + sigPart
	if _, err := m.Validate(mutated, PurposeRegistration); !errors.Is(err, ErrTampered) {
		t.Errorf("Validate() with mutated payload error = %v, want ErrTampered", err)
	}
}

func TestChallenge_DifferentSecret(t *testing.T) {
	m := newTestManager(t, time.Now)
	other, err := NewManager([]byte(strings.Repeat("x", 32)))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	encoded, err := other.GenerateRegistration("user-1")
	if err != nil {
		t.Fatalf("GenerateRegistration() error = %v", err)
	}

	if _, err := m.Validate(encoded, PurposeRegistration); !errors.Is(err, ErrTampered) {
		t.Errorf("Validate() with foreign secret error = %v, want ErrTampered", err)
	}
}
