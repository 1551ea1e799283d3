// ABOUTME: Unit tests for the passkey service using a stub ceremony verifier
// ABOUTME: Covers challenge binding, credential persistence, and counter replay detection

package passkey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snagbox/snagbox/internal/challenge"
	"github.com/snagbox/snagbox/internal/store"
)

// stubVerifier satisfies Verifier without touching real authenticators.
type stubVerifier struct {
	failVerify bool
	credential *webauthn.Credential
}

func (v *stubVerifier) RegistrationOptions(user webauthn.User, rawChallenge []byte) (*protocol.CredentialCreation, error) {
	opts := &protocol.CredentialCreation{}
	opts.Response.Challenge = rawChallenge
	return opts, nil
}

func (v *stubVerifier) VerifyRegistration(user webauthn.User, rawChallenge []byte, response []byte) (*webauthn.Credential, error) {
	if v.failVerify {
		return nil, errors.New("attestation rejected")
	}
	return v.credential, nil
}

func (v *stubVerifier) AuthenticationOptions(user webauthn.User, rawChallenge []byte) (*protocol.CredentialAssertion, error) {
	opts := &protocol.CredentialAssertion{}
	opts.Response.Challenge = rawChallenge
	return opts, nil
}

func (v *stubVerifier) VerifyAuthentication(user webauthn.User, rawChallenge []byte, response []byte) (*webauthn.Credential, error) {
	if v.failVerify {
		return nil, errors.New("assertion rejected")
	}
	return v.credential, nil
}

type fixture struct {
	svc      *Service
	store    *store.MockStore
	verifier *stubVerifier
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &now

	mgr, err := challenge.NewManagerWithClock(
		[]byte("0123456789abcdef0123456789abcdef"),
		func() time.Time { return *clock },
	)
	require.NoError(t, err)

	st := store.NewMockStore()
	verifier := &stubVerifier{}
	svc := NewService(st, st, mgr, verifier)
	svc.now = func() time.Time { return *clock }

	require.NoError(t, st.CreateUser(context.Background(), &store.User{
		ID:          "user-1",
		Email:       "ada@example.com",
		DisplayName: "Ada",
		CreatedAt:   now,
	}))

	return &fixture{svc: svc, store: st, verifier: verifier, clock: clock}
}

func credentialIDFor(raw string) (idBytes []byte, storeID string) {
	idBytes = []byte(raw)
	return idBytes, base64.RawURLEncoding.EncodeToString(idBytes)
}

func assertionResponse(t *testing.T, rawID []byte) json.RawMessage {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"rawId": base64.RawURLEncoding.EncodeToString(rawID),
	})
	require.NoError(t, err)
	return body
}

func TestBeginRegistration_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BeginRegistration(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBeginRegistration_ReturnsValidChallenge(t *testing.T) {
	f := newFixture(t)

	opts, err := f.svc.BeginRegistration(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, opts.Options)
	assert.Equal(t, []byte(opts.Challenge), []byte(opts.Options.Response.Challenge))
}

func TestFinishRegistration_PersistsCredential(t *testing.T) {
	f := newFixture(t)
	idBytes, storeID := credentialIDFor("cred-1")
	f.verifier.credential = &webauthn.Credential{
		ID:        idBytes,
		PublicKey: []byte("public-key"),
		Flags:     webauthn.CredentialFlags{BackupEligible: true, BackupState: true},
	}

	opts, err := f.svc.BeginRegistration(context.Background(), "user-1")
	require.NoError(t, err)

	cred, err := f.svc.FinishRegistration(context.Background(), FinishRegistrationParams{
		UserID:    "user-1",
		Challenge: opts.Challenge,
		Response:  json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	assert.Equal(t, storeID, cred.ID)
	assert.Equal(t, "user-1", cred.UserID)
	assert.Equal(t, "Passkey", cred.Name)
	assert.Equal(t, "multiDevice", cred.DeviceType)
	assert.True(t, cred.BackedUp)

	saved, err := f.store.GetCredential(context.Background(), storeID)
	require.NoError(t, err)
	assert.Equal(t, []byte("public-key"), saved.PublicKey)
}

func TestFinishRegistration_ChallengeUserMismatch(t *testing.T) {
	f := newFixture(t)

	opts, err := f.svc.BeginRegistration(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = f.svc.FinishRegistration(context.Background(), FinishRegistrationParams{
		UserID:    "someone-else",
		Challenge: opts.Challenge,
		Response:  json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestFinishRegistration_ExpiredChallenge(t *testing.T) {
	f := newFixture(t)

	opts, err := f.svc.BeginRegistration(context.Background(), "user-1")
	require.NoError(t, err)

	*f.clock = f.clock.Add(challenge.TTL)

	_, err = f.svc.FinishRegistration(context.Background(), FinishRegistrationParams{
		UserID:    "user-1",
		Challenge: opts.Challenge,
		Response:  json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, challenge.ErrExpired)
}

func TestFinishRegistration_VerifierRejects(t *testing.T) {
	f := newFixture(t)
	f.verifier.failVerify = true

	opts, err := f.svc.BeginRegistration(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = f.svc.FinishRegistration(context.Background(), FinishRegistrationParams{
		UserID:    "user-1",
		Challenge: opts.Challenge,
		Response:  json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestBeginAuthentication_NoCredentials(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BeginAuthentication(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBeginAuthentication_Discoverable(t *testing.T) {
	f := newFixture(t)

	opts, err := f.svc.BeginAuthentication(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, opts.Challenge)
}

// registerCredential seeds a stored credential for authentication tests.
func registerCredential(t *testing.T, f *fixture, raw string, counter uint32) (idBytes []byte, storeID string) {
	t.Helper()
	idBytes, storeID = credentialIDFor(raw)
	require.NoError(t, f.store.CreateCredential(context.Background(), &store.Credential{
		ID:        storeID,
		UserID:    "user-1",
		PublicKey: []byte("public-key"),
		Counter:   counter,
		Name:      "Passkey",
		CreatedAt: *f.clock,
	}))
	return idBytes, storeID
}

func TestFinishAuthentication_Success(t *testing.T) {
	f := newFixture(t)
	idBytes, storeID := registerCredential(t, f, "cred-1", 5)
	f.verifier.credential = &webauthn.Credential{
		ID:            idBytes,
		Authenticator: webauthn.Authenticator{SignCount: 6},
	}

	opts, err := f.svc.BeginAuthentication(context.Background(), "")
	require.NoError(t, err)

	result, err := f.svc.FinishAuthentication(context.Background(), FinishAuthenticationParams{
		Challenge: opts.Challenge,
		Response:  assertionResponse(t, idBytes),
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", result.UserID)
	assert.Equal(t, storeID, result.CredentialID)

	saved, err := f.store.GetCredential(context.Background(), storeID)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), saved.Counter)
	require.NotNil(t, saved.LastUsedAt)
}

func TestFinishAuthentication_ZeroCountersAccepted(t *testing.T) {
	// Many authenticators never increment the counter; both sides zero is
	// not a replay.
	f := newFixture(t)
	idBytes, _ := registerCredential(t, f, "cred-1", 0)
	f.verifier.credential = &webauthn.Credential{
		ID:            idBytes,
		Authenticator: webauthn.Authenticator{SignCount: 0},
	}

	opts, err := f.svc.BeginAuthentication(context.Background(), "")
	require.NoError(t, err)

	_, err = f.svc.FinishAuthentication(context.Background(), FinishAuthenticationParams{
		Challenge: opts.Challenge,
		Response:  assertionResponse(t, idBytes),
	})
	assert.NoError(t, err)
}

func TestFinishAuthentication_CounterReplay(t *testing.T) {
	tests := []struct {
		name     string
		stored   uint32
		returned uint32
	}{
		{name: "stale counter", stored: 10, returned: 9},
		{name: "equal counter", stored: 10, returned: 10},
		{name: "zero after nonzero", stored: 10, returned: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			idBytes, storeID := registerCredential(t, f, "cred-1", tt.stored)
			f.verifier.credential = &webauthn.Credential{
				ID:            idBytes,
				Authenticator: webauthn.Authenticator{SignCount: tt.returned},
			}

			opts, err := f.svc.BeginAuthentication(context.Background(), "")
			require.NoError(t, err)

			_, err = f.svc.FinishAuthentication(context.Background(), FinishAuthenticationParams{
				Challenge: opts.Challenge,
				Response:  assertionResponse(t, idBytes),
			})
			assert.ErrorIs(t, err, ErrCounterReplay)

			// A rejected response must not advance the stored counter.
			saved, err := f.store.GetCredential(context.Background(), storeID)
			require.NoError(t, err)
			assert.Equal(t, tt.stored, saved.Counter)
		})
	}
}

func TestFinishAuthentication_UnknownCredential(t *testing.T) {
	f := newFixture(t)

	opts, err := f.svc.BeginAuthentication(context.Background(), "")
	require.NoError(t, err)

	_, err = f.svc.FinishAuthentication(context.Background(), FinishAuthenticationParams{
		Challenge: opts.Challenge,
		Response:  assertionResponse(t, []byte("ghost")),
	})
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestFinishAuthentication_VerifierRejects(t *testing.T) {
	f := newFixture(t)
	idBytes, _ := registerCredential(t, f, "cred-1", 1)
	f.verifier.failVerify = true

	opts, err := f.svc.BeginAuthentication(context.Background(), "")
	require.NoError(t, err)

	_, err = f.svc.FinishAuthentication(context.Background(), FinishAuthenticationParams{
		Challenge: opts.Challenge,
		Response:  assertionResponse(t, idBytes),
	})
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestDeleteCredential(t *testing.T) {
	f := newFixture(t)
	_, storeID := registerCredential(t, f, "cred-1", 0)

	require.NoError(t, f.svc.DeleteCredential(context.Background(), storeID))
	assert.ErrorIs(t, f.svc.DeleteCredential(context.Background(), storeID), ErrCredentialNotFound)
}

func TestCredentials_ListsByUser(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		registerCredential(t, f, fmt.Sprintf("cred-%d", i), 0)
	}

	creds, err := f.svc.Credentials(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, creds, 3)
}
