// ABOUTME: Passkey service orchestrating WebAuthn registration and authentication
// ABOUTME: Binds ceremonies to signed challenges and enforces signature-counter replay checks

package passkey

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/snagbox/snagbox/internal/challenge"
	"github.com/snagbox/snagbox/internal/store"
)

// Service errors. Challenge validation failures surface as the challenge
// package's own sentinels (challenge.ErrExpired and friends).
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrCredentialNotFound = errors.New("credential not found")
	ErrVerificationFailed = errors.New("verification failed")
	// ErrCounterReplay means the authenticator returned a signature counter
	// not greater than the stored one: a cloned or replayed credential.
	ErrCounterReplay = errors.New("signature counter replay detected")
)

// UserSource resolves users for ceremony binding.
type UserSource interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// CredentialSource persists passkey credentials.
type CredentialSource interface {
	CreateCredential(ctx context.Context, cred *store.Credential) error
	GetCredential(ctx context.Context, id string) (*store.Credential, error)
	ListCredentialsByUser(ctx context.Context, userID string) ([]*store.Credential, error)
	UpdateCredentialCounter(ctx context.Context, id string, counter uint32, usedAt time.Time) error
	DeleteCredential(ctx context.Context, id string) error
}

// defaultCredentialName is used when registration supplies no name.
const defaultCredentialName = "Passkey"

// Service runs passkey registration and authentication ceremonies.
type Service struct {
	users      UserSource
	creds      CredentialSource
	challenges *challenge.Manager
	verifier   Verifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a passkey service.
func NewService(users UserSource, creds CredentialSource, challenges *challenge.Manager, verifier Verifier) *Service {
	return &Service{
		users:      users,
		creds:      creds,
		challenges: challenges,
		verifier:   verifier,
		logger:     slog.Default().With("component", "passkey"),
		now:        time.Now,
	}
}

// RegistrationOptions is the first leg of a registration ceremony: browser
// options plus the signed challenge the client must echo back.
type RegistrationOptions struct {
	Options   *protocol.CredentialCreation `json:"options"`
	Challenge string                       `json:"challenge"`
}

// AuthenticationOptions is the first leg of an authentication ceremony.
type AuthenticationOptions struct {
	Options   *protocol.CredentialAssertion `json:"options"`
	Challenge string                        `json:"challenge"`
}

// AuthResult identifies the authenticated user after a successful ceremony.
type AuthResult struct {
	UserID       string
	CredentialID string
}

// BeginRegistration starts a registration ceremony for an existing user.
// Already-registered authenticators are excluded from the options.
func (s *Service) BeginRegistration(ctx context.Context, userID string) (*RegistrationOptions, error) {
	user, err := s.ceremonyUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	encoded, err := s.challenges.GenerateRegistration(userID)
	if err != nil {
		return nil, fmt.Errorf("generating challenge: %w", err)
	}

	options, err := s.verifier.RegistrationOptions(user, []byte(encoded))
	if err != nil {
		s.logger.Error("failed to build registration options", "error", err, "user_id", userID)
		return nil, fmt.Errorf("building registration options: %w", err)
	}

	return &RegistrationOptions{Options: options, Challenge: encoded}, nil
}

// FinishRegistrationParams carries the second leg of a registration ceremony.
type FinishRegistrationParams struct {
	UserID         string
	Challenge      string
	Response       json.RawMessage
	CredentialName string
}

// FinishRegistration validates the challenge, verifies the authenticator
// response, and persists the new credential.
func (s *Service) FinishRegistration(ctx context.Context, p FinishRegistrationParams) (*store.Credential, error) {
	payload, err := s.challenges.Validate(p.Challenge, challenge.PurposeRegistration)
	if err != nil {
		return nil, err
	}

	// A challenge issued for one user must never mint a credential for
	// another.
	if payload.UserID != p.UserID {
		return nil, fmt.Errorf("%w: challenge user mismatch", ErrVerificationFailed)
	}

	user, err := s.ceremonyUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	waCred, err := s.verifier.VerifyRegistration(user, []byte(p.Challenge), p.Response)
	if err != nil {
		s.logger.Warn("registration verification failed", "error", err, "user_id", p.UserID)
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	name := p.CredentialName
	if name == "" {
		name = defaultCredentialName
	}

	transports, err := json.Marshal(waCred.Transport)
	if err != nil {
		return nil, fmt.Errorf("encoding transports: %w", err)
	}

	deviceType := "singleDevice"
	if waCred.Flags.BackupEligible {
		deviceType = "multiDevice"
	}

	cred := &store.Credential{
		ID:         base64.RawURLEncoding.EncodeToString(waCred.ID),
		UserID:     p.UserID,
		PublicKey:  waCred.PublicKey,
		Counter:    waCred.Authenticator.SignCount,
		Transports: string(transports),
		DeviceType: deviceType,
		BackedUp:   waCred.Flags.BackupState,
		Name:       name,
		CreatedAt:  s.now(),
	}

	if err := s.creds.CreateCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("saving credential: %w", err)
	}

	s.logger.Info("passkey registered", "user_id", p.UserID, "credential_id", cred.ID)
	return cred, nil
}

// BeginAuthentication starts an authentication ceremony. With a userID the
// options carry an allow-list of that user's credentials; with an empty
// userID the client picks a discoverable credential.
func (s *Service) BeginAuthentication(ctx context.Context, userID string) (*AuthenticationOptions, error) {
	var user webauthn.User
	if userID != "" {
		cu, err := s.ceremonyUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(cu.creds) == 0 {
			return nil, fmt.Errorf("%w: no credentials registered", ErrUserNotFound)
		}
		user = cu
	}

	encoded, err := s.challenges.GenerateAuthentication(userID)
	if err != nil {
		return nil, fmt.Errorf("generating challenge: %w", err)
	}

	options, err := s.verifier.AuthenticationOptions(user, []byte(encoded))
	if err != nil {
		s.logger.Error("failed to build authentication options", "error", err)
		return nil, fmt.Errorf("building authentication options: %w", err)
	}

	return &AuthenticationOptions{Options: options, Challenge: encoded}, nil
}

// FinishAuthenticationParams carries the second leg of an authentication
// ceremony.
type FinishAuthenticationParams struct {
	Challenge string
	Response  json.RawMessage
}

// FinishAuthentication validates the challenge, resolves the credential
// named by the response, verifies the assertion, and advances the stored
// signature counter.
func (s *Service) FinishAuthentication(ctx context.Context, p FinishAuthenticationParams) (*AuthResult, error) {
	if _, err := s.challenges.Validate(p.Challenge, challenge.PurposeAuthentication); err != nil {
		return nil, err
	}

	credID, err := responseCredentialID(p.Response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	cred, err := s.creds.GetCredential(ctx, credID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("looking up credential: %w", err)
	}

	user, err := s.ceremonyUser(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}

	waCred, err := s.verifier.VerifyAuthentication(user, []byte(p.Challenge), p.Response)
	if err != nil {
		s.logger.Warn("authentication verification failed", "error", err, "credential_id", credID)
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	newCounter := waCred.Authenticator.SignCount
	if waCred.Authenticator.CloneWarning ||
		((newCounter != 0 || cred.Counter != 0) && newCounter <= cred.Counter) {
		s.logger.Error("signature counter did not advance",
			"credential_id", credID, "stored", cred.Counter, "returned", newCounter)
		return nil, ErrCounterReplay
	}

	if err := s.creds.UpdateCredentialCounter(ctx, credID, newCounter, s.now()); err != nil {
		return nil, fmt.Errorf("updating signature counter: %w", err)
	}

	s.logger.Info("passkey authentication successful", "user_id", cred.UserID, "credential_id", credID)
	return &AuthResult{UserID: cred.UserID, CredentialID: credID}, nil
}

// Credentials lists a user's registered passkeys.
func (s *Service) Credentials(ctx context.Context, userID string) ([]*store.Credential, error) {
	return s.creds.ListCredentialsByUser(ctx, userID)
}

// DeleteCredential removes a passkey unconditionally. Keeping at least one
// credential per user is the calling layer's rule, not this service's.
func (s *Service) DeleteCredential(ctx context.Context, credentialID string) error {
	if err := s.creds.DeleteCredential(ctx, credentialID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

// responseCredentialID extracts the rawId field from an assertion response
// and returns it in the store's base64url key form.
func responseCredentialID(response json.RawMessage) (string, error) {
	var probe struct {
		RawID protocol.URLEncodedBase64 `json:"rawId"`
	}
	if err := json.Unmarshal(response, &probe); err != nil {
		return "", err
	}
	if len(probe.RawID) == 0 {
		return "", errors.New("response missing rawId")
	}
	return base64.RawURLEncoding.EncodeToString(probe.RawID), nil
}

// ceremonyUser loads a user and their credentials as a webauthn.User.
func (s *Service) ceremonyUser(ctx context.Context, userID string) (*webAuthnUser, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	creds, err := s.creds.ListCredentialsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}

	return &webAuthnUser{user: user, creds: creds}, nil
}

// webAuthnUser adapts a store.User to the webauthn.User interface.
type webAuthnUser struct {
	user  *store.User
	creds []*store.Credential
}

func (u *webAuthnUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

func (u *webAuthnUser) WebAuthnName() string {
	return u.user.Email
}

func (u *webAuthnUser) WebAuthnDisplayName() string {
	if u.user.DisplayName != "" {
		return u.user.DisplayName
	}
	return u.user.Email
}

func (u *webAuthnUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, 0, len(u.creds))
	for _, c := range u.creds {
		id, err := base64.RawURLEncoding.DecodeString(c.ID)
		if err != nil {
			continue
		}
		cred := webauthn.Credential{
			ID:        id,
			PublicKey: c.PublicKey,
			Authenticator: webauthn.Authenticator{
				SignCount: c.Counter,
			},
			Flags: webauthn.CredentialFlags{
				BackupEligible: c.DeviceType == "multiDevice",
				BackupState:    c.BackedUp,
			},
		}
		if c.Transports != "" {
			var transports []protocol.AuthenticatorTransport
			_ = json.Unmarshal([]byte(c.Transports), &transports)
			cred.Transport = transports
		}
		creds = append(creds, cred)
	}
	return creds
}
