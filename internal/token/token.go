// ABOUTME: Legacy bearer token minting and validation with bcrypt-hashed secrets
// ABOUTME: Raw tokens are id:secret pairs handed out exactly once at mint time

package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/snagbox/snagbox/internal/ids"
	"github.com/snagbox/snagbox/internal/store"
)

var (
	ErrInvalidFormat = errors.New("invalid token format")
	ErrTokenNotFound = errors.New("token not found")
	ErrInvalidSecret = errors.New("invalid token secret")
)

// secretBytes of entropy per token secret, base64url-encoded on the wire.
const secretBytes = 32

// Service mints and validates API tokens. Secrets are never stored; only
// their bcrypt hash.
type Service struct {
	tokens store.TokenStore
	cost   int
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a token service.
func NewService(tokens store.TokenStore) *Service {
	return &Service{
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		logger: slog.Default().With("component", "token"),
		now:    time.Now,
		newID:  ids.UUID,
	}
}

// MintResult carries the one-time raw token alongside its stored record.
type MintResult struct {
	Token  string // "id:secret", shown exactly once
	Record *store.APIToken
}

// Mint creates a token scoped to a user and organization. The returned raw
// token cannot be recovered later.
func (s *Service) Mint(ctx context.Context, userID, orgID, name string) (*MintResult, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing secret: %w", err)
	}

	rec := &store.APIToken{
		ID:             s.newID(),
		UserID:         userID,
		OrganizationID: orgID,
		SecretHash:     string(hash),
		Name:           name,
		CreatedAt:      s.now(),
	}

	if err := s.tokens.CreateToken(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}

	s.logger.Info("token minted", "token_id", rec.ID, "user_id", userID, "org_id", orgID)
	return &MintResult{Token: rec.ID + ":" + secret, Record: rec}, nil
}

// Validate resolves a raw "id:secret" token to its record. On success the
// token's lastUsedAt is stamped asynchronously; the caller never waits on
// that write.
func (s *Service) Validate(ctx context.Context, raw string) (*store.APIToken, error) {
	id, secret, ok := strings.Cut(raw, ":")
	if !ok || id == "" || secret == "" {
		return nil, ErrInvalidFormat
	}

	rec, err := s.tokens.GetToken(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("looking up token: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.SecretHash), []byte(secret)); err != nil {
		return nil, ErrInvalidSecret
	}

	go func() {
		touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.tokens.TouchToken(touchCtx, rec.ID, s.now()); err != nil {
			s.logger.Warn("failed to stamp token usage", "error", err, "token_id", rec.ID)
		}
	}()

	return rec, nil
}

// List returns a user's tokens, hashes included for internal callers only.
func (s *Service) List(ctx context.Context, userID string) ([]*store.APIToken, error) {
	return s.tokens.ListTokensByUser(ctx, userID)
}

// Revoke deletes a token by ID.
func (s *Service) Revoke(ctx context.Context, id string) error {
	if err := s.tokens.DeleteToken(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("revoking token: %w", err)
	}
	s.logger.Info("token revoked", "token_id", id)
	return nil
}
