// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// Method records which credential authenticated the request.
type Method string

const (
	MethodSession Method = "session"
	MethodToken   Method = "token"
)

// AuthContext holds the authenticated identity extracted from a request.
// Populated by the combined middleware and retrieved from context in
// handlers.
type AuthContext struct {
	UserID         string
	OrganizationID string
	Method         Method
	// SessionID is set only for session-authenticated requests; logout
	// needs it.
	SessionID string
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// FromContext retrieves the AuthContext from the context, returning nil if
// not present.
func FromContext(ctx context.Context) *AuthContext {
	val := ctx.Value(authContextKey{})
	if val == nil {
		return nil
	}
	ac, ok := val.(*AuthContext)
	if !ok {
		return nil
	}
	return ac
}

// MustFromContext retrieves the AuthContext from the context, panicking if
// not present. Use only behind the combined middleware.
func MustFromContext(ctx context.Context) *AuthContext {
	ac := FromContext(ctx)
	if ac == nil {
		panic("auth: AuthContext not found in context")
	}
	return ac
}
