// ABOUTME: Combined HTTP authentication middleware: session cookie first, bearer token second
// ABOUTME: Attaches an AuthContext to the request or rejects with a generic 401

package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/snagbox/snagbox/internal/store"
)

// SessionCookie is the cookie carrying the browser session ID.
const SessionCookie = "snagbox_session"

// SessionValidator resolves a session ID to a live session.
type SessionValidator interface {
	Validate(ctx context.Context, sessionID string) (*store.Session, error)
}

// TokenValidator resolves a raw bearer token to its record.
type TokenValidator interface {
	Validate(ctx context.Context, raw string) (*store.APIToken, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Middleware authenticates requests with either credential. The session
// cookie is always tried first; a bearer token is the fallback. Rejections
// are a uniform 401 so clients cannot probe which credential failed.
func Middleware(sessions SessionValidator, tokens TokenValidator) func(http.Handler) http.Handler {
	logger := slog.Default().With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
				sess, err := sessions.Validate(r.Context(), cookie.Value)
				if err == nil {
					ac := &AuthContext{
						UserID:         sess.UserID,
						OrganizationID: sess.CurrentOrganizationID,
						Method:         MethodSession,
						SessionID:      sess.ID,
					}
					next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), ac)))
					return
				}
				logger.Debug("session auth failed", "error", err)
			}

			if raw, errMsg := extractBearerToken(r.Header.Get("Authorization")); errMsg == "" {
				rec, err := tokens.Validate(r.Context(), raw)
				if err == nil {
					ac := &AuthContext{
						UserID:         rec.UserID,
						OrganizationID: rec.OrganizationID,
						Method:         MethodToken,
					}
					next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), ac)))
					return
				}
				logger.Debug("token auth failed", "error", err)
			}

			unauthorized(w)
		})
	}
}

// unauthorized writes the generic rejection. Detail about which credential
// failed stays in the logs.
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
