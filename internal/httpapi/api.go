// ABOUTME: HTTP API surface wiring all snagbox services onto a ServeMux
// ABOUTME: Public routes cover signup and passkey ceremonies; everything else sits behind combined auth

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/snagbox/snagbox/internal/auth"
	"github.com/snagbox/snagbox/internal/capture"
	"github.com/snagbox/snagbox/internal/dedupe"
	"github.com/snagbox/snagbox/internal/org"
	"github.com/snagbox/snagbox/internal/passkey"
	"github.com/snagbox/snagbox/internal/session"
	"github.com/snagbox/snagbox/internal/token"
)

// API bundles the services behind the HTTP surface.
type API struct {
	passkeys *passkey.Service
	sessions *session.Service
	tokens   *token.Service
	captures *capture.Service
	orgs     *org.Service
	inviter  *org.Inviter
	logger   *slog.Logger

	// captureKeys deduplicates retried capture creates; nil disables it.
	captureKeys *dedupe.Cache

	// secureCookies marks session cookies Secure; off for local development.
	secureCookies bool
}

// Config carries API construction options.
type Config struct {
	SecureCookies bool
	// CaptureKeys is the idempotency cache for POST /api/captures. The
	// caller owns its lifecycle.
	CaptureKeys *dedupe.Cache
}

// New creates the API handler set.
func New(passkeys *passkey.Service, sessions *session.Service, tokens *token.Service,
	captures *capture.Service, orgs *org.Service, inviter *org.Inviter, cfg Config) *API {
	return &API{
		passkeys:      passkeys,
		sessions:      sessions,
		tokens:        tokens,
		captures:      captures,
		orgs:          orgs,
		inviter:       inviter,
		logger:        slog.Default().With("component", "httpapi"),
		captureKeys:   cfg.CaptureKeys,
		secureCookies: cfg.SecureCookies,
	}
}

// Handler builds the full route table. Public routes handle account and
// ceremony bootstrap; the rest requires a session cookie or bearer token.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("POST /api/signup", a.handleSignup)
	mux.HandleFunc("POST /api/passkeys/register/begin", a.handleRegisterBegin)
	mux.HandleFunc("POST /api/passkeys/register/finish", a.handleRegisterFinish)
	mux.HandleFunc("POST /api/passkeys/login/begin", a.handleLoginBegin)
	mux.HandleFunc("POST /api/passkeys/login/finish", a.handleLoginFinish)

	// Authenticated routes
	authed := http.NewServeMux()
	authed.HandleFunc("GET /api/me", a.handleMe)
	authed.HandleFunc("POST /api/logout", a.handleLogout)

	authed.HandleFunc("GET /api/passkeys", a.handlePasskeyList)
	authed.HandleFunc("DELETE /api/passkeys/{id}", a.handlePasskeyDelete)

	authed.HandleFunc("POST /api/tokens", a.handleTokenMint)
	authed.HandleFunc("GET /api/tokens", a.handleTokenList)
	authed.HandleFunc("DELETE /api/tokens/{id}", a.handleTokenRevoke)

	authed.HandleFunc("POST /api/captures", a.handleCaptureCreate)
	authed.HandleFunc("GET /api/captures", a.handleCaptureList)
	authed.HandleFunc("GET /api/captures/{id}", a.handleCaptureGet)
	authed.HandleFunc("GET /api/captures/{id}/preview", a.handleCapturePreview)
	authed.HandleFunc("POST /api/captures/{id}/trash", a.handleCaptureTrash)
	authed.HandleFunc("POST /api/captures/{id}/restore", a.handleCaptureRestore)
	authed.HandleFunc("POST /api/captures/{id}/pin", a.handleCapturePin)
	authed.HandleFunc("POST /api/captures/{id}/unpin", a.handleCaptureUnpin)
	authed.HandleFunc("POST /api/captures/{id}/snooze", a.handleCaptureSnooze)
	authed.HandleFunc("POST /api/captures/{id}/unsnooze", a.handleCaptureUnsnooze)
	authed.HandleFunc("POST /api/captures/{id}/process", a.handleCaptureProcess)
	authed.HandleFunc("DELETE /api/captures/{id}", a.handleCaptureDelete)
	authed.HandleFunc("POST /api/captures/trash/empty", a.handleEmptyTrash)

	authed.HandleFunc("GET /api/tasks", a.handleTaskList)
	authed.HandleFunc("GET /api/tasks/{id}", a.handleTaskGet)
	authed.HandleFunc("POST /api/tasks/{id}/complete", a.handleTaskComplete)
	authed.HandleFunc("POST /api/tasks/{id}/reopen", a.handleTaskReopen)
	authed.HandleFunc("POST /api/tasks/{id}/pin", a.handleTaskPin)
	authed.HandleFunc("POST /api/tasks/{id}/unpin", a.handleTaskUnpin)
	authed.HandleFunc("DELETE /api/tasks/{id}", a.handleTaskDelete)

	authed.HandleFunc("GET /api/orgs", a.handleOrgList)
	authed.HandleFunc("POST /api/orgs", a.handleOrgCreate)
	authed.HandleFunc("POST /api/orgs/switch", a.handleOrgSwitch)
	authed.HandleFunc("GET /api/orgs/{id}/members", a.handleOrgMembers)
	authed.HandleFunc("POST /api/orgs/{id}/leave", a.handleOrgLeave)
	authed.HandleFunc("DELETE /api/orgs/{id}/members/{userID}", a.handleOrgRemoveMember)
	authed.HandleFunc("POST /api/orgs/{id}/invites", a.handleInviteCreate)
	authed.HandleFunc("POST /api/invites/accept", a.handleInviteAccept)

	mux.Handle("/api/", auth.Middleware(a.sessions, a.tokens)(authed))
	return mux
}

// writeJSON writes a JSON response body with the given status.
func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

// decode reads a JSON request body into dst.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

// sessionCookie builds the session cookie for a new login.
func (a *API) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
