// ABOUTME: Handlers for signup, passkey ceremonies, session login/logout, and API tokens
// ABOUTME: Login finish is the only place a session cookie is issued

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/snagbox/snagbox/internal/auth"
	"github.com/snagbox/snagbox/internal/org"
	"github.com/snagbox/snagbox/internal/passkey"
	"github.com/snagbox/snagbox/internal/store"
)

type signupRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

type signupResponse struct {
	User           userResponse `json:"user"`
	OrganizationID string       `json:"organization_id"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !a.decode(w, r, &req) {
		return
	}

	res, err := a.orgs.Signup(r.Context(), org.SignupParams{
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, signupResponse{
		User: userResponse{
			ID:          res.User.ID,
			Email:       res.User.Email,
			DisplayName: res.User.DisplayName,
		},
		OrganizationID: res.Personal.ID,
	})
}

type registerBeginRequest struct {
	UserID string `json:"user_id"`
}

func (a *API) handleRegisterBegin(w http.ResponseWriter, r *http.Request) {
	var req registerBeginRequest
	if !a.decode(w, r, &req) {
		return
	}

	opts, err := a.passkeys.BeginRegistration(r.Context(), req.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, opts)
}

type registerFinishRequest struct {
	UserID    string          `json:"user_id"`
	Challenge string          `json:"challenge"`
	Response  json.RawMessage `json:"response"`
	Name      string          `json:"name"`
}

func (a *API) handleRegisterFinish(w http.ResponseWriter, r *http.Request) {
	var req registerFinishRequest
	if !a.decode(w, r, &req) {
		return
	}

	cred, err := a.passkeys.FinishRegistration(r.Context(), passkey.FinishRegistrationParams{
		UserID:         req.UserID,
		Challenge:      req.Challenge,
		Response:       req.Response,
		CredentialName: req.Name,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, credentialResponse(cred))
}

type loginBeginRequest struct {
	UserID string `json:"user_id"`
}

func (a *API) handleLoginBegin(w http.ResponseWriter, r *http.Request) {
	var req loginBeginRequest
	if !a.decode(w, r, &req) {
		return
	}

	opts, err := a.passkeys.BeginAuthentication(r.Context(), req.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, opts)
}

type loginFinishRequest struct {
	Challenge string          `json:"challenge"`
	Response  json.RawMessage `json:"response"`
}

type loginFinishResponse struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

func (a *API) handleLoginFinish(w http.ResponseWriter, r *http.Request) {
	var req loginFinishRequest
	if !a.decode(w, r, &req) {
		return
	}

	result, err := a.passkeys.FinishAuthentication(r.Context(), passkey.FinishAuthenticationParams{
		Challenge: req.Challenge,
		Response:  req.Response,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	sess, err := a.sessions.Create(r.Context(), result.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	http.SetCookie(w, a.sessionCookie(sess.ID, maxAge))
	a.writeJSON(w, http.StatusOK, loginFinishResponse{
		UserID:         sess.UserID,
		OrganizationID: sess.CurrentOrganizationID,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())
	if ac.SessionID != "" {
		if err := a.sessions.Revoke(r.Context(), ac.SessionID); err != nil {
			a.writeError(w, err)
			return
		}
	}
	http.SetCookie(w, a.sessionCookie("", -1))
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type meResponse struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	Method         string `json:"method"`
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())
	a.writeJSON(w, http.StatusOK, meResponse{
		UserID:         ac.UserID,
		OrganizationID: ac.OrganizationID,
		Method:         string(ac.Method),
	})
}

type credentialDTO struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	DeviceType string     `json:"device_type"`
	BackedUp   bool       `json:"backed_up"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

func credentialResponse(c *store.Credential) credentialDTO {
	return credentialDTO{
		ID:         c.ID,
		Name:       c.Name,
		DeviceType: c.DeviceType,
		BackedUp:   c.BackedUp,
		CreatedAt:  c.CreatedAt,
		LastUsedAt: c.LastUsedAt,
	}
}

func (a *API) handlePasskeyList(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	creds, err := a.passkeys.Credentials(r.Context(), ac.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]credentialDTO, 0, len(creds))
	for _, c := range creds {
		out = append(out, credentialResponse(c))
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handlePasskeyDelete(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())
	id := r.PathValue("id")

	// Only the owner may delete a credential.
	creds, err := a.passkeys.Credentials(r.Context(), ac.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	owned := false
	for _, c := range creds {
		if c.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		a.writeError(w, passkey.ErrCredentialNotFound)
		return
	}

	// Deleting the last credential would lock the account out of passkey
	// login entirely.
	if len(creds) == 1 {
		a.writeJSON(w, http.StatusConflict, errorBody{Error: "cannot delete the last passkey"})
		return
	}

	if err := a.passkeys.DeleteCredential(r.Context(), id); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type tokenMintRequest struct {
	Name string `json:"name"`
}

type tokenDTO struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

type tokenMintResponse struct {
	Token  string   `json:"token"` // shown exactly once
	Record tokenDTO `json:"record"`
}

func (a *API) handleTokenMint(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	var req tokenMintRequest
	if !a.decode(w, r, &req) {
		return
	}

	res, err := a.tokens.Mint(r.Context(), ac.UserID, ac.OrganizationID, req.Name)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.writeJSON(w, http.StatusCreated, tokenMintResponse{
		Token: res.Token,
		Record: tokenDTO{
			ID:        res.Record.ID,
			Name:      res.Record.Name,
			CreatedAt: res.Record.CreatedAt,
		},
	})
}

func (a *API) handleTokenList(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	tokens, err := a.tokens.List(r.Context(), ac.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	// The secret hash never leaves the server.
	out := make([]tokenDTO, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tokenDTO{
			ID:         tok.ID,
			Name:       tok.Name,
			CreatedAt:  tok.CreatedAt,
			LastUsedAt: tok.LastUsedAt,
		})
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleTokenRevoke(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())
	id := r.PathValue("id")

	// Scope the revoke to the caller's own tokens.
	tokens, err := a.tokens.List(r.Context(), ac.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	owned := false
	for _, tok := range tokens {
		if tok.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		a.writeJSON(w, http.StatusNotFound, errorBody{Error: "token not found"})
		return
	}

	if err := a.tokens.Revoke(r.Context(), id); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
