// ABOUTME: Tests for the HTTP surface: auth gating, capture flows, and status mapping
// ABOUTME: Runs the full handler stack over the in-memory mock store

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snagbox/snagbox/internal/auth"
	"github.com/snagbox/snagbox/internal/capture"
	"github.com/snagbox/snagbox/internal/challenge"
	"github.com/snagbox/snagbox/internal/dedupe"
	"github.com/snagbox/snagbox/internal/org"
	"github.com/snagbox/snagbox/internal/passkey"
	"github.com/snagbox/snagbox/internal/session"
	"github.com/snagbox/snagbox/internal/store"
	"github.com/snagbox/snagbox/internal/token"
)

// nullVerifier satisfies passkey.Verifier for routes that never reach
// ceremony verification in these tests.
type nullVerifier struct{}

func (nullVerifier) RegistrationOptions(user webauthn.User, rawChallenge []byte) (*protocol.CredentialCreation, error) {
	opts := &protocol.CredentialCreation{}
	opts.Response.Challenge = rawChallenge
	return opts, nil
}

func (nullVerifier) VerifyRegistration(user webauthn.User, rawChallenge []byte, response []byte) (*webauthn.Credential, error) {
	return &webauthn.Credential{ID: []byte("stub-cred")}, nil
}

func (nullVerifier) AuthenticationOptions(user webauthn.User, rawChallenge []byte) (*protocol.CredentialAssertion, error) {
	opts := &protocol.CredentialAssertion{}
	opts.Response.Challenge = rawChallenge
	return opts, nil
}

func (nullVerifier) VerifyAuthentication(user webauthn.User, rawChallenge []byte, response []byte) (*webauthn.Credential, error) {
	return &webauthn.Credential{ID: []byte("stub-cred")}, nil
}

type env struct {
	api      *API
	handler  http.Handler
	store    *store.MockStore
	sessions *session.Service
	orgs     *org.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st := store.NewMockStore()
	secret := []byte("0123456789abcdef0123456789abcdef")

	challenges, err := challenge.NewManager(secret)
	require.NoError(t, err)

	passkeys := passkey.NewService(st, st, challenges, nullVerifier{})
	sessions := session.NewService(st, st, session.Config{})
	tokens := token.NewService(st)
	captures := capture.NewService(st)
	orgs := org.NewService(st)
	inviter, err := org.NewInviter(orgs, secret, 0)
	require.NoError(t, err)

	captureKeys := dedupe.New(time.Hour, 100)
	t.Cleanup(captureKeys.Close)

	api := New(passkeys, sessions, tokens, captures, orgs, inviter, Config{CaptureKeys: captureKeys})
	return &env{api: api, handler: api.Handler(), store: st, sessions: sessions, orgs: orgs}
}

// user signs up an account and opens a session, returning its cookie.
func (e *env) user(t *testing.T, email string) (*org.SignupResult, *http.Cookie) {
	t.Helper()

	res, err := e.orgs.Signup(context.Background(), org.SignupParams{Email: email, DisplayName: email})
	require.NoError(t, err)

	sess, err := e.sessions.Create(context.Background(), res.User.ID)
	require.NoError(t, err)

	return res, &http.Cookie{Name: auth.SessionCookie, Value: sess.ID}
}

// do runs one request and decodes the JSON response into out when non-nil.
func (e *env) do(t *testing.T, method, path string, body any, cookie *http.Cookie, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), "body: %s", rec.Body.String())
	}
	return rec
}

func TestAPI_RequiresAuth(t *testing.T) {
	e := newEnv(t)

	for _, path := range []string{"/api/me", "/api/captures", "/api/tasks", "/api/orgs", "/api/tokens"} {
		rec := e.do(t, http.MethodGet, path, nil, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "path %s", path)
		assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
	}
}

func TestAPI_Signup(t *testing.T) {
	e := newEnv(t)

	var res signupResponse
	rec := e.do(t, http.MethodPost, "/api/signup", signupRequest{Email: "ada@example.com", DisplayName: "Ada"}, nil, &res)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.NotEmpty(t, res.OrganizationID)

	rec = e.do(t, http.MethodPost, "/api/signup", signupRequest{Email: "ada@example.com"}, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_MeAndLogout(t *testing.T) {
	e := newEnv(t)
	acct, cookie := e.user(t, "ada@example.com")

	var me meResponse
	rec := e.do(t, http.MethodGet, "/api/me", nil, cookie, &me)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, acct.User.ID, me.UserID)
	assert.Equal(t, acct.Personal.ID, me.OrganizationID)
	assert.Equal(t, "session", me.Method)

	rec = e.do(t, http.MethodPost, "/api/logout", nil, cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/me", nil, cookie, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_CaptureLifecycle(t *testing.T) {
	e := newEnv(t)
	_, cookie := e.user(t, "ada@example.com")

	var created store.Capture
	rec := e.do(t, http.MethodPost, "/api/captures", captureCreateRequest{Content: "buy milk"}, cookie, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, store.CaptureStatusInbox, created.Status)

	var listed []*store.Capture
	rec = e.do(t, http.MethodGet, "/api/captures", nil, cookie, &listed)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, listed, 1)

	// Trash, then re-trash: both succeed.
	rec = e.do(t, http.MethodPost, "/api/captures/"+created.ID+"/trash", nil, cookie, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/captures/"+created.ID+"/trash", nil, cookie, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Pinning a trashed capture is a conflict.
	rec = e.do(t, http.MethodPost, "/api/captures/"+created.ID+"/pin", nil, cookie, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Restore, process into a task, then a second process conflicts.
	rec = e.do(t, http.MethodPost, "/api/captures/"+created.ID+"/restore", nil, cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var task store.Task
	rec = e.do(t, http.MethodPost, "/api/captures/"+created.ID+"/process", processRequest{}, cookie, &task)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, created.ID, task.CaptureID)
	assert.Equal(t, "buy milk", task.Title)

	rec = e.do(t, http.MethodPost, "/api/captures/"+created.ID+"/process", processRequest{}, cookie, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Deleting the task cascades the capture into the trash.
	rec = e.do(t, http.MethodDelete, "/api/tasks/"+task.ID, nil, cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var trashed []*store.Capture
	rec = e.do(t, http.MethodGet, "/api/captures?view=trashed", nil, cookie, &trashed)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, trashed, 1)

	var emptied map[string]int
	rec = e.do(t, http.MethodPost, "/api/captures/trash/empty", nil, cookie, &emptied)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, emptied["deleted"])
}

func TestAPI_CaptureNotFoundAcrossOrgs(t *testing.T) {
	e := newEnv(t)
	_, ada := e.user(t, "ada@example.com")
	_, eve := e.user(t, "eve@example.com")

	var created store.Capture
	rec := e.do(t, http.MethodPost, "/api/captures", captureCreateRequest{Content: "secret"}, ada, &created)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/captures/"+created.ID, nil, eve, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_BearerTokenFlow(t *testing.T) {
	e := newEnv(t)
	acct, cookie := e.user(t, "ada@example.com")

	var minted tokenMintResponse
	rec := e.do(t, http.MethodPost, "/api/tokens", tokenMintRequest{Name: "cli"}, cookie, &minted)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, minted.Token)

	// The raw token authenticates without a cookie.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+minted.Token)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var me meResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, acct.User.ID, me.UserID)
	assert.Equal(t, "token", me.Method)

	// Token auth cannot switch organizations.
	req = httptest.NewRequest(http.MethodPost, "/api/orgs/switch",
		bytes.NewBufferString(`{"organization_id":"x"}`))
	req.Header.Set("Authorization", "Bearer "+minted.Token)
	w = httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Listing tokens never exposes the secret hash.
	rec = e.do(t, http.MethodGet, "/api/tokens", nil, cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "SecretHash")
	assert.NotContains(t, rec.Body.String(), "secret_hash")

	// Revoke, then the bearer path goes dark.
	rec = e.do(t, http.MethodDelete, "/api/tokens/"+minted.Record.ID, nil, cookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+minted.Token)
	w = httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_OrgSwitchAndInvites(t *testing.T) {
	e := newEnv(t)
	_, adaCookie := e.user(t, "ada@example.com")
	_, bobCookie := e.user(t, "bob@example.com")

	var created store.Organization
	rec := e.do(t, http.MethodPost, "/api/orgs", orgCreateRequest{Name: "HQ"}, adaCookie, &created)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Ada invites Bob.
	var invited map[string]string
	rec = e.do(t, http.MethodPost, "/api/orgs/"+created.ID+"/invites",
		inviteCreateRequest{Email: "bob@example.com"}, adaCookie, &invited)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, invited["invite"])

	// Bob accepts and switches into the new organization.
	rec = e.do(t, http.MethodPost, "/api/invites/accept", inviteAcceptRequest{Invite: invited["invite"]}, bobCookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var switched map[string]string
	rec = e.do(t, http.MethodPost, "/api/orgs/switch", orgSwitchRequest{OrganizationID: created.ID}, bobCookie, &switched)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, switched["organization_id"])

	var me meResponse
	rec = e.do(t, http.MethodGet, "/api/me", nil, bobCookie, &me)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, me.OrganizationID)

	// Eve is no member and cannot switch in.
	_, eveCookie := e.user(t, "eve@example.com")
	rec = e.do(t, http.MethodPost, "/api/orgs/switch", orgSwitchRequest{OrganizationID: created.ID}, eveCookie, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_PasskeyLoginFlowSetsCookie(t *testing.T) {
	e := newEnv(t)
	acct, _ := e.user(t, "ada@example.com")

	// Seed the credential the stub verifier reports.
	require.NoError(t, e.store.CreateCredential(context.Background(), &store.Credential{
		ID:     "c3R1Yi1jcmVk", // base64url("stub-cred")
		UserID: acct.User.ID,
	}))

	var begun passkey.AuthenticationOptions
	rec := e.do(t, http.MethodPost, "/api/passkeys/login/begin", loginBeginRequest{}, nil, &begun)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, begun.Challenge)

	response := fmt.Sprintf(`{"rawId":%q}`, "c3R1Yi1jcmVk")
	var finished loginFinishResponse
	rec = e.do(t, http.MethodPost, "/api/passkeys/login/finish", loginFinishRequest{
		Challenge: begun.Challenge,
		Response:  json.RawMessage(response),
	}, nil, &finished)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, acct.User.ID, finished.UserID)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	found := false
	for _, c := range cookies {
		if c.Name == auth.SessionCookie && c.Value != "" {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "login must set the session cookie")
}

func TestClassify_UnknownErrorIs500(t *testing.T) {
	status, msg := classify(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", msg)
}

func TestAPI_CaptureCreateIdempotency(t *testing.T) {
	e := newEnv(t)
	_, cookie := e.user(t, "ada@example.com")

	post := func() (*httptest.ResponseRecorder, *store.Capture) {
		body, err := json.Marshal(map[string]string{"content": "retry me"})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/captures", bytes.NewReader(body))
		req.Header.Set("Idempotency-Key", "key-123")
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		e.handler.ServeHTTP(rec, req)

		var c store.Capture
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c), "body: %s", rec.Body.String())
		return rec, &c
	}

	rec, first := post()
	require.Equal(t, http.StatusCreated, rec.Code)

	// The retry resolves to the original capture instead of creating one.
	rec, second := post()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.ID, second.ID)

	var inbox []*store.Capture
	e.do(t, http.MethodGet, "/api/captures", nil, cookie, &inbox)
	assert.Len(t, inbox, 1)
}

func TestAPI_PasskeyDeleteKeepsLastCredential(t *testing.T) {
	e := newEnv(t)
	acct, cookie := e.user(t, "ada@example.com")

	seed := func(id string) {
		require.NoError(t, e.store.CreateCredential(context.Background(), &store.Credential{
			ID: id, UserID: acct.User.ID, PublicKey: []byte{1}, Name: "Passkey",
		}))
	}
	seed("cred-1")

	// The only credential cannot be deleted.
	rec := e.do(t, http.MethodDelete, "/api/passkeys/cred-1", nil, cookie, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	seed("cred-2")
	rec = e.do(t, http.MethodDelete, "/api/passkeys/cred-1", nil, cookie, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A credential the caller does not own reads as missing.
	_, other := e.user(t, "bob@example.com")
	rec = e.do(t, http.MethodDelete, "/api/passkeys/cred-2", nil, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_LeaveCurrentOrgFallsBackToPersonal(t *testing.T) {
	e := newEnv(t)
	ada, adaCookie := e.user(t, "ada@example.com")
	_, bobCookie := e.user(t, "bob@example.com")

	var team store.Organization
	rec := e.do(t, http.MethodPost, "/api/orgs", orgCreateRequest{Name: "HQ"}, bobCookie, &team)
	require.Equal(t, http.StatusCreated, rec.Code)

	var invited map[string]string
	rec = e.do(t, http.MethodPost, "/api/orgs/"+team.ID+"/invites",
		inviteCreateRequest{Email: "ada@example.com"}, bobCookie, &invited)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/invites/accept", inviteAcceptRequest{Invite: invited["invite"]}, adaCookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/orgs/switch", orgSwitchRequest{OrganizationID: team.ID}, adaCookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Leaving the org the session points at falls back to the personal org.
	rec = e.do(t, http.MethodPost, "/api/orgs/"+team.ID+"/leave", nil, adaCookie, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var me meResponse
	rec = e.do(t, http.MethodGet, "/api/me", nil, adaCookie, &me)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ada.Personal.ID, me.OrganizationID)
}
