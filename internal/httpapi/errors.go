// ABOUTME: Maps service error sentinels onto HTTP statuses and JSON error bodies
// ABOUTME: Credential failures collapse to a generic 401; business rules keep specific messages

package httpapi

import (
	"errors"
	"net/http"

	"github.com/snagbox/snagbox/internal/capture"
	"github.com/snagbox/snagbox/internal/challenge"
	"github.com/snagbox/snagbox/internal/org"
	"github.com/snagbox/snagbox/internal/passkey"
	"github.com/snagbox/snagbox/internal/session"
	"github.com/snagbox/snagbox/internal/token"
)

type errorBody struct {
	Error string `json:"error"`
}

// writeError translates a service error into an HTTP response. Every
// sentinel the services export is matched here; anything unmatched is a 500
// with the detail kept in the logs.
func (a *API) writeError(w http.ResponseWriter, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "error", err)
	}
	a.writeJSON(w, status, errorBody{Error: msg})
}

func classify(err error) (int, string) {
	switch {
	// Ceremony failures: the client restarts the ceremony.
	case errors.Is(err, challenge.ErrExpired):
		return http.StatusBadRequest, "challenge expired"
	case errors.Is(err, challenge.ErrTampered):
		return http.StatusBadRequest, "challenge tampered"
	case errors.Is(err, challenge.ErrInvalid):
		return http.StatusBadRequest, "challenge invalid"

	case errors.Is(err, passkey.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, passkey.ErrCredentialNotFound):
		return http.StatusNotFound, "credential not found"
	case errors.Is(err, passkey.ErrVerificationFailed),
		errors.Is(err, passkey.ErrCounterReplay):
		return http.StatusUnauthorized, "verification failed"

	// Credential errors are indistinguishable on the wire.
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrSessionExpired),
		errors.Is(err, token.ErrInvalidFormat),
		errors.Is(err, token.ErrTokenNotFound),
		errors.Is(err, token.ErrInvalidSecret):
		return http.StatusUnauthorized, "unauthorized"

	case errors.Is(err, capture.ErrCaptureNotFound):
		return http.StatusNotFound, "capture not found"
	case errors.Is(err, capture.ErrTaskNotFound):
		return http.StatusNotFound, "task not found"
	case errors.Is(err, capture.ErrCaptureNotInInbox):
		return http.StatusConflict, "capture not in inbox"
	case errors.Is(err, capture.ErrCaptureAlreadyTrashed):
		return http.StatusConflict, "capture already trashed"
	case errors.Is(err, capture.ErrCaptureNotInTrash):
		return http.StatusConflict, "capture not in trash"

	case errors.Is(err, org.ErrEmailTaken):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, org.ErrOrgNotFound):
		return http.StatusNotFound, "organization not found"
	case errors.Is(err, org.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, org.ErrNotMember), errors.Is(err, session.ErrNotMember):
		return http.StatusForbidden, "not a member of organization"
	case errors.Is(err, org.ErrForbidden):
		return http.StatusForbidden, "insufficient role"
	case errors.Is(err, org.ErrPersonalOrg):
		return http.StatusConflict, "operation not allowed on personal organization"
	case errors.Is(err, org.ErrLastOwner):
		return http.StatusConflict, "organization must keep at least one owner"
	case errors.Is(err, org.ErrInviteExpired):
		return http.StatusBadRequest, "invitation expired"
	case errors.Is(err, org.ErrInviteInvalid):
		return http.StatusBadRequest, "invalid invitation"

	default:
		return http.StatusInternalServerError, "internal error"
	}
}
