// ABOUTME: Handlers for organization listing, creation, switching, members, and invitations
// ABOUTME: Organization switching requires session auth; bearer tokens are pinned to one organization

package httpapi

import (
	"net/http"
	"time"

	"github.com/snagbox/snagbox/internal/auth"
	"github.com/snagbox/snagbox/internal/store"
)

type membershipDTO struct {
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Role           string    `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
}

func membershipResponse(m *store.Membership) membershipDTO {
	return membershipDTO{
		UserID:         m.UserID,
		OrganizationID: m.OrganizationID,
		Role:           m.Role,
		JoinedAt:       m.JoinedAt,
	}
}

func (a *API) handleOrgList(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	memberships, err := a.orgs.Organizations(r.Context(), ac.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]membershipDTO, 0, len(memberships))
	for _, m := range memberships {
		out = append(out, membershipResponse(m))
	}
	a.writeJSON(w, http.StatusOK, out)
}

type orgCreateRequest struct {
	Name string `json:"name"`
}

func (a *API) handleOrgCreate(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	var req orgCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "name is required"})
		return
	}

	created, err := a.orgs.CreateOrganization(r.Context(), ac.UserID, req.Name)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, created)
}

type orgSwitchRequest struct {
	OrganizationID string `json:"organization_id"`
}

func (a *API) handleOrgSwitch(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())
	if ac.Method != auth.MethodSession {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "organization switching requires a session"})
		return
	}

	var req orgSwitchRequest
	if !a.decode(w, r, &req) {
		return
	}

	sess, err := a.sessions.SwitchOrganization(r.Context(), ac.SessionID, req.OrganizationID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"organization_id": sess.CurrentOrganizationID})
}

func (a *API) handleOrgMembers(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	members, err := a.orgs.Members(r.Context(), ac.UserID, r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}

	out := make([]membershipDTO, 0, len(members))
	for _, m := range members {
		out = append(out, membershipResponse(m))
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleOrgLeave(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())
	orgID := r.PathValue("id")

	if err := a.orgs.Leave(r.Context(), ac.UserID, orgID); err != nil {
		a.writeError(w, err)
		return
	}

	// A session pointing at the departed organization falls back to the
	// user's earliest remaining membership (the personal org).
	if ac.Method == auth.MethodSession && ac.OrganizationID == orgID {
		if remaining, err := a.orgs.Organizations(r.Context(), ac.UserID); err == nil && len(remaining) > 0 {
			if _, err := a.sessions.SwitchOrganization(r.Context(), ac.SessionID, remaining[0].OrganizationID); err != nil {
				a.logger.Warn("session fallback after leave failed", "error", err)
			}
		}
	}

	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleOrgRemoveMember(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	if err := a.orgs.RemoveMember(r.Context(), ac.UserID, r.PathValue("userID"), r.PathValue("id")); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type inviteCreateRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *API) handleInviteCreate(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	var req inviteCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = store.RoleMember
	}

	token, err := a.inviter.Invite(r.Context(), ac.UserID, r.PathValue("id"), req.Email, req.Role)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]string{"invite": token})
}

type inviteAcceptRequest struct {
	Invite string `json:"invite"`
}

func (a *API) handleInviteAccept(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	var req inviteAcceptRequest
	if !a.decode(w, r, &req) {
		return
	}

	m, err := a.inviter.Accept(r.Context(), ac.UserID, req.Invite)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, membershipResponse(m))
}
