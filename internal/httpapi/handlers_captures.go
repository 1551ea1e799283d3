// ABOUTME: Handlers for capture lifecycle, capture views, and task operations
// ABOUTME: Every operation is scoped to the authenticated organization

package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/snagbox/snagbox/internal/auth"
	"github.com/snagbox/snagbox/internal/capture"
	"github.com/snagbox/snagbox/internal/store"
)

type captureCreateRequest struct {
	Content   string `json:"content"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
	SourceApp string `json:"source_app"`
}

func (a *API) handleCaptureCreate(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	var req captureCreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Content == "" {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "content is required"})
		return
	}

	// A retried submission with the same Idempotency-Key returns the capture
	// the first attempt created.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && a.captureKeys != nil {
		if id, ok := a.captureKeys.Lookup(ac.OrganizationID + "\x00" + idemKey); ok {
			if c, err := a.captures.Get(r.Context(), id, ac.OrganizationID); err == nil {
				a.writeJSON(w, http.StatusOK, c)
				return
			}
		}
	}

	c, err := a.captures.Create(r.Context(), capture.CreateParams{
		OrganizationID: ac.OrganizationID,
		CreatedByID:    ac.UserID,
		Content:        req.Content,
		Title:          req.Title,
		SourceURL:      req.SourceURL,
		SourceApp:      req.SourceApp,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	if idemKey != "" && a.captureKeys != nil {
		a.captureKeys.Remember(ac.OrganizationID+"\x00"+idemKey, c.ID)
	}
	a.writeJSON(w, http.StatusCreated, c)
}

func (a *API) handleCaptureList(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	view := store.CaptureView(r.URL.Query().Get("view"))
	if view == "" {
		view = store.CaptureViewInbox
	}
	switch view {
	case store.CaptureViewInbox, store.CaptureViewTrashed, store.CaptureViewSnoozed, store.CaptureViewProcessed:
	default:
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown view"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid limit"})
			return
		}
		limit = n
	}

	captures, err := a.captures.List(r.Context(), ac.OrganizationID, store.CaptureFilter{View: view, Limit: limit})
	if err != nil {
		a.writeError(w, err)
		return
	}
	if captures == nil {
		captures = []*store.Capture{}
	}
	a.writeJSON(w, http.StatusOK, captures)
}

func (a *API) handleCaptureGet(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	c, err := a.captures.Get(r.Context(), r.PathValue("id"), ac.OrganizationID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, c)
}

func (a *API) handleCapturePreview(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	html, err := a.captures.Preview(r.Context(), r.PathValue("id"), ac.OrganizationID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"html": html})
}

// captureTransition runs one lifecycle transition and writes the updated
// capture.
func (a *API) captureTransition(w http.ResponseWriter, r *http.Request,
	fn func(r *http.Request, id, orgID string) (*store.Capture, error)) {
	ac := auth.MustFromContext(r.Context())

	c, err := fn(r, r.PathValue("id"), ac.OrganizationID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, c)
}

func (a *API) handleCaptureTrash(w http.ResponseWriter, r *http.Request) {
	a.captureTransition(w, r, func(r *http.Request, id, orgID string) (*store.Capture, error) {
		return a.captures.Trash(r.Context(), id, orgID)
	})
}

func (a *API) handleCaptureRestore(w http.ResponseWriter, r *http.Request) {
	a.captureTransition(w, r, func(r *http.Request, id, orgID string) (*store.Capture, error) {
		return a.captures.Restore(r.Context(), id, orgID)
	})
}

func (a *API) handleCapturePin(w http.ResponseWriter, r *http.Request) {
	a.captureTransition(w, r, func(r *http.Request, id, orgID string) (*store.Capture, error) {
		return a.captures.Pin(r.Context(), id, orgID)
	})
}

func (a *API) handleCaptureUnpin(w http.ResponseWriter, r *http.Request) {
	a.captureTransition(w, r, func(r *http.Request, id, orgID string) (*store.Capture, error) {
		return a.captures.Unpin(r.Context(), id, orgID)
	})
}

type snoozeRequest struct {
	Until time.Time `json:"until"`
}

func (a *API) handleCaptureSnooze(w http.ResponseWriter, r *http.Request) {
	var req snoozeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Until.IsZero() {
		a.writeJSON(w, http.StatusBadRequest, errorBody{Error: "until is required"})
		return
	}

	a.captureTransition(w, r, func(r *http.Request, id, orgID string) (*store.Capture, error) {
		return a.captures.Snooze(r.Context(), id, orgID, req.Until)
	})
}

func (a *API) handleCaptureUnsnooze(w http.ResponseWriter, r *http.Request) {
	a.captureTransition(w, r, func(r *http.Request, id, orgID string) (*store.Capture, error) {
		return a.captures.Unsnooze(r.Context(), id, orgID)
	})
}

type processRequest struct {
	Title   string     `json:"title"`
	DueDate *time.Time `json:"due_date"`
}

func (a *API) handleCaptureProcess(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	var req processRequest
	if !a.decode(w, r, &req) {
		return
	}

	task, err := a.captures.ProcessToTask(r.Context(), capture.ProcessParams{
		ID:             r.PathValue("id"),
		OrganizationID: ac.OrganizationID,
		CreatedByID:    ac.UserID,
		Title:          req.Title,
		DueDate:        req.DueDate,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, task)
}

func (a *API) handleCaptureDelete(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	if err := a.captures.DeleteFromTrash(r.Context(), r.PathValue("id"), ac.OrganizationID); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleEmptyTrash(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	n, err := a.captures.EmptyTrash(r.Context(), ac.OrganizationID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (a *API) handleTaskList(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	f := store.TaskFilter{
		IncludeCompleted: r.URL.Query().Get("include_completed") == "true",
	}
	tasks, err := a.captures.ListTasks(r.Context(), ac.OrganizationID, f)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*store.Task{}
	}
	a.writeJSON(w, http.StatusOK, tasks)
}

func (a *API) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	task, err := a.captures.GetTask(r.Context(), r.PathValue("id"), ac.OrganizationID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, task)
}

func (a *API) taskTransition(w http.ResponseWriter, r *http.Request,
	fn func(r *http.Request, id, orgID string) (*store.Task, error)) {
	ac := auth.MustFromContext(r.Context())

	task, err := fn(r, r.PathValue("id"), ac.OrganizationID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, task)
}

func (a *API) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	a.taskTransition(w, r, func(r *http.Request, id, orgID string) (*store.Task, error) {
		return a.captures.CompleteTask(r.Context(), id, orgID)
	})
}

func (a *API) handleTaskReopen(w http.ResponseWriter, r *http.Request) {
	a.taskTransition(w, r, func(r *http.Request, id, orgID string) (*store.Task, error) {
		return a.captures.ReopenTask(r.Context(), id, orgID)
	})
}

func (a *API) handleTaskPin(w http.ResponseWriter, r *http.Request) {
	a.taskTransition(w, r, func(r *http.Request, id, orgID string) (*store.Task, error) {
		return a.captures.PinTask(r.Context(), id, orgID)
	})
}

func (a *API) handleTaskUnpin(w http.ResponseWriter, r *http.Request) {
	a.taskTransition(w, r, func(r *http.Request, id, orgID string) (*store.Task, error) {
		return a.captures.UnpinTask(r.Context(), id, orgID)
	})
}

func (a *API) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustFromContext(r.Context())

	if err := a.captures.DeleteTaskWithCascade(r.Context(), r.PathValue("id"), ac.OrganizationID); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
