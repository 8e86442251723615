package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/4ndr3jS/TravelStory/pkg/session"
	"github.com/4ndr3jS/TravelStory/pkg/store"
)

// HistoryHandler lists, resumes and deletes persisted stories.
type HistoryHandler struct {
	st       session.Store
	ctrl     session.Restorer
	activeID func() string
}

// NewHistoryHandler creates a HistoryHandler. activeID returns the ID of the
// story currently loaded in the controller.
func NewHistoryHandler(st session.Store, ctrl session.Restorer, activeID func() string) *HistoryHandler {
	return &HistoryHandler{st: st, ctrl: ctrl, activeID: activeID}
}

// HandleList handles GET /api/stories?limit=.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, "invalid limit")
			return
		}
		limit = min(n, 100)
	}
	list, err := h.st.ListStories(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []store.StorySummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleResume handles POST /api/stories/{id}/resume. The controller must be
// idle; reset the current story first.
func (h *HistoryHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := session.Resume(r.Context(), h.st, h.ctrl, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "resumed"})
}

var errStoryInUse = errors.New("story is loaded, reset it before deleting")

// HandleDelete handles DELETE /api/stories/{id}.
func (h *HistoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.activeID != nil && h.activeID() == id {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: errStoryInUse.Error()})
		return
	}
	rec, err := h.st.GetStory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec == nil {
		writeError(w, session.ErrStoryNotFound)
		return
	}
	if err := h.st.DeleteStory(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
