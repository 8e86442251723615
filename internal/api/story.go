package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/model"
	"github.com/4ndr3jS/TravelStory/pkg/playback"
	"github.com/4ndr3jS/TravelStory/pkg/routing"
	"github.com/4ndr3jS/TravelStory/pkg/story"
)

// StoryController is the part of the story controller driven over HTTP.
type StoryController interface {
	StartStory(ctx context.Context, route *model.Route) (story.Snapshot, error)
	Snapshot() story.Snapshot
	Reset() error
	BufferNext() (bool, error)
	Advance() (story.Snapshot, error)
	JumpTo(i int) (story.Snapshot, error)
	ReportPlaying(i int) (story.Snapshot, error)
	HandleAppState(s story.AppState) (bool, error)
}

// RoutePlanner turns two addresses into a route.
type RoutePlanner interface {
	Plan(ctx context.Context, req routing.PlanRequest) (*model.Route, error)
}

// ClipSource looks up rendered segment audio.
type ClipSource interface {
	Clip(storyID string, index int) (playback.Clip, bool)
}

// StoryHandler serves the story lifecycle, cursor and audio endpoints.
type StoryHandler struct {
	ctrl    StoryController
	planner RoutePlanner
	clips   ClipSource
	prefs   config.Provider
}

// NewStoryHandler creates a StoryHandler. clips and prefs may be nil.
func NewStoryHandler(ctrl StoryController, planner RoutePlanner, clips ClipSource, prefs config.Provider) *StoryHandler {
	return &StoryHandler{ctrl: ctrl, planner: planner, clips: clips, prefs: prefs}
}

// StartRequest starts a story either from a planned route or from two
// addresses that are planned first.
type StartRequest struct {
	Route *model.Route `json:"route,omitempty"`
	routing.PlanRequest
}

// HandleStart handles POST /api/story. It answers once the outline is ready.
func (h *StoryHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	route := req.Route
	if route == nil {
		if req.Start == "" || req.End == "" {
			badRequest(w, "route or start and end addresses required")
			return
		}
		planned, err := h.planner.Plan(r.Context(), withDefaults(r.Context(), req.PlanRequest, h.prefs))
		if err != nil {
			slog.Warn("API: route planning failed", "start", req.Start, "end", req.End, "error", err)
			writeError(w, err)
			return
		}
		route = planned
	}

	snap, err := h.ctrl.StartStory(r.Context(), route)
	if err != nil {
		slog.Warn("API: story start failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// HandleSnapshot handles GET /api/story.
func (h *StoryHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// HandleReset handles POST /api/story/reset.
func (h *StoryHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Reset(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// BufferResponse reports whether a buffering pass was started.
type BufferResponse struct {
	Started bool `json:"started"`
}

// HandleBuffer handles POST /api/story/buffer.
func (h *StoryHandler) HandleBuffer(w http.ResponseWriter, r *http.Request) {
	started, err := h.ctrl.BufferNext()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BufferResponse{Started: started})
}

// CursorRequest moves the playback cursor.
type CursorRequest struct {
	Action string `json:"action"` // advance, jump, playing
	Index  int    `json:"index"`
}

// HandleCursor handles POST /api/story/cursor.
func (h *StoryHandler) HandleCursor(w http.ResponseWriter, r *http.Request) {
	var req CursorRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	var snap story.Snapshot
	var err error
	switch req.Action {
	case "advance", "":
		snap, err = h.ctrl.Advance()
	case "jump":
		snap, err = h.ctrl.JumpTo(req.Index)
	case "playing":
		snap, err = h.ctrl.ReportPlaying(req.Index)
	default:
		badRequest(w, "unknown cursor action "+strconv.Quote(req.Action))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// AppStateRequest reports a client lifecycle change.
type AppStateRequest struct {
	State string `json:"state"`
}

// AppStateResponse reports whether the change started buffering.
type AppStateResponse struct {
	State     story.AppState `json:"state"`
	Buffering bool           `json:"buffering"`
}

// HandleAppState handles POST /api/app/state.
func (h *StoryHandler) HandleAppState(w http.ResponseWriter, r *http.Request) {
	var req AppStateRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	state, err := story.ParseAppState(req.State)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	started, err := h.ctrl.HandleAppState(state)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AppStateResponse{State: state, Buffering: started})
}

// HandleAudio handles GET /api/story/segments/{index}/audio for the active
// story, where index is the 1-based segment index. It answers 404 until the
// clip has been rendered.
func (h *StoryHandler) HandleAudio(w http.ResponseWriter, r *http.Request) {
	if h.clips == nil {
		http.Error(w, "audio rendering disabled", http.StatusNotFound)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 1 {
		badRequest(w, "invalid segment index")
		return
	}
	id := h.ctrl.Snapshot().StoryID()
	if id == "" {
		http.Error(w, "no active story", http.StatusNotFound)
		return
	}
	clip, ok := h.clips.Clip(id, index)
	if !ok {
		http.Error(w, "segment audio not ready", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType(clip.Format))
	w.Header().Set("Cache-Control", "no-cache")
	if clip.Duration > 0 {
		w.Header().Set("X-Audio-Duration-Ms", strconv.FormatInt(clip.Duration.Milliseconds(), 10))
	}
	http.ServeFile(w, r, clip.Path)
}

func contentType(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	}
	return "application/octet-stream"
}

// withDefaults fills style, travel mode and voice from the saved preferences.
func withDefaults(ctx context.Context, req routing.PlanRequest, prefs config.Provider) routing.PlanRequest {
	if prefs == nil {
		return req
	}
	if req.Style == "" {
		req.Style = model.StoryStyle(prefs.StoryStyle(ctx))
	}
	if req.TravelMode == "" {
		req.TravelMode = model.TravelMode(prefs.TravelMode(ctx))
	}
	if req.Voice == "" {
		req.Voice = prefs.Voice(ctx)
	}
	return req
}
