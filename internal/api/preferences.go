package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/model"
	"github.com/4ndr3jS/TravelStory/pkg/store"
)

// PreferencesHandler reads and updates the user's story defaults.
type PreferencesHandler struct {
	store   store.StateStore
	cfgProv config.Provider
}

// NewPreferencesHandler creates a PreferencesHandler.
func NewPreferencesHandler(st store.StateStore, cfg config.Provider) *PreferencesHandler {
	return &PreferencesHandler{store: st, cfgProv: cfg}
}

// PreferencesResponse is the effective set of preferences.
type PreferencesResponse struct {
	StoryStyle   string   `json:"story_style"`
	TravelMode   string   `json:"travel_mode"`
	Voice        string   `json:"voice"`
	ContextChars int      `json:"context_chars"`
	TTSEngine    string   `json:"tts_engine"`
	Styles       []string `json:"styles"`
}

// PreferencesRequest updates preferences. Omitted fields are unchanged.
type PreferencesRequest struct {
	StoryStyle   string  `json:"story_style,omitempty"`
	TravelMode   string  `json:"travel_mode,omitempty"`
	Voice        *string `json:"voice,omitempty"` // Pointer so "" can clear an override
	ContextChars *int    `json:"context_chars,omitempty"`
}

// HandleGet handles GET /api/preferences.
func (h *PreferencesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.current(r.Context()))
}

// HandleSet handles PUT /api/preferences.
func (h *PreferencesHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var req PreferencesRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	updates := map[string]string{}
	if req.StoryStyle != "" {
		style, err := model.ParseStoryStyle(req.StoryStyle)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		updates[config.KeyStoryStyle] = string(style)
	}
	if req.TravelMode != "" {
		mode, err := model.ParseTravelMode(req.TravelMode)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		updates[config.KeyTravelMode] = string(mode)
	}
	if req.ContextChars != nil {
		if *req.ContextChars < 0 {
			badRequest(w, "context_chars must not be negative")
			return
		}
		updates[config.KeyContextChars] = strconv.Itoa(*req.ContextChars)
	}

	ctx := r.Context()
	for k, v := range updates {
		if err := h.store.SetState(ctx, k, v); err != nil {
			slog.Error("Failed to save preference", "key", k, "error", err)
			writeError(w, err)
			return
		}
	}
	if req.Voice != nil {
		var err error
		if *req.Voice == "" {
			err = h.store.DeleteState(ctx, config.KeyVoice)
		} else {
			err = h.store.SetState(ctx, config.KeyVoice, *req.Voice)
		}
		if err != nil {
			slog.Error("Failed to save preference", "key", config.KeyVoice, "error", err)
			writeError(w, err)
			return
		}
	}

	slog.Info("API: Preferences updated", "fields", len(updates))
	writeJSON(w, http.StatusOK, h.current(ctx))
}

func (h *PreferencesHandler) current(ctx context.Context) PreferencesResponse {
	styles := make([]string, len(model.Styles))
	for i, s := range model.Styles {
		styles[i] = string(s)
	}
	return PreferencesResponse{
		StoryStyle:   h.cfgProv.StoryStyle(ctx),
		TravelMode:   h.cfgProv.TravelMode(ctx),
		Voice:        h.cfgProv.Voice(ctx),
		ContextChars: h.cfgProv.ContextChars(ctx),
		TTSEngine:    h.cfgProv.AppConfig().TTS.Engine,
		Styles:       styles,
	}
}
