package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/tts"
)

const voiceCacheTTL = time.Hour

// VoiceLister is the part of a TTS engine that lists voices.
type VoiceLister interface {
	Voices(ctx context.Context) ([]tts.Voice, error)
}

// VoicesHandler lists the voices of the configured TTS engine. The list is
// cached because engines fetch it over the network.
type VoicesHandler struct {
	engine VoiceLister

	mu      sync.Mutex
	cached  []tts.Voice
	fetched time.Time
}

// NewVoicesHandler creates a VoicesHandler.
func NewVoicesHandler(engine VoiceLister) *VoicesHandler {
	return &VoicesHandler{engine: engine}
}

// HandleList handles GET /api/voices?lang=.
func (h *VoicesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	voices, err := h.voices(r.Context())
	if err != nil {
		slog.Warn("API: voice list failed", "error", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}

	lang := strings.ToLower(r.URL.Query().Get("lang"))
	out := make([]tts.Voice, 0, len(voices))
	for _, v := range voices {
		if lang == "" || strings.HasPrefix(strings.ToLower(v.Language), lang) {
			out = append(out, v)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *VoicesHandler) voices(ctx context.Context) ([]tts.Voice, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cached != nil && time.Since(h.fetched) < voiceCacheTTL {
		return h.cached, nil
	}
	voices, err := h.engine.Voices(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(voices, func(i, j int) bool {
		if voices[i].Language != voices[j].Language {
			return voices[i].Language < voices[j].Language
		}
		return voices[i].Name < voices[j].Name
	})
	h.cached = voices
	h.fetched = time.Now()
	return voices, nil
}
