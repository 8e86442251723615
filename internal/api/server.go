package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/version"
)

// Handlers groups the per-area handlers mounted by NewServer. Nil handlers
// leave their routes unmounted.
type Handlers struct {
	Story       *StoryHandler
	Routes      *RouteHandler
	History     *HistoryHandler
	Preferences *PreferencesHandler
	Voices      *VoicesHandler
	Stats       *StatsHandler
	Hub         *Hub
	Metrics     http.Handler
}

// NewServer creates and configures the HTTP server. shutdown is called
// after POST /api/shutdown has been answered.
func NewServer(addr string, h Handlers, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health and version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Geocoding and route planning
	if h.Routes != nil {
		mux.HandleFunc("GET /api/geocode", h.Routes.HandleSearch)
		mux.HandleFunc("GET /api/geocode/reverse", h.Routes.HandleReverse)
		mux.HandleFunc("POST /api/routes", h.Routes.HandlePlan)
	}

	// 3. Story lifecycle and cursor
	if h.Story != nil {
		mux.HandleFunc("POST /api/story", h.Story.HandleStart)
		mux.HandleFunc("GET /api/story", h.Story.HandleSnapshot)
		mux.HandleFunc("POST /api/story/reset", h.Story.HandleReset)
		mux.HandleFunc("POST /api/story/buffer", h.Story.HandleBuffer)
		mux.HandleFunc("POST /api/story/cursor", h.Story.HandleCursor)
		mux.HandleFunc("POST /api/app/state", h.Story.HandleAppState)
		mux.HandleFunc("GET /api/story/segments/{index}/audio", h.Story.HandleAudio)
	}
	if h.Hub != nil {
		mux.HandleFunc("GET /api/story/ws", h.Hub.HandleWS)
	}

	// 4. Story history
	if h.History != nil {
		mux.HandleFunc("GET /api/stories", h.History.HandleList)
		mux.HandleFunc("POST /api/stories/{id}/resume", h.History.HandleResume)
		mux.HandleFunc("DELETE /api/stories/{id}", h.History.HandleDelete)
	}

	// 5. Preferences and voices
	if h.Preferences != nil {
		mux.HandleFunc("GET /api/preferences", h.Preferences.HandleGet)
		mux.HandleFunc("PUT /api/preferences", h.Preferences.HandleSet)
	}
	if h.Voices != nil {
		mux.HandleFunc("GET /api/voices", h.Voices.HandleList)
	}

	// 6. Diagnostics
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	// 7. Shutdown
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Let the response flush first.
		go func() {
			time.Sleep(100 * time.Millisecond)
			if shutdown != nil {
				shutdown()
			}
		}()
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// StartStory waits for the outline, which may take a minute.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": %q}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
