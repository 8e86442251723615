package api

import (
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/playback"
	"github.com/4ndr3jS/TravelStory/pkg/probe"
	"github.com/4ndr3jS/TravelStory/pkg/tracker"
)

// RenderStats reports audio rendering counters.
type RenderStats interface {
	Stats() playback.Stats
}

// EventStats reports published and dropped bus events.
type EventStats interface {
	Stats() (sent, dropped int64)
}

// StatsHandler serves provider usage, renderer and startup check status.
type StatsHandler struct {
	tracker     *tracker.Tracker
	render      RenderStats
	events      EventStats
	llmFallback []string
	started     time.Time

	mu     sync.RWMutex
	probes []probe.Status
}

// NewStatsHandler creates a StatsHandler. render and events may be nil.
func NewStatsHandler(t *tracker.Tracker, render RenderStats, events EventStats, llmFallback []string) *StatsHandler {
	return &StatsHandler{
		tracker:     t,
		render:      render,
		events:      events,
		llmFallback: llmFallback,
		started:     time.Now(),
	}
}

// SetProbeResults records the outcome of the startup checks.
func (h *StatsHandler) SetProbeResults(results []probe.Result) {
	statuses := make([]probe.Status, len(results))
	for i, r := range results {
		statuses[i] = r.Status()
	}
	h.mu.Lock()
	h.probes = statuses
	h.mu.Unlock()
}

type ProviderStatsDTO struct {
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	APISuccess    int64   `json:"api_success"`
	APIZeroResult int64   `json:"api_zero"`
	APIFailures   int64   `json:"api_errors"`
	HitRate       int64   `json:"hit_rate"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
}

type RuntimeStats struct {
	UptimeSec  int64  `json:"uptime_sec"`
	Goroutines int    `json:"goroutines"`
	HeapMB     uint64 `json:"heap_mb"`
}

type EventBusStats struct {
	Sent    int64 `json:"sent"`
	Dropped int64 `json:"dropped"`
}

type StatsResponse struct {
	Runtime     RuntimeStats                `json:"runtime"`
	Providers   map[string]ProviderStatsDTO `json:"providers"`
	LLMFallback []string                    `json:"llm_fallback"`
	Audio       *playback.Stats             `json:"audio,omitempty"`
	Events      *EventBusStats              `json:"events,omitempty"`
	Probes      []probe.Status              `json:"probes"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	h.mu.RLock()
	probes := append([]probe.Status{}, h.probes...)
	h.mu.RUnlock()

	resp := StatsResponse{
		Runtime: RuntimeStats{
			UptimeSec:  int64(time.Since(h.started).Seconds()),
			Goroutines: runtime.NumGoroutine(),
			HeapMB:     bToMb(mem.HeapAlloc),
		},
		Providers:   make(map[string]ProviderStatsDTO, len(snapshot)),
		LLMFallback: h.llmFallback,
		Probes:      probes,
	}
	if h.render != nil {
		s := h.render.Stats()
		resp.Audio = &s
	}
	if h.events != nil {
		sent, dropped := h.events.Stats()
		resp.Events = &EventBusStats{Sent: sent, Dropped: dropped}
	}

	for provider, stats := range snapshot {
		totalCache := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if totalCache > 0 {
			hitRate = (stats.CacheHits * 100) / totalCache
		}
		resp.Providers[provider] = ProviderStatsDTO{
			CacheHits:     stats.CacheHits,
			CacheMisses:   stats.CacheMisses,
			APISuccess:    stats.APISuccess,
			APIZeroResult: stats.APIZeroResult,
			APIFailures:   stats.APIFailures,
			HitRate:       hitRate,
			AvgLatencyMs:  stats.AvgLatencyMs(),
		}
	}
	sort.SliceStable(resp.Probes, func(i, j int) bool {
		return resp.Probes[i].Critical && !resp.Probes[j].Critical
	})

	writeJSON(w, http.StatusOK, resp)
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
