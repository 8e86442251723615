package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/model"
	"github.com/4ndr3jS/TravelStory/pkg/routing"
)

// Geocoder resolves addresses and coordinates.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]routing.GeocodeResult, error)
	Reverse(ctx context.Context, loc model.Location) string
}

// RouteHandler serves geocoding and route planning.
type RouteHandler struct {
	geo     Geocoder
	planner RoutePlanner
	prefs   config.Provider
}

// NewRouteHandler creates a RouteHandler. prefs may be nil.
func NewRouteHandler(geo Geocoder, planner RoutePlanner, prefs config.Provider) *RouteHandler {
	return &RouteHandler{geo: geo, planner: planner, prefs: prefs}
}

// HandleSearch handles GET /api/geocode?q=.
func (h *RouteHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < 3 {
		writeJSON(w, http.StatusOK, []routing.GeocodeResult{})
		return
	}
	results, err := h.geo.Search(r.Context(), q)
	if err != nil {
		slog.Warn("API: geocode search failed", "query", q, "error", err)
		writeError(w, err)
		return
	}
	if results == nil {
		results = []routing.GeocodeResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// ReverseResponse names a coordinate.
type ReverseResponse struct {
	DisplayName string         `json:"display_name"`
	Location    model.Location `json:"location"`
}

// HandleReverse handles GET /api/geocode/reverse?lat=&lng=.
func (h *RouteHandler) HandleReverse(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		badRequest(w, "lat and lng must be valid coordinates")
		return
	}
	loc := model.Location{Lat: lat, Lng: lng}
	writeJSON(w, http.StatusOK, ReverseResponse{DisplayName: h.geo.Reverse(r.Context(), loc), Location: loc})
}

// HandlePlan handles POST /api/routes.
func (h *RouteHandler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	var req routing.PlanRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Start == "" || req.End == "" {
		badRequest(w, "start and end addresses required")
		return
	}
	route, err := h.planner.Plan(r.Context(), withDefaults(r.Context(), req, h.prefs))
	if err != nil {
		slog.Warn("API: route planning failed", "start", req.Start, "end", req.End, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}
