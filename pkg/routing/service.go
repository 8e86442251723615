// Package routing resolves addresses and plans routes that carry a story.
package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/geo"
	"github.com/4ndr3jS/TravelStory/pkg/model"
	"github.com/4ndr3jS/TravelStory/pkg/request"
)

// fallbackSteps is the number of legs in a straight-line route geometry.
const fallbackSteps = 16

// PlanRequest describes the trip the user asked for.
type PlanRequest struct {
	Start      string           `json:"start"`
	End        string           `json:"end"`
	TravelMode model.TravelMode `json:"travel_mode"`
	Style      model.StoryStyle `json:"style"`
	Voice      string           `json:"voice,omitempty"`
}

// leg is the provider-independent result of a routing call.
type leg struct {
	provider string
	distance float64 // meters
	duration float64 // seconds
	geometry orb.LineString
}

// Service plans routes via GraphHopper, then OpenRouteService, then a
// straight line, depending on which keys are configured.
type Service struct {
	rc  *request.Client
	cfg config.RoutingConfig
}

// NewService creates a routing service.
func NewService(rc *request.Client, cfg config.RoutingConfig) *Service {
	return &Service{rc: rc, cfg: cfg}
}

// Plan geocodes both ends and computes the route.
func (s *Service) Plan(ctx context.Context, req PlanRequest) (*model.Route, error) {
	mode, err := model.ParseTravelMode(string(req.TravelMode))
	if err != nil {
		return nil, err
	}
	style, err := model.ParseStoryStyle(string(req.Style))
	if err != nil {
		return nil, err
	}

	start, err := s.Geocode(ctx, req.Start)
	if err != nil {
		return nil, err
	}
	end, err := s.Geocode(ctx, req.End)
	if err != nil {
		return nil, err
	}

	l, err := s.route(ctx, start.Location(), end.Location(), mode)
	if err != nil {
		return nil, err
	}

	route := &model.Route{
		StartAddress:    start.DisplayName,
		EndAddress:      end.DisplayName,
		Start:           start.Location(),
		End:             end.Location(),
		TravelMode:      mode,
		Geometry:        l.geometry,
		DistanceMeters:  l.distance,
		DurationSeconds: l.duration,
		Distance:        FormatDistance(l.distance),
		Duration:        FormatDuration(l.duration),
		Style:           style,
		Voice:           req.Voice,
	}
	if err := route.Validate(); err != nil {
		return nil, fmt.Errorf("route from %q to %q: %w", req.Start, req.End, err)
	}

	slog.Info("Routing: route planned", "provider", l.provider, "distance", route.Distance, "duration", route.Duration)
	return route, nil
}

// route tries each configured provider in order; failures fall through.
func (s *Service) route(ctx context.Context, start, end model.Location, mode model.TravelMode) (*leg, error) {
	if usableKey(s.cfg.GraphHopperKey) {
		l, err := s.graphHopper(ctx, start, end, mode)
		if err == nil {
			return l, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("Routing: GraphHopper failed, trying next provider", "error", err)
	}

	if usableKey(s.cfg.ORSKey) {
		l, err := s.openRouteService(ctx, start, end, mode)
		if err == nil {
			return l, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("Routing: OpenRouteService failed, using straight line", "error", err)
	} else {
		slog.Debug("Routing: no routing provider available, using straight line")
	}

	return s.straightLine(start, end, mode), nil
}

func (s *Service) straightLine(start, end model.Location, mode model.TravelMode) *leg {
	distance := geo.Distance(start, end)
	speed := s.cfg.WalkingSpeed
	if mode == model.TravelModeDriving {
		speed = s.cfg.DrivingSpeed
	}
	if speed <= 0 {
		speed = 1.4
	}

	return &leg{
		provider: "straight-line",
		distance: distance,
		duration: distance / speed,
		geometry: geo.StraightLine(start, end, fallbackSteps),
	}
}

// usableKey rejects empty keys and the placeholders shipped in sample configs.
func usableKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && !strings.HasPrefix(strings.ToUpper(key), "YOUR_")
}

var errNoRoute = errors.New("no route found")
