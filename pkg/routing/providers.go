package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/4ndr3jS/TravelStory/pkg/model"
)

type graphHopperResponse struct {
	Paths []struct {
		Distance float64           `json:"distance"` // meters
		Time     float64           `json:"time"`     // milliseconds
		Points   *geojson.Geometry `json:"points"`
	} `json:"paths"`
}

func (s *Service) graphHopper(ctx context.Context, start, end model.Location, mode model.TravelMode) (*leg, error) {
	vehicle := "foot"
	if mode == model.TravelModeDriving {
		vehicle = "car"
	}

	v := url.Values{}
	v.Set("key", s.cfg.GraphHopperKey)
	v.Add("point", fmt.Sprintf("%f,%f", start.Lat, start.Lng))
	v.Add("point", fmt.Sprintf("%f,%f", end.Lat, end.Lng))
	v.Set("profile", vehicle)
	v.Set("points_encoded", "false")
	v.Set("instructions", "false")
	v.Set("calc_points", "true")
	u := strings.TrimSuffix(s.cfg.GraphHopperURL, "/") + "/route?" + v.Encode()

	body, err := s.rc.Get(ctx, u, "")
	if err != nil {
		return nil, fmt.Errorf("graphhopper request failed: %w", err)
	}

	var resp graphHopperResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("invalid graphhopper response: %w", err)
	}
	if len(resp.Paths) == 0 {
		return nil, errNoRoute
	}

	path := resp.Paths[0]
	return &leg{
		provider: "graphhopper",
		distance: path.Distance,
		duration: path.Time / 1000,
		geometry: lineString(path.Points, start, end),
	}, nil
}

type orsRequest struct {
	Coordinates  [][2]float64 `json:"coordinates"`
	Instructions bool         `json:"instructions"`
	Geometry     bool         `json:"geometry"`
}

type orsProperties struct {
	Segments []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"segments"`
	Summary struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"summary"`
}

func (s *Service) openRouteService(ctx context.Context, start, end model.Location, mode model.TravelMode) (*leg, error) {
	profile := "foot-walking"
	if mode == model.TravelModeDriving {
		profile = "driving-car"
	}

	reqBody, err := json.Marshal(orsRequest{
		Coordinates: [][2]float64{{start.Lng, start.Lat}, {end.Lng, end.Lat}},
		Geometry:    true,
	})
	if err != nil {
		return nil, err
	}

	u := strings.TrimSuffix(s.cfg.ORSURL, "/") + "/v2/directions/" + profile + "/geojson"
	headers := map[string]string{
		"Authorization": s.cfg.ORSKey,
		"Content-Type":  "application/json",
		"Accept":        "application/geo+json, application/json",
	}
	body, err := s.rc.PostWithHeaders(ctx, u, reqBody, headers)
	if err != nil {
		return nil, fmt.Errorf("openrouteservice request failed: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("invalid openrouteservice response: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, errNoRoute
	}
	feature := fc.Features[0]

	var props orsProperties
	raw, err := json.Marshal(feature.Properties)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, fmt.Errorf("invalid openrouteservice properties: %w", err)
	}

	distance, duration := props.Summary.Distance, props.Summary.Duration
	if len(props.Segments) > 0 {
		distance, duration = props.Segments[0].Distance, props.Segments[0].Duration
	}

	ls, _ := feature.Geometry.(orb.LineString)
	if len(ls) < 2 {
		ls = orb.LineString{start.Point(), end.Point()}
	}

	return &leg{provider: "openrouteservice", distance: distance, duration: duration, geometry: ls}, nil
}

// lineString extracts the path geometry, falling back to the two endpoints.
func lineString(g *geojson.Geometry, start, end model.Location) orb.LineString {
	if g != nil {
		if ls, ok := g.Geometry().(orb.LineString); ok && len(ls) >= 2 {
			return ls
		}
	}
	return orb.LineString{start.Point(), end.Point()}
}
