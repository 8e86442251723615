package model

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// ErrUnknownValue is wrapped by the Parse functions for unsupported input.
var ErrUnknownValue = errors.New("unknown value")

// TravelMode is how the user moves along the route.
type TravelMode string

const (
	TravelModeWalking TravelMode = "WALKING"
	TravelModeDriving TravelMode = "DRIVING"
)

// ParseTravelMode normalizes a travel mode string. Empty defaults to walking.
func ParseTravelMode(s string) (TravelMode, error) {
	switch TravelMode(s) {
	case "", TravelModeWalking:
		return TravelModeWalking, nil
	case TravelModeDriving:
		return TravelModeDriving, nil
	}
	return "", fmt.Errorf("%w: travel mode %q", ErrUnknownValue, s)
}

// StoryStyle selects the narrative genre.
type StoryStyle string

const (
	StyleNoir       StoryStyle = "NOIR"
	StyleChildren   StoryStyle = "CHILDREN"
	StyleHistorical StoryStyle = "HISTORICAL"
	StyleFantasy    StoryStyle = "FANTASY"
)

// Styles lists all supported story styles in display order.
var Styles = []StoryStyle{StyleNoir, StyleChildren, StyleHistorical, StyleFantasy}

// ParseStoryStyle validates a style string. Empty defaults to noir.
func ParseStoryStyle(s string) (StoryStyle, error) {
	if s == "" {
		return StyleNoir, nil
	}
	for _, st := range Styles {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: story style %q", ErrUnknownValue, s)
}

// Location is a resolved coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts the location to an orb point (lng, lat order).
func (l Location) Point() orb.Point {
	return orb.Point{l.Lng, l.Lat}
}

// ErrRouteDuration is returned for routes that cannot carry a story.
var ErrRouteDuration = errors.New("route duration must be positive")

// Route is a planned trip. It is immutable once produced by the planner.
type Route struct {
	StartAddress    string         `json:"start_address"`
	EndAddress      string         `json:"end_address"`
	Start           Location       `json:"start_location"`
	End             Location       `json:"end_location"`
	TravelMode      TravelMode     `json:"travel_mode"`
	Geometry        orb.LineString `json:"route_geometry,omitempty"` // [lng, lat] pairs
	DistanceMeters  float64        `json:"distance_meters"`
	DurationSeconds float64        `json:"duration_seconds"`
	Distance        string         `json:"distance"`
	Duration        string         `json:"duration"`
	Style           StoryStyle     `json:"story_style"`
	Voice           string         `json:"voice,omitempty"`
}

// Validate checks the invariants required to generate a story from the route.
func (r *Route) Validate() error {
	if r == nil {
		return errors.New("route is nil")
	}
	if !(r.DurationSeconds > 0) {
		return ErrRouteDuration
	}
	if _, err := ParseStoryStyle(string(r.Style)); err != nil {
		return err
	}
	return nil
}
