package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// ErrAddressNotFound is returned when geocoding yields no match.
var ErrAddressNotFound = errors.New("address not found")

// GeocodeResult is a resolved address.
type GeocodeResult struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// Location returns the result's coordinate.
func (g GeocodeResult) Location() model.Location {
	return model.Location{Lat: g.Lat, Lng: g.Lng}
}

type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func (p nominatimPlace) result() (GeocodeResult, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return GeocodeResult{}, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return GeocodeResult{}, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}
	return GeocodeResult{DisplayName: p.DisplayName, Lat: lat, Lng: lng}, nil
}

// Search returns up to the configured number of address suggestions.
func (s *Service) Search(ctx context.Context, query string) ([]GeocodeResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	return s.search(ctx, query, s.cfg.SearchLimit)
}

// Geocode resolves a single address.
func (s *Service) Geocode(ctx context.Context, address string) (*GeocodeResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", ErrAddressNotFound)
	}
	results, err := s.search(ctx, address, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrAddressNotFound, address)
	}
	return &results[0], nil
}

func (s *Service) search(ctx context.Context, query string, limit int) ([]GeocodeResult, error) {
	if limit <= 0 {
		limit = 5
	}
	v := url.Values{}
	v.Set("format", "json")
	v.Set("q", query)
	v.Set("limit", strconv.Itoa(limit))
	u := strings.TrimSuffix(s.cfg.NominatimURL, "/") + "/search?" + v.Encode()

	cacheKey := fmt.Sprintf("geo:search:%d:%s", limit, strings.ToLower(query))
	body, err := s.rc.GetWithHeaders(ctx, u, s.headers(), cacheKey)
	if err != nil {
		return nil, fmt.Errorf("geocoding failed: %w", err)
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("invalid geocoding response: %w", err)
	}

	results := make([]GeocodeResult, 0, len(places))
	for _, p := range places {
		r, err := p.result()
		if err != nil {
			slog.Debug("Routing: skipping malformed place", "name", p.DisplayName, "error", err)
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// Reverse names the address at loc. It never fails: when the lookup does,
// the coordinates themselves are returned as the name.
func (s *Service) Reverse(ctx context.Context, loc model.Location) string {
	fallback := fmt.Sprintf("Location: %.4f, %.4f", loc.Lat, loc.Lng)

	v := url.Values{}
	v.Set("format", "json")
	v.Set("lat", strconv.FormatFloat(loc.Lat, 'f', 6, 64))
	v.Set("lon", strconv.FormatFloat(loc.Lng, 'f', 6, 64))
	u := strings.TrimSuffix(s.cfg.NominatimURL, "/") + "/reverse?" + v.Encode()

	cacheKey := fmt.Sprintf("geo:reverse:%.5f,%.5f", loc.Lat, loc.Lng)
	body, err := s.rc.GetWithHeaders(ctx, u, s.headers(), cacheKey)
	if err != nil {
		slog.Warn("Routing: reverse geocoding failed", "error", err)
		return fallback
	}

	var place nominatimPlace
	if err := json.Unmarshal(body, &place); err != nil || place.DisplayName == "" {
		return fallback
	}
	return place.DisplayName
}

func (s *Service) headers() map[string]string {
	return map[string]string{"User-Agent": s.cfg.UserAgent}
}
