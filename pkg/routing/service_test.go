package routing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/model"
	"github.com/4ndr3jS/TravelStory/pkg/request"
)

const (
	places = `{
		"Alexanderplatz": [{"display_name": "Alexanderplatz, Berlin", "lat": "52.5219", "lon": "13.4132"}],
		"Brandenburger Tor": [{"display_name": "Brandenburger Tor, Berlin", "lat": "52.5163", "lon": "13.3777"}]
	}`
	ghBody = `{"paths":[{"distance":2650.4,"time":1908000,"points":{"type":"LineString","coordinates":[[13.4132,52.5219],[13.40,52.519],[13.3777,52.5163]]}}]}`
	orsBody = `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[13.4132,52.5219],[13.3777,52.5163]]},"properties":{"segments":[{"distance":2700,"duration":1944}],"summary":{"distance":2700,"duration":1944}}}]}`
)

type fakeAPI struct {
	ghStatus  int
	orsStatus int
	ghCalls   atomic.Int32
	orsCalls  atomic.Int32
	searches  atomic.Int32
	orsAuth   atomic.Value
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	var byQuery map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(places), &byQuery))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		f.searches.Add(1)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		if body, ok := byQuery[r.URL.Query().Get("q")]; ok {
			_, _ = w.Write(body)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("GET /reverse", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") == "0.000000" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"display_name": "Unter den Linden, Berlin", "lat": "52.517", "lon": "13.389"}`))
	})
	mux.HandleFunc("GET /gh/route", func(w http.ResponseWriter, r *http.Request) {
		f.ghCalls.Add(1)
		assert.Len(t, r.URL.Query()["point"], 2)
		assert.Equal(t, "false", r.URL.Query().Get("points_encoded"))
		if f.ghStatus != 0 {
			w.WriteHeader(f.ghStatus)
			return
		}
		_, _ = w.Write([]byte(ghBody))
	})
	mux.HandleFunc("POST /ors/v2/directions/{profile}/geojson", func(w http.ResponseWriter, r *http.Request) {
		f.orsCalls.Add(1)
		f.orsAuth.Store(r.Header.Get("Authorization") + "|" + r.PathValue("profile"))
		if f.orsStatus != 0 {
			w.WriteHeader(f.orsStatus)
			return
		}
		_, _ = w.Write([]byte(orsBody))
	})
	return mux
}

func newTestService(t *testing.T, api *fakeAPI, ghKey, orsKey string) *Service {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig().Routing
	cfg.NominatimURL = server.URL
	cfg.GraphHopperURL = server.URL + "/gh"
	cfg.ORSURL = server.URL + "/ors"
	cfg.GraphHopperKey = ghKey
	cfg.ORSKey = orsKey

	rc := request.New(newMemCache(), nil, config.RequestConfig{Retries: 1})
	return NewService(rc, cfg)
}

func planReq(mode model.TravelMode) PlanRequest {
	return PlanRequest{Start: "Alexanderplatz", End: "Brandenburger Tor", TravelMode: mode, Style: model.StyleNoir}
}

func TestPlan_GraphHopper(t *testing.T) {
	api := &fakeAPI{}
	s := newTestService(t, api, "gh-key", "ors-key")

	r, err := s.Plan(context.Background(), planReq(model.TravelModeWalking))
	require.NoError(t, err)

	assert.Equal(t, "Alexanderplatz, Berlin", r.StartAddress)
	assert.Equal(t, "Brandenburger Tor, Berlin", r.EndAddress)
	assert.InDelta(t, 52.5219, r.Start.Lat, 1e-9)
	assert.InDelta(t, 1908.0, r.DurationSeconds, 1e-9, "GraphHopper time is in milliseconds")
	assert.Equal(t, "2.7km", r.Distance)
	assert.Equal(t, "32 min", r.Duration)
	assert.Len(t, r.Geometry, 3)
	assert.Equal(t, model.StyleNoir, r.Style)
	assert.Zero(t, api.orsCalls.Load())
}

func TestPlan_FallsThroughToORS(t *testing.T) {
	api := &fakeAPI{ghStatus: http.StatusUnauthorized}
	s := newTestService(t, api, "gh-key", "ors-key")

	r, err := s.Plan(context.Background(), planReq(model.TravelModeDriving))
	require.NoError(t, err)

	assert.Equal(t, int32(1), api.ghCalls.Load())
	assert.Equal(t, "ors-key|driving-car", api.orsAuth.Load())
	assert.InDelta(t, 1944.0, r.DurationSeconds, 1e-9)
	assert.InDelta(t, 2700.0, r.DistanceMeters, 1e-9)
	assert.Len(t, r.Geometry, 2)
}

func TestPlan_StraightLineFallback(t *testing.T) {
	tests := []struct {
		name   string
		orsKey string
		status int
		mode   model.TravelMode
		speed  float64
	}{
		{name: "No keys, walking", mode: model.TravelModeWalking, speed: 1.4},
		{name: "Placeholder key, driving", orsKey: "YOUR_API_KEY_HERE", mode: model.TravelModeDriving, speed: 8.3},
		{name: "ORS failing", orsKey: "ors-key", status: http.StatusBadRequest, mode: model.TravelModeWalking, speed: 1.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{orsStatus: tt.status}
			s := newTestService(t, api, "", tt.orsKey)

			r, err := s.Plan(context.Background(), planReq(tt.mode))
			require.NoError(t, err)

			assert.Zero(t, api.ghCalls.Load())
			// Alexanderplatz to Brandenburger Tor is about 2.5 km as the crow flies.
			assert.InDelta(t, 2490, r.DistanceMeters, 60)
			assert.InDelta(t, r.DistanceMeters/tt.speed, r.DurationSeconds, 1e-6)
			assert.Len(t, r.Geometry, fallbackSteps+1)
		})
	}
}

func TestPlan_Errors(t *testing.T) {
	api := &fakeAPI{}
	s := newTestService(t, api, "", "")

	_, err := s.Plan(context.Background(), PlanRequest{Start: "Atlantis", End: "Brandenburger Tor"})
	assert.True(t, errors.Is(err, ErrAddressNotFound))

	_, err = s.Plan(context.Background(), PlanRequest{Start: "Alexanderplatz", End: "Brandenburger Tor", TravelMode: "FLYING"})
	assert.Error(t, err)

	_, err = s.Plan(context.Background(), PlanRequest{Start: "Alexanderplatz", End: "Brandenburger Tor", Style: "SCIFI"})
	assert.Error(t, err)

	// Same start and end cannot carry a story.
	_, err = s.Plan(context.Background(), PlanRequest{Start: "Alexanderplatz", End: "Alexanderplatz"})
	assert.ErrorIs(t, err, model.ErrRouteDuration)
}

func TestSearch(t *testing.T) {
	api := &fakeAPI{}
	s := newTestService(t, api, "", "")

	res, err := s.Search(context.Background(), "  Alexanderplatz ")
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Alexanderplatz, Berlin", res[0].DisplayName)

	// Cached on the second lookup.
	_, err = s.Search(context.Background(), "Alexanderplatz")
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.searches.Load())

	res, err = s.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = s.Search(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestReverse(t *testing.T) {
	s := newTestService(t, &fakeAPI{}, "", "")

	name := s.Reverse(context.Background(), model.Location{Lat: 52.517, Lng: 13.389})
	assert.Equal(t, "Unter den Linden, Berlin", name)

	name = s.Reverse(context.Background(), model.Location{Lat: 0, Lng: 0})
	assert.True(t, strings.HasPrefix(name, "Location: 0.0000, 0.0000"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "850m", FormatDistance(849.6))
	assert.Equal(t, "1.0km", FormatDistance(1000))
	assert.Equal(t, "12.3km", FormatDistance(12345))

	assert.Equal(t, "0 min", FormatDuration(20))
	assert.Equal(t, "15 min", FormatDuration(900))
	assert.Equal(t, "1h 5min", FormatDuration(3900))
	assert.Equal(t, "2h 0min", FormatDuration(7199))
}

func TestUsableKey(t *testing.T) {
	assert.False(t, usableKey(""))
	assert.False(t, usableKey("  "))
	assert.False(t, usableKey("YOUR_GRAPHHOPPER_KEY_HERE"))
	assert.True(t, usableKey("abc123"))
}
