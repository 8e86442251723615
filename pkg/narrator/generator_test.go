package narrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4ndr3jS/TravelStory/pkg/config"
	"github.com/4ndr3jS/TravelStory/pkg/llm"
	"github.com/4ndr3jS/TravelStory/pkg/llm/prompts"
	"github.com/4ndr3jS/TravelStory/pkg/model"
	"github.com/4ndr3jS/TravelStory/pkg/story"
)

var _ story.Generator = (*Generator)(nil)

type fakeLLM struct {
	json    string
	text    string
	err     error
	prompts map[string]string
}

func (f *fakeLLM) GenerateText(ctx context.Context, name, prompt string) (string, error) {
	f.prompts[name] = prompt
	return f.text, f.err
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, name, prompt string, target any) error {
	f.prompts[name] = prompt
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.json), target)
}

func (f *fakeLLM) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeLLM) HasProfile(name string) bool         { return true }

func newGenerator(t *testing.T, f *fakeLLM, contextChars int) *Generator {
	t.Helper()
	pm, err := prompts.NewDefault()
	require.NoError(t, err)
	cfg := config.DefaultConfig()
	cfg.Story.ContextChars = contextChars
	f.prompts = map[string]string{}
	return New(f, pm, config.NewProvider(cfg, nil))
}

func testRoute() *model.Route {
	return &model.Route{
		StartAddress:    "Nyhavn",
		EndAddress:      "Tivoli",
		TravelMode:      model.TravelModeWalking,
		DurationSeconds: 1500,
		Distance:        "2.1 km",
		Duration:        "25 min",
		Style:           model.StyleFantasy,
	}
}

func TestGenerateOutline(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		total   int
		want    []string
		wantErr bool
	}{
		{name: "Segments object", body: `{"segments": [" a ", "b"]}`, want: []string{"a", "b"}},
		{name: "Outline object", body: `{"outline": ["a"]}`, want: []string{"a"}},
		{name: "Bare array", body: `["a", "b", "c"]`, want: []string{"a", "b", "c"}},
		{name: "Extra entries truncated", body: `["a", "b", "c", "d"]`, total: 3, want: []string{"a", "b", "c"}},
		{name: "Missing field", body: `{"plan": ["a"]}`, wantErr: true},
		{name: "Empty entry", body: `{"segments": ["a", "  "]}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeLLM{json: tt.body}
			g := newGenerator(t, f, 0)
			total := tt.total
			if total == 0 {
				total = 9
			}

			got, err := g.GenerateOutline(context.Background(), testRoute(), total)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			p := f.prompts[llm.IntentOutline]
			assert.Contains(t, p, fmt.Sprintf("exactly %d consecutive segments", total))
			assert.Contains(t, p, "walking from Nyhavn to Tivoli")
			assert.Contains(t, p, "whimsical fantasy")
		})
	}
}

func TestGenerateOutline_LongOutlineStartsStory(t *testing.T) {
	f := &fakeLLM{json: `["a", "b", "c", "d"]`, text: "The river kept its secrets."}
	g := newGenerator(t, f, 0)

	c := story.NewController(g, g, story.DefaultConfig())
	c.Start(context.Background())
	defer c.Stop()

	route := testRoute()
	route.DurationSeconds = 500
	snap, err := c.StartStory(context.Background(), route)
	require.NoError(t, err)
	require.NotNil(t, snap.Story)
	assert.Equal(t, 3, snap.Story.TotalSegmentsEstimate)
	assert.Equal(t, []string{"a", "b", "c"}, snap.Story.Outline)
}

func TestGenerateOutline_ProviderError(t *testing.T) {
	boom := errors.New("quota")
	g := newGenerator(t, &fakeLLM{err: boom}, 0)
	_, err := g.GenerateOutline(context.Background(), testRoute(), 3)
	assert.ErrorIs(t, err, boom)
}

func TestGenerateSegment(t *testing.T) {
	f := &fakeLLM{text: "## Part 2: The Canal\n**Lanterns** swayed over the water.\n\n\n\nA gull laughed."}
	g := newGenerator(t, f, 14)

	previous := "The first part ended near the harbour bridge"
	text, err := g.GenerateSegment(context.Background(), testRoute(), 2, 9, "A lantern goes missing.", previous)
	require.NoError(t, err)
	assert.Equal(t, "Lanterns swayed over the water.\n\nA gull laughed.", text)

	p := f.prompts[llm.IntentSegment]
	assert.Contains(t, p, "part 2 of 9")
	assert.Contains(t, p, "A lantern goes missing.")
	assert.Contains(t, p, llm.PreviousStoryStart+"\nharbour bridge\n"+llm.PreviousStoryEnd, "only the tail of the story is sent")
	assert.NotContains(t, p, "first part")
	assert.Contains(t, p, "do not conclude it")
}

func TestGenerateSegment_FirstAndLast(t *testing.T) {
	f := &fakeLLM{text: "Once upon a time."}
	g := newGenerator(t, f, 0)

	_, err := g.GenerateSegment(context.Background(), testRoute(), 1, 1, "Everything happens.", "")
	require.NoError(t, err)

	p := f.prompts[llm.IntentSegment]
	assert.Contains(t, p, "opening of the story")
	assert.Contains(t, p, "final part")
	assert.False(t, strings.Contains(p, llm.PreviousStoryStart))
}

func TestCleanScript(t *testing.T) {
	assert.Equal(t, "Hello there.", cleanScript("  Title: A Walk\nHello *there*.  "))
	assert.Equal(t, "A\n\nB", cleanScript("# A\n\n\n\nB"))
}
