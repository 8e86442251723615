package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4ndr3jS/TravelStory/pkg/llm"
)

func TestProvider_Outline(t *testing.T) {
	p := New(0)
	var res struct {
		Segments []string `json:"segments"`
	}
	err := p.GenerateJSON(context.Background(), llm.IntentOutline, "Plan the story as exactly 4 consecutive segments.", &res)
	require.NoError(t, err)
	assert.Len(t, res.Segments, 4)
	assert.Equal(t, "Mock plan for segment 4.", res.Segments[3])
}

func TestProvider_Segment(t *testing.T) {
	p := New(0)
	text, err := p.GenerateText(context.Background(), llm.IntentSegment, "You are narrating part 2 of 7 of an audio story")
	require.NoError(t, err)
	assert.Contains(t, text, "segment 2 of 7")
	assert.True(t, p.HasProfile(llm.IntentSegment))
	assert.NoError(t, p.HealthCheck(context.Background()))
}

func TestProvider_HonoursContext(t *testing.T) {
	p := New(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.GenerateText(ctx, llm.IntentSegment, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
