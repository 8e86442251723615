package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4ndr3jS/TravelStory/pkg/model"
)

func TestMilestone(t *testing.T) {
	snap := Snapshot{Route: testRoute(1800), Total: 10, Buffered: 10}

	ev := milestone(Event{Type: EventStoryStarted, StoryID: "s1", Snapshot: snap})
	require.NotNil(t, ev)
	assert.Equal(t, model.EventStoryStarted, ev.Type)
	assert.Equal(t, "Old Town Square to Charles Bridge, 10 segments, NOIR", ev.Summary)

	ev = milestone(Event{Type: EventBatchFinished, Error: &ErrorInfo{Kind: KindSegmentTimeout, Message: "Segment 2 generation timed out"}, Snapshot: snap})
	require.NotNil(t, ev)
	assert.Equal(t, model.EventBatchFailed, ev.Type)
	assert.Equal(t, "Segment 2 generation timed out", ev.Summary)

	assert.Nil(t, milestone(Event{Type: EventBatchFinished, Snapshot: snap}), "clean batches are not milestones")
	assert.Nil(t, milestone(Event{Type: EventCursorMoved, Snapshot: snap}))

	ev = milestone(Event{Type: EventSegmentAdded, Segment: &model.StorySegment{Index: 4}, Snapshot: snap})
	require.NotNil(t, ev)
	assert.Equal(t, "Segment 4 of 10", ev.Title)
}
