package model

import "time"

// StoryEventType classifies milestones written to the event log.
type StoryEventType string

const (
	EventStoryStarted   StoryEventType = "story_started"
	EventStoryFailed    StoryEventType = "story_failed"
	EventSegmentAdded   StoryEventType = "segment_added"
	EventBatchFailed    StoryEventType = "batch_failed"
	EventStoryExhausted StoryEventType = "story_exhausted"
	EventStoryReset     StoryEventType = "story_reset"
)

// StoryEvent is a human-readable milestone of a story session.
type StoryEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      StoryEventType `json:"type"`
	StoryID   string         `json:"story_id,omitempty"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary,omitempty"`
}
