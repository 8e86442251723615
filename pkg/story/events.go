package story

import (
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// EventType names a controller state change.
type EventType string

const (
	EventStoryStarted   EventType = "story_started"
	EventStoryFailed    EventType = "story_failed"
	EventStoryRestored  EventType = "story_restored"
	EventBatchStarted   EventType = "batch_started"
	EventSegmentPending EventType = "segment_requested"
	EventSegmentAdded   EventType = "segment_appended"
	EventBatchFinished  EventType = "batch_finished"
	EventStoryExhausted EventType = "story_exhausted"
	EventCursorMoved    EventType = "cursor_moved"
	EventStoryReset     EventType = "story_reset"
)

// Event is delivered to observers after the controller state changed.
type Event struct {
	Type     EventType           `json:"type"`
	At       time.Time           `json:"at"`
	StoryID  string              `json:"story_id,omitempty"`
	Segment  *model.StorySegment `json:"segment,omitempty"`
	Error    *ErrorInfo          `json:"error,omitempty"`
	Duration time.Duration       `json:"duration,omitempty"` // batch or outline latency
	Snapshot Snapshot            `json:"snapshot"`
}

// Observer receives controller events. It is called from the controller
// goroutine and must not block.
type Observer interface {
	OnStoryEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnStoryEvent implements Observer.
func (f ObserverFunc) OnStoryEvent(e Event) { f(e) }
