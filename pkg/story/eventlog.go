package story

import (
	"fmt"

	"github.com/4ndr3jS/TravelStory/pkg/logging"
	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// EventLog writes story milestones to the event log. Per-segment progress is
// left to the server log.
func EventLog() Observer {
	return ObserverFunc(func(e Event) {
		if ev := milestone(e); ev != nil {
			logging.LogEvent(ev)
		}
	})
}

func milestone(e Event) *model.StoryEvent {
	ev := &model.StoryEvent{Timestamp: e.At, StoryID: e.StoryID}
	route := ""
	if r := e.Snapshot.Route; r != nil {
		route = fmt.Sprintf("%s to %s", r.StartAddress, r.EndAddress)
	}

	switch e.Type {
	case EventStoryStarted, EventStoryRestored:
		ev.Type = model.EventStoryStarted
		ev.Title = "Story started"
		if e.Type == EventStoryRestored {
			ev.Title = "Story restored"
		}
		ev.Summary = fmt.Sprintf("%s, %d segments, %s", route, e.Snapshot.Total, styleOf(e.Snapshot))
	case EventStoryFailed:
		ev.Type = model.EventStoryFailed
		ev.Title = "Story failed"
		if e.Error != nil {
			ev.Summary = e.Error.Message
		}
	case EventSegmentAdded:
		if e.Segment == nil {
			return nil
		}
		ev.Type = model.EventSegmentAdded
		ev.Title = fmt.Sprintf("Segment %d of %d", e.Segment.Index, e.Snapshot.Total)
	case EventBatchFinished:
		if e.Error == nil {
			return nil
		}
		ev.Type = model.EventBatchFailed
		ev.Title = "Batch stopped"
		ev.Summary = e.Error.Message
	case EventStoryExhausted:
		ev.Type = model.EventStoryExhausted
		ev.Title = "Story complete"
		ev.Summary = fmt.Sprintf("%d segments", e.Snapshot.Buffered)
	case EventStoryReset:
		ev.Type = model.EventStoryReset
		ev.Title = "Story reset"
	default:
		return nil
	}
	return ev
}

func styleOf(s Snapshot) string {
	if s.Route == nil {
		return ""
	}
	return string(s.Route.Style)
}
