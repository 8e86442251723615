// Package session persists the active story and resumes it after a restart.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/store"
	"github.com/4ndr3jS/TravelStory/pkg/story"
)

// ActiveStoryKey is the state key holding the ID of the story to resume.
const ActiveStoryKey = "active_story"

// SnapshotSource is the part of the controller the persister reads.
type SnapshotSource interface {
	Snapshot() story.Snapshot
}

// Store is the persistence the session layer needs.
type Store interface {
	store.StoryStore
	store.StateStore
}

// Persister writes the controller state to the store whenever it changed.
// It observes controller events to know when, and reads the published
// snapshot to know what.
type Persister struct {
	src   SnapshotSource
	st    Store
	dirty atomic.Bool

	mu       sync.Mutex
	activeID string
}

// NewPersister creates a persister.
func NewPersister(src SnapshotSource, st Store) *Persister {
	return &Persister{src: src, st: st}
}

// OnStoryEvent implements story.Observer.
func (p *Persister) OnStoryEvent(e story.Event) {
	switch e.Type {
	case story.EventStoryStarted, story.EventStoryRestored, story.EventSegmentAdded,
		story.EventCursorMoved, story.EventStoryReset, story.EventStoryExhausted:
		p.dirty.Store(true)
	}
}

// Run flushes every interval until ctx is done, then flushes once more.
func (p *Persister) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := p.Flush(fctx); err != nil {
				slog.Error("Session: final save failed", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := p.Flush(ctx); err != nil {
				slog.Warn("Session: save failed", "error", err)
			}
		}
	}
}

// Flush saves the current story if anything changed since the last flush.
func (p *Persister) Flush(ctx context.Context) error {
	if !p.dirty.Swap(false) {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := p.src.Snapshot()
	if snap.Story == nil || snap.Route == nil {
		if p.activeID == "" {
			return nil
		}
		if err := p.st.DeleteState(ctx, ActiveStoryKey); err != nil {
			p.dirty.Store(true)
			return fmt.Errorf("failed to clear active story: %w", err)
		}
		slog.Debug("Session: cleared active story", "story_id", p.activeID)
		p.activeID = ""
		return nil
	}

	rec := &store.StoryRecord{Route: snap.Route, Story: snap.Story, Cursor: snap.CursorIndex}
	if err := p.st.SaveStory(ctx, rec); err != nil {
		p.dirty.Store(true)
		return fmt.Errorf("failed to save story %s: %w", snap.Story.ID, err)
	}
	if p.activeID != snap.Story.ID {
		if err := p.st.SetState(ctx, ActiveStoryKey, snap.Story.ID); err != nil {
			p.dirty.Store(true)
			return fmt.Errorf("failed to mark active story: %w", err)
		}
		p.activeID = snap.Story.ID
	}
	slog.Debug("Session: saved story", "story_id", snap.Story.ID, "buffered", len(snap.Story.Segments), "cursor", snap.CursorIndex)
	return nil
}

// track records the story restored at startup as the active one.
func (p *Persister) track(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeID = id
}
