package api

import (
	"context"
	"sort"
	"sync"

	"github.com/4ndr3jS/TravelStory/pkg/model"
	"github.com/4ndr3jS/TravelStory/pkg/playback"
	"github.com/4ndr3jS/TravelStory/pkg/routing"
	"github.com/4ndr3jS/TravelStory/pkg/store"
	"github.com/4ndr3jS/TravelStory/pkg/story"
)

// fakeController records calls and returns canned results.
type fakeController struct {
	mu         sync.Mutex
	snap       story.Snapshot
	startErr   error
	cursorErr  error
	started    *model.Route
	restored   *model.AudioStory
	restoreErr error
	buffer     bool
	appStates  []story.AppState
	calls      []string
	resets     int
}

func (f *fakeController) StartStory(ctx context.Context, route *model.Route) (story.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = route
	if f.startErr != nil {
		return f.snap, f.startErr
	}
	f.snap.Phase = story.PhaseReady
	f.snap.Route = route
	return f.snap, nil
}

func (f *fakeController) Snapshot() story.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.snap = story.Snapshot{Phase: story.PhaseIdle}
	return nil
}

func (f *fakeController) BufferNext() (bool, error) { return f.buffer, nil }

func (f *fakeController) Advance() (story.Snapshot, error) { return f.cursor("advance", 0) }

func (f *fakeController) JumpTo(i int) (story.Snapshot, error) { return f.cursor("jump", i) }

func (f *fakeController) ReportPlaying(i int) (story.Snapshot, error) { return f.cursor("playing", i) }

func (f *fakeController) cursor(op string, i int) (story.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if f.cursorErr != nil {
		return f.snap, f.cursorErr
	}
	if op == "advance" {
		f.snap.CursorIndex++
	} else {
		f.snap.CursorIndex = i
	}
	return f.snap, nil
}

func (f *fakeController) HandleAppState(s story.AppState) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appStates = append(f.appStates, s)
	return s == story.AppStateActive, nil
}

func (f *fakeController) Restore(ctx context.Context, route *model.Route, st *model.AudioStory, cursor int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restoreErr != nil {
		return f.restoreErr
	}
	f.restored = st
	f.snap = story.Snapshot{Phase: story.PhaseReady, Route: route, Story: st, CursorIndex: cursor}
	return nil
}

// fakePlanner plans a fixed 20 minute route.
type fakePlanner struct {
	got routing.PlanRequest
	err error
}

func (p *fakePlanner) Plan(ctx context.Context, req routing.PlanRequest) (*model.Route, error) {
	p.got = req
	if p.err != nil {
		return nil, p.err
	}
	return &model.Route{
		StartAddress:    req.Start,
		EndAddress:      req.End,
		TravelMode:      req.TravelMode,
		DurationSeconds: 1200,
		Style:           req.Style,
		Voice:           req.Voice,
	}, nil
}

type fakeGeocoder struct {
	results []routing.GeocodeResult
	queries []string
}

func (g *fakeGeocoder) Search(ctx context.Context, query string) ([]routing.GeocodeResult, error) {
	g.queries = append(g.queries, query)
	return g.results, nil
}

func (g *fakeGeocoder) Reverse(ctx context.Context, loc model.Location) string {
	return "Kärntner Straße, Wien"
}

type fakeClips map[int]playback.Clip

func (f fakeClips) Clip(storyID string, index int) (playback.Clip, bool) {
	c, ok := f[index]
	return c, ok && c.StoryID == storyID
}

// memStore implements session.Store and store.StateStore in memory.
type memStore struct {
	mu      sync.Mutex
	stories map[string]*store.StoryRecord
	state   map[string]string
}

func newMemStore() *memStore {
	return &memStore{stories: map[string]*store.StoryRecord{}, state: map[string]string{}}
}

func (m *memStore) SaveStory(ctx context.Context, rec *store.StoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[rec.Story.ID] = rec
	return nil
}

func (m *memStore) GetStory(ctx context.Context, id string) (*store.StoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stories[id], nil
}

func (m *memStore) ListStories(ctx context.Context, limit int) ([]store.StorySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.StorySummary
	for id, rec := range m.stories {
		out = append(out, store.StorySummary{
			ID:       id,
			Total:    rec.Story.TotalSegmentsEstimate,
			Buffered: len(rec.Story.Segments),
			Cursor:   rec.Cursor,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) DeleteStory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stories, id)
	return nil
}

func (m *memStore) GetState(ctx context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state[key]
	return v, ok
}

func (m *memStore) SetState(ctx context.Context, key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[key] = val
	return nil
}

func (m *memStore) DeleteState(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, key)
	return nil
}
