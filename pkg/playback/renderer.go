// Package playback renders story segments to audio files for the player.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/audio"
	"github.com/4ndr3jS/TravelStory/pkg/story"
	"github.com/4ndr3jS/TravelStory/pkg/tts"
)

const renderTimeout = 90 * time.Second

// Clip is a rendered segment.
type Clip struct {
	StoryID    string        `json:"story_id"`
	Index      int           `json:"index"`
	Path       string        `json:"-"`
	Format     string        `json:"format"`
	Duration   time.Duration `json:"duration"`
	RenderedAt time.Time     `json:"rendered_at"`
}

// Stats summarizes renderer activity.
type Stats struct {
	Engine   string `json:"engine"`
	Rendered int64  `json:"rendered"`
	Failed   int64  `json:"failed"`
	Pending  int    `json:"pending"`
}

// Renderer turns appended segments into audio clips on disk. It observes the
// story controller and renders on its own goroutine, strictly one clip at a
// time. A nil engine disables rendering.
type Renderer struct {
	engine tts.Provider
	name   string
	dir    string
	queue  *Queue
	wake   chan struct{}

	mu        sync.RWMutex
	storyID   string
	clips     map[int]Clip
	listeners []func(Clip)

	rendered atomic.Int64
	failed   atomic.Int64
	now      func() time.Time
}

// NewRenderer creates a renderer writing to <dir>/<storyID>/<index>.<format>.
func NewRenderer(engine tts.Provider, name, dir string) *Renderer {
	if engine == nil {
		name = "none"
	}
	return &Renderer{
		engine: engine,
		name:   name,
		dir:    dir,
		queue:  NewQueue(),
		wake:   make(chan struct{}, 1),
		clips:  make(map[int]Clip),
		now:    time.Now,
	}
}

// Enabled reports whether an engine is configured.
func (r *Renderer) Enabled() bool { return r.engine != nil }

// OnRendered registers a callback invoked from the render goroutine after
// each clip is stored.
func (r *Renderer) OnRendered(fn func(Clip)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// OnStoryEvent implements story.Observer. It only updates in-memory state.
func (r *Renderer) OnStoryEvent(e story.Event) {
	if !r.Enabled() {
		return
	}
	switch e.Type {
	case story.EventStoryStarted:
		r.switchStory(e.StoryID)
	case story.EventStoryRestored:
		r.switchStory(e.StoryID)
		r.enqueueRestored(e)
	case story.EventSegmentAdded:
		if e.Segment == nil || e.StoryID != r.currentStory() {
			return
		}
		r.queue.Enqueue(job{StoryID: e.StoryID, Index: e.Segment.Index, Text: e.Segment.Text, Voice: voiceOf(e)}, false)
		r.signal()
	case story.EventCursorMoved:
		// The segment under the cursor is what the listener needs next.
		if r.queue.Promote(e.StoryID, e.Snapshot.CursorIndex+1) {
			r.signal()
		}
	case story.EventStoryReset:
		r.queue.Clear()
		r.switchStory("")
	}
}

func voiceOf(e story.Event) string {
	if e.Snapshot.Route == nil {
		return ""
	}
	return e.Snapshot.Route.Voice
}

func (r *Renderer) enqueueRestored(e story.Event) {
	st := e.Snapshot.Story
	if st == nil {
		return
	}
	voice := voiceOf(e)
	for _, seg := range st.Segments {
		r.queue.Enqueue(job{StoryID: st.ID, Index: seg.Index, Text: seg.Text, Voice: voice}, false)
	}
	r.queue.Promote(st.ID, e.Snapshot.CursorIndex+1)
	r.signal()
}

func (r *Renderer) switchStory(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storyID = id
	r.clips = make(map[int]Clip)
}

func (r *Renderer) currentStory() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.storyID
}

func (r *Renderer) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run renders queued segments until ctx is done.
func (r *Renderer) Run(ctx context.Context) {
	if !r.Enabled() {
		slog.Info("Playback: audio rendering disabled")
		return
	}
	for {
		j, ok := r.queue.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-r.wake:
				continue
			}
		}
		if ctx.Err() != nil {
			return
		}
		r.render(ctx, j)
	}
}

func (r *Renderer) render(ctx context.Context, j job) {
	if j.StoryID != r.currentStory() {
		return
	}
	dir := filepath.Join(r.dir, j.StoryID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.fail(j, fmt.Errorf("failed to create audio dir: %w", err))
		return
	}
	base := filepath.Join(dir, strconv.Itoa(j.Index))

	path, format := existingClip(base)
	if path == "" {
		start := r.now()
		rctx, cancel := context.WithTimeout(ctx, renderTimeout)
		f, err := r.engine.Synthesize(rctx, j.Text, j.Voice, base)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.fail(j, err)
			return
		}
		format, path = f, base+"."+f
		if err := tts.VerifyAudioFile(path); err != nil {
			_ = os.Remove(path)
			r.fail(j, err)
			return
		}
		slog.Debug("Playback: Segment rendered", "story_id", j.StoryID, "index", j.Index, "took", r.now().Sub(start).Round(time.Millisecond))
	}

	dur, err := audio.GetDuration(path)
	if err != nil {
		slog.Debug("Playback: could not measure clip", "path", path, "error", err)
	}
	clip := Clip{StoryID: j.StoryID, Index: j.Index, Path: path, Format: format, Duration: dur, RenderedAt: r.now()}

	r.mu.Lock()
	if r.storyID != j.StoryID {
		r.mu.Unlock()
		return
	}
	r.clips[j.Index] = clip
	listeners := append([]func(Clip){}, r.listeners...)
	r.mu.Unlock()

	r.rendered.Add(1)
	for _, fn := range listeners {
		fn(clip)
	}
}

// existingClip finds a clip rendered by an earlier run.
func existingClip(base string) (path, format string) {
	for _, f := range []string{"mp3", "wav"} {
		p := base + "." + f
		if tts.VerifyAudioFile(p) == nil {
			return p, f
		}
	}
	return "", ""
}

func (r *Renderer) fail(j job, err error) {
	r.failed.Add(1)
	slog.Warn("Playback: Segment render failed", "story_id", j.StoryID, "index", j.Index, "engine", r.name, "error", err)
}

// Clip returns the rendered clip of a segment.
func (r *Renderer) Clip(storyID string, index int) (Clip, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if storyID != r.storyID {
		return Clip{}, false
	}
	c, ok := r.clips[index]
	return c, ok
}

// Clips lists the rendered clips of the current story in index order.
func (r *Renderer) Clips() []Clip {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Clip, 0, len(r.clips))
	for _, c := range r.clips {
		out = append(out, c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Index < out[k].Index })
	return out
}

// Stats returns counters for the stats endpoint.
func (r *Renderer) Stats() Stats {
	return Stats{
		Engine:   r.name,
		Rendered: r.rendered.Load(),
		Failed:   r.failed.Load(),
		Pending:  r.queue.Count(),
	}
}
