package playback

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4ndr3jS/TravelStory/pkg/model"
	"github.com/4ndr3jS/TravelStory/pkg/story"
	"github.com/4ndr3jS/TravelStory/pkg/tts"
)

var _ story.Observer = (*Renderer)(nil)

// wavEngine writes one second of silence per call.
type wavEngine struct {
	mu     sync.Mutex
	calls  []string
	voices []string
	fail   map[string]bool
	block  chan struct{}
}

func (w *wavEngine) Synthesize(ctx context.Context, text, voice, outputPath string) (string, error) {
	w.mu.Lock()
	w.calls = append(w.calls, text)
	w.voices = append(w.voices, voice)
	fail := w.fail[text]
	block := w.block
	w.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", tts.NewFatalError(500, "engine down")
	}

	f, err := os.Create(outputPath + ".wav")
	if err != nil {
		return "", err
	}
	defer f.Close()
	format := beep.Format{SampleRate: 8000, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, beep.Silence(8000), format); err != nil {
		return "", err
	}
	return "wav", nil
}

func (w *wavEngine) Voices(context.Context) ([]tts.Voice, error) { return nil, nil }

func (w *wavEngine) texts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func snapshot(voice string, cursor int, segs ...model.StorySegment) story.Snapshot {
	return story.Snapshot{
		Route:       &model.Route{Voice: voice},
		Story:       &model.AudioStory{ID: "s1", TotalSegmentsEstimate: 10, Segments: segs},
		CursorIndex: cursor,
	}
}

func appended(i int, text string) story.Event {
	seg := model.StorySegment{Index: i, Text: text}
	return story.Event{Type: story.EventSegmentAdded, StoryID: "s1", Segment: &seg, Snapshot: snapshot("de-DE-KatjaNeural", 0)}
}

func startRenderer(t *testing.T, engine tts.Provider) (*Renderer, string) {
	t.Helper()
	dir := t.TempDir()
	r := NewRenderer(engine, "fake", dir)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r, dir
}

func TestRenderer_RendersAppendedSegments(t *testing.T) {
	engine := &wavEngine{}
	r, dir := startRenderer(t, engine)

	var mu sync.Mutex
	var notified []int
	r.OnRendered(func(c Clip) {
		mu.Lock()
		notified = append(notified, c.Index)
		mu.Unlock()
	})

	r.OnStoryEvent(story.Event{Type: story.EventStoryStarted, StoryID: "s1", Snapshot: snapshot("", 0)})
	r.OnStoryEvent(appended(1, "one"))
	r.OnStoryEvent(appended(2, "two"))

	require.Eventually(t, func() bool {
		_, ok := r.Clip("s1", 2)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	c, ok := r.Clip("s1", 1)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "s1", "1.wav"), c.Path)
	assert.Equal(t, "wav", c.Format)
	assert.Equal(t, time.Second, c.Duration)

	assert.Equal(t, []string{"one", "two"}, engine.texts())
	engine.mu.Lock()
	assert.Equal(t, "de-DE-KatjaNeural", engine.voices[0])
	engine.mu.Unlock()

	clips := r.Clips()
	require.Len(t, clips, 2)
	assert.Equal(t, 1, clips[0].Index)

	mu.Lock()
	assert.Equal(t, []int{1, 2}, notified)
	mu.Unlock()

	_, ok = r.Clip("other", 1)
	assert.False(t, ok)
	assert.Equal(t, int64(2), r.Stats().Rendered)
}

func TestRenderer_FailureIsCounted(t *testing.T) {
	engine := &wavEngine{fail: map[string]bool{"bad": true}}
	r, _ := startRenderer(t, engine)

	r.OnStoryEvent(story.Event{Type: story.EventStoryStarted, StoryID: "s1"})
	r.OnStoryEvent(appended(1, "bad"))
	r.OnStoryEvent(appended(2, "good"))

	require.Eventually(t, func() bool {
		_, ok := r.Clip("s1", 2)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := r.Clip("s1", 1)
	assert.False(t, ok)
	assert.Equal(t, int64(1), r.Stats().Failed)
}

func TestRenderer_ResetDropsPendingWork(t *testing.T) {
	engine := &wavEngine{block: make(chan struct{})}
	r, _ := startRenderer(t, engine)

	r.OnStoryEvent(story.Event{Type: story.EventStoryStarted, StoryID: "s1"})
	r.OnStoryEvent(appended(1, "one"))
	r.OnStoryEvent(appended(2, "two"))

	require.Eventually(t, func() bool { return len(engine.texts()) == 1 }, time.Second, 5*time.Millisecond)
	r.OnStoryEvent(story.Event{Type: story.EventStoryReset, StoryID: "s1"})
	close(engine.block)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"one"}, engine.texts(), "queued segment of a reset story is not rendered")
	_, ok := r.Clip("s1", 1)
	assert.False(t, ok, "in-flight clip of a reset story is discarded")
	assert.Zero(t, r.Stats().Pending)
}

func TestRenderer_RestoreReusesExistingClips(t *testing.T) {
	engine := &wavEngine{}
	r, dir := startRenderer(t, engine)

	// A clip from an earlier run.
	first := &wavEngine{}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "s1"), 0o755))
	_, err := first.Synthesize(context.Background(), "one", "", filepath.Join(dir, "s1", "1"))
	require.NoError(t, err)

	segs := []model.StorySegment{{Index: 1, Text: "one"}, {Index: 2, Text: "two"}, {Index: 3, Text: "three"}}
	r.OnStoryEvent(story.Event{Type: story.EventStoryRestored, StoryID: "s1", Snapshot: snapshot("", 2, segs...)})

	require.Eventually(t, func() bool { return len(r.Clips()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"three", "two"}, engine.texts(), "cursor segment first, existing clip reused")
}

func TestRenderer_Disabled(t *testing.T) {
	r := NewRenderer(nil, "edge-tts", t.TempDir())
	assert.False(t, r.Enabled())
	assert.Equal(t, "none", r.Stats().Engine)

	r.OnStoryEvent(appended(1, "one"))
	assert.Zero(t, r.Stats().Pending)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)
}

func TestExistingClip(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "4")
	p, _ := existingClip(base)
	assert.Empty(t, p)

	require.NoError(t, os.WriteFile(base+".mp3", make([]byte, 10), 0o644))
	p, _ = existingClip(base)
	assert.Empty(t, p, "truncated clips are not reused")

	require.NoError(t, os.WriteFile(base+".mp3", make([]byte, tts.MinAudioSize+1), 0o644))
	p, f := existingClip(base)
	assert.Equal(t, base+".mp3", p)
	assert.Equal(t, "mp3", f)
}

