package story

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// fakeGen is a scriptable generator. Hooks run inside the timeout wrapper.
type fakeGen struct {
	mu sync.Mutex

	outlineFn func(ctx context.Context, total int) ([]string, error)
	segmentFn func(ctx context.Context, index int, previous string) (string, error)

	outlineCalls int
	segmentCalls []int
	previous     map[int]string
}

func newFakeGen() *fakeGen {
	return &fakeGen{previous: make(map[int]string)}
}

func (f *fakeGen) GenerateOutline(ctx context.Context, route *model.Route, total int) ([]string, error) {
	f.mu.Lock()
	f.outlineCalls++
	fn := f.outlineFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, total)
	}
	out := make([]string, total)
	for i := range out {
		out[i] = fmt.Sprintf("beat %d", i+1)
	}
	return out, nil
}

func (f *fakeGen) GenerateSegment(ctx context.Context, route *model.Route, index, total int, outline, previous string) (string, error) {
	f.mu.Lock()
	f.segmentCalls = append(f.segmentCalls, index)
	f.previous[index] = previous
	fn := f.segmentFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, index, previous)
	}
	return fmt.Sprintf("text %d", index), nil
}

func (f *fakeGen) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.segmentCalls...)
}

func testRoute(durationSeconds float64) *model.Route {
	return &model.Route{
		StartAddress:    "Old Town Square",
		EndAddress:      "Charles Bridge",
		TravelMode:      model.TravelModeWalking,
		DurationSeconds: durationSeconds,
		Duration:        "15 min",
		Distance:        "1.2 km",
		Style:           model.StyleNoir,
	}
}

// recorder collects events delivered by the controller.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnStoryEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func startController(t *testing.T, gen *fakeGen, cfg Config) (*Controller, *recorder) {
	t.Helper()
	c := NewController(gen, gen, cfg)
	rec := &recorder{}
	c.AddObserver(rec)
	c.Start(context.Background())
	t.Cleanup(c.Stop)
	return c, rec
}

// waitIdle waits until no batch is in flight.
func waitIdle(t *testing.T, c *Controller) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := c.Snapshot()
		if !s.Generating && s.Phase != PhaseOutlineGenerating {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("controller still generating: %+v", c.Snapshot())
	return Snapshot{}
}
