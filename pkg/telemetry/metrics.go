package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/4ndr3jS/TravelStory/pkg/playback"
	"github.com/4ndr3jS/TravelStory/pkg/story"
)

// StateSource is read on every collection for the gauges.
type StateSource interface {
	Snapshot() story.Snapshot
}

// RenderSource reports audio rendering counters.
type RenderSource interface {
	Stats() playback.Stats
}

// StoryMetrics records controller events as OpenTelemetry instruments.
// Observer callbacks only touch thread-safe instruments and never block.
type StoryMetrics struct {
	stories   metric.Int64Counter
	failures  metric.Int64Counter
	segments  metric.Int64Counter
	batches   metric.Int64Counter
	outlineMs metric.Float64Histogram
	batchMs   metric.Float64Histogram
}

// NewStoryMetrics registers the story instruments. src feeds the buffered,
// total and generating gauges and may be nil.
func NewStoryMetrics(m metric.Meter, src StateSource) (*StoryMetrics, error) {
	sm := &StoryMetrics{}
	var errs [8]error

	sm.stories, errs[0] = m.Int64Counter("travelstory.stories",
		metric.WithDescription("Stories started or restored"))
	sm.failures, errs[1] = m.Int64Counter("travelstory.generation.failures",
		metric.WithDescription("Outline and segment generation failures by kind"))
	sm.segments, errs[2] = m.Int64Counter("travelstory.segments.generated",
		metric.WithDescription("Segments appended to a story"))
	sm.batches, errs[3] = m.Int64Counter("travelstory.batches",
		metric.WithDescription("Finished generation batches"))
	sm.outlineMs, errs[4] = m.Float64Histogram("travelstory.outline.duration",
		metric.WithUnit("ms"), metric.WithDescription("Outline generation latency"))
	sm.batchMs, errs[5] = m.Float64Histogram("travelstory.batch.duration",
		metric.WithUnit("ms"), metric.WithDescription("Segment batch latency"))

	if src != nil {
		var buffered, generating metric.Int64ObservableGauge
		buffered, errs[6] = m.Int64ObservableGauge("travelstory.segments.buffered",
			metric.WithDescription("Segments available to the player"))
		generating, errs[7] = m.Int64ObservableGauge("travelstory.generating",
			metric.WithDescription("1 while a generation pass is in flight"))
		if errs[6] == nil && errs[7] == nil {
			_, err := m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
				snap := src.Snapshot()
				o.ObserveInt64(buffered, int64(snap.Buffered))
				g := int64(0)
				if snap.Generating {
					g = 1
				}
				o.ObserveInt64(generating, g)
				return nil
			}, buffered, generating)
			if err != nil {
				return nil, err
			}
		}
	}

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return sm, nil
}

// OnStoryEvent implements story.Observer.
func (sm *StoryMetrics) OnStoryEvent(e story.Event) {
	ctx := context.Background()
	switch e.Type {
	case story.EventStoryStarted:
		sm.stories.Add(ctx, 1, attrs(attribute.String("origin", "new"), style(e)))
		sm.outlineMs.Record(ctx, float64(e.Duration.Milliseconds()), attrs(attribute.Bool("ok", true)))
	case story.EventStoryRestored:
		sm.stories.Add(ctx, 1, attrs(attribute.String("origin", "restored"), style(e)))
	case story.EventStoryFailed:
		sm.outlineMs.Record(ctx, float64(e.Duration.Milliseconds()), attrs(attribute.Bool("ok", false)))
		sm.recordFailure(ctx, e)
	case story.EventSegmentAdded:
		sm.segments.Add(ctx, 1)
	case story.EventBatchFinished:
		ok := e.Error == nil
		sm.batches.Add(ctx, 1, attrs(attribute.Bool("ok", ok)))
		sm.batchMs.Record(ctx, float64(e.Duration.Milliseconds()), attrs(attribute.Bool("ok", ok)))
		if !ok {
			sm.recordFailure(ctx, e)
		}
	}
}

func (sm *StoryMetrics) recordFailure(ctx context.Context, e story.Event) {
	kind := "unknown"
	if e.Error != nil {
		kind = string(e.Error.Kind)
	}
	sm.failures.Add(ctx, 1, attrs(attribute.String("kind", kind)))
	slog.Debug("Telemetry: generation failure recorded", "kind", kind)
}

func style(e story.Event) attribute.KeyValue {
	s := ""
	if e.Snapshot.Route != nil {
		s = string(e.Snapshot.Route.Style)
	}
	return attribute.String("style", s)
}

// RegisterRenderMetrics exposes the audio renderer counters.
func RegisterRenderMetrics(m metric.Meter, src RenderSource) error {
	rendered, err1 := m.Int64ObservableCounter("travelstory.audio.rendered",
		metric.WithDescription("Segment clips rendered"))
	failed, err2 := m.Int64ObservableCounter("travelstory.audio.failed",
		metric.WithDescription("Segment clips that failed to render"))
	pending, err3 := m.Int64ObservableGauge("travelstory.audio.pending",
		metric.WithDescription("Segments waiting for synthesis"))
	if err := errors.Join(err1, err2, err3); err != nil {
		return err
	}
	_, err := m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := src.Stats()
		engine := metric.WithAttributes(attribute.String("engine", s.Engine))
		o.ObserveInt64(rendered, s.Rendered, engine)
		o.ObserveInt64(failed, s.Failed, engine)
		o.ObserveInt64(pending, int64(s.Pending), engine)
		return nil
	}, rendered, failed, pending)
	return err
}
