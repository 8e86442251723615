package story

import (
	"context"

	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// OutlineGenerator produces one short prompt per planned segment.
type OutlineGenerator interface {
	GenerateOutline(ctx context.Context, route *model.Route, total int) ([]string, error)
}

// SegmentGenerator produces the narrative text of one segment.
// index is 1-based; previous is the space-joined text of all earlier segments.
type SegmentGenerator interface {
	GenerateSegment(ctx context.Context, route *model.Route, index, total int, outline, previous string) (string, error)
}

// Generator is implemented by adapters providing both capabilities.
type Generator interface {
	OutlineGenerator
	SegmentGenerator
}
