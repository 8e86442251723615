package story

import "math"

const (
	// secondsPerSegment is the travel time covered by one narrative unit.
	secondsPerSegment = 180
	// maxSegments bounds outline size for very long trips.
	maxSegments = 60
)

// CalculateTotalSegments maps trip duration to a segment count.
// The result is always >= 1 and monotonic non-decreasing in duration.
func CalculateTotalSegments(durationSeconds float64) int {
	if math.IsNaN(durationSeconds) || durationSeconds <= 0 {
		return 1
	}
	if durationSeconds >= maxSegments*secondsPerSegment {
		return maxSegments
	}
	n := int(math.Ceil(durationSeconds / secondsPerSegment))
	if n < 1 {
		return 1
	}
	return n
}
