// Package geo provides great-circle helpers for route geometry.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/4ndr3jS/TravelStory/pkg/model"
)

// Distance calculates the Haversine distance between two locations in meters.
func Distance(a, b model.Location) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point())
}

// Bearing calculates the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b model.Location) float64 {
	return math.Mod(geo.Bearing(a.Point(), b.Point())+360.0, 360.0)
}

// Length returns the Haversine length of a line in meters.
func Length(ls orb.LineString) float64 {
	if len(ls) < 2 {
		return 0
	}
	return geo.LengthHaversine(ls)
}

// StraightLine returns a great-circle path from a to b with n equal steps.
func StraightLine(a, b model.Location, n int) orb.LineString {
	if n < 1 {
		n = 1
	}
	start, end := a.Point(), b.Point()
	total := geo.DistanceHaversine(start, end)

	ls := make(orb.LineString, 0, n+1)
	ls = append(ls, start)
	for i := 1; i < n; i++ {
		// Re-aim at the end from the previous point so the path follows the great circle.
		prev := ls[i-1]
		step := total / float64(n)
		ls = append(ls, geo.PointAtBearingAndDistance(prev, geo.Bearing(prev, end), step))
	}
	return append(ls, end)
}

// PointAt returns the point at fraction f (clamped to [0, 1]) of the line's length.
func PointAt(ls orb.LineString, f float64) (model.Location, bool) {
	if len(ls) == 0 {
		return model.Location{}, false
	}
	f = math.Max(0, math.Min(1, f))
	if len(ls) == 1 || f == 0 {
		return toLocation(ls[0]), true
	}

	target := Length(ls) * f
	for i := 1; i < len(ls); i++ {
		seg := geo.DistanceHaversine(ls[i-1], ls[i])
		if target <= seg && seg > 0 {
			p := geo.PointAtBearingAndDistance(ls[i-1], geo.Bearing(ls[i-1], ls[i]), target)
			return toLocation(p), true
		}
		target -= seg
	}
	return toLocation(ls[len(ls)-1]), true
}

func toLocation(p orb.Point) model.Location {
	return model.Location{Lat: p.Lat(), Lng: p.Lon()}
}
