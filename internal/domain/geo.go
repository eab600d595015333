package domain

import "math"

const (
	EarthRadiusMeters = 6371000.0

	// Consecutive stops closer than this are treated as the same point when
	// building a routing query.
	NearDuplicateMeters = 30.0
)

// HaversineMeters returns the great-circle surface distance between two points.
func HaversineMeters(a, b Coordinates) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FallbackSeconds estimates travel time over the straight-line distance at the
// given average speed.
func FallbackSeconds(a, b Coordinates, speedMps float64) float64 {
	if speedMps <= 0 {
		return math.Inf(1)
	}
	return HaversineMeters(a, b) / speedMps
}

// CollapseNearDuplicates drops every point closer than NearDuplicateMeters to
// the previously kept point.
//
// remap[i] is the index in kept that original point i was folded into, so
// stops collapsed together share the same cumulative travel time.
func CollapseNearDuplicates(points []Coordinates) (kept []Coordinates, remap []int) {
	kept = make([]Coordinates, 0, len(points))
	remap = make([]int, len(points))

	for i, p := range points {
		if len(kept) > 0 && HaversineMeters(kept[len(kept)-1], p) < NearDuplicateMeters {
			remap[i] = len(kept) - 1
			continue
		}
		kept = append(kept, p)
		remap[i] = len(kept) - 1
	}

	return kept, remap
}
