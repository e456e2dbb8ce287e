package geo

import (
	"fmt"
	"math"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Area returns the planar area of a projected multipolygon in square meters.
// Holes subtract from their outer rings.
func Area(mp orb.MultiPolygon) float64 {
	return planar.Area(mp)
}

// IntersectionArea computes the area of overlap between two repaired,
// projected multipolygons. Both inputs must be in the same projected
// coordinate system; mixing buckets produces garbage.
func IntersectionArea(a, b orb.MultiPolygon) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}
	if !boundsOverlap(a, b) {
		return 0, nil
	}
	inter, err := polygol.Intersection(toGeom(a), toGeom(b))
	if err != nil {
		return 0, fmt.Errorf("intersection: %w", err)
	}
	mp := fromGeom(inter)
	if len(mp) == 0 {
		return 0, nil
	}
	area := planar.Area(mp)
	if math.IsNaN(area) || math.IsInf(area, 0) {
		return 0, fmt.Errorf("non-finite intersection area")
	}
	if area < 0 {
		area = -area
	}
	return area, nil
}

// boundsOverlap is a cheap bounding-box prefilter so the exact clip only
// runs on candidate pairs.
func boundsOverlap(a, b orb.MultiPolygon) bool {
	ab, bb := a.Bound(), b.Bound()
	return ab.Intersects(bb)
}
