package geo

import (
	"fmt"
	"math"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
)

// Repair makes a multipolygon safe for overlay: rings are closed,
// consecutive duplicate vertices removed, degenerate rings dropped, and
// self-intersections resolved by re-noding the geometry through a self-union.
// Overlay on unrepaired geometry is undefined and must never be attempted.
func Repair(mp orb.MultiPolygon) (orb.MultiPolygon, error) {
	cleaned := clean(mp)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no usable rings after cleaning")
	}
	if err := checkFinite(cleaned); err != nil {
		return nil, err
	}

	g := toGeom(cleaned)
	// A union of the geometry with itself re-nodes crossing segments and
	// returns a well-formed multipolygon covering the same region.
	unioned, err := polygol.Union(g, g)
	if err != nil {
		return nil, fmt.Errorf("self-union: %w", err)
	}
	repaired := fromGeom(unioned)
	if len(repaired) == 0 {
		return nil, fmt.Errorf("geometry vanished during repair")
	}
	return repaired, nil
}

// clean drops empty polygons, opens/closes rings consistently, and removes
// consecutive duplicate vertices. Rings with fewer than four points after
// closing carry no area and are dropped.
func clean(mp orb.MultiPolygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, 0, len(mp))
	for _, poly := range mp {
		cleanPoly := make(orb.Polygon, 0, len(poly))
		for ri, ring := range poly {
			r := dedupe(ring)
			if len(r) > 0 && r[0] != r[len(r)-1] {
				r = append(r, r[0])
			}
			if len(r) < 4 {
				// An outer ring this small voids the whole polygon; a
				// degenerate hole is simply dropped.
				if ri == 0 {
					cleanPoly = nil
					break
				}
				continue
			}
			cleanPoly = append(cleanPoly, r)
		}
		if len(cleanPoly) > 0 {
			out = append(out, cleanPoly)
		}
	}
	return out
}

func dedupe(ring orb.Ring) orb.Ring {
	if len(ring) == 0 {
		return nil
	}
	out := make(orb.Ring, 0, len(ring))
	out = append(out, ring[0])
	for _, p := range ring[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

// checkFinite rejects NaN/Inf coordinates before they can poison overlay
// results.
func checkFinite(mp orb.MultiPolygon) error {
	for _, poly := range mp {
		for _, ring := range poly {
			for _, p := range ring {
				if !isFinite(p[0]) || !isFinite(p[1]) {
					return fmt.Errorf("non-finite coordinate (%g, %g)", p[0], p[1])
				}
			}
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// toGeom converts an orb multipolygon to polygol's nested-slice form.
func toGeom(mp orb.MultiPolygon) polygol.Geom {
	g := make(polygol.Geom, len(mp))
	for i, poly := range mp {
		g[i] = make([][][]float64, len(poly))
		for j, ring := range poly {
			g[i][j] = make([][]float64, len(ring))
			for k, p := range ring {
				g[i][j][k] = []float64{p[0], p[1]}
			}
		}
	}
	return g
}

// fromGeom converts polygol output back to an orb multipolygon, skipping
// degenerate rings.
func fromGeom(g polygol.Geom) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(g))
	for _, poly := range g {
		p := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			if len(ring) < 4 {
				continue
			}
			r := make(orb.Ring, len(ring))
			for k, pt := range ring {
				r[k] = orb.Point{pt[0], pt[1]}
			}
			p = append(p, r)
		}
		if len(p) > 0 {
			mp = append(mp, p)
		}
	}
	return mp
}
