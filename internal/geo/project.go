package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// earthRadius is the spherical radius in meters. Spherical formulas are
// sufficient here: weights are ratios of areas computed in the same
// projection, so the sphere/ellipsoid difference cancels.
const earthRadius = 6378137.0

// conus projection parameters (continental Albers equal-area conic):
// standard parallels 29.5°N / 45.5°N, origin 23°N 96°W.
var conusProjection = albersEqualArea(23.0, -96.0, 29.5, 45.5)

// polar projection: Lambert azimuthal equal-area, north polar aspect,
// central meridian 150°W (Alaska-centered).
var polarProjection = polarAzimuthalEqualArea(-150.0)

// Projection returns the point mapper for a region bucket. Unknown buckets
// fall back to the continental projection.
func Projection(b RegionBucket) func(orb.Point) orb.Point {
	if b == BucketPolar {
		return polarProjection
	}
	return conusProjection
}

// ProjectMultiPolygon maps a geographic multipolygon into the equal-area
// plane for its region bucket. The input is not modified.
func ProjectMultiPolygon(mp orb.MultiPolygon, b RegionBucket) orb.MultiPolygon {
	return project.MultiPolygon(mp.Clone(), Projection(b))
}

// albersEqualArea returns a spherical Albers equal-area conic projection
// (Snyder 1987, eq. 14-1..14-6). lat0/lon0 set the origin; lat1/lat2 are the
// standard parallels. Output units are meters.
func albersEqualArea(lat0, lon0, lat1, lat2 float64) func(orb.Point) orb.Point {
	phi0 := lat0 * math.Pi / 180
	lam0 := lon0 * math.Pi / 180
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180

	n := (math.Sin(phi1) + math.Sin(phi2)) / 2
	c := math.Cos(phi1)*math.Cos(phi1) + 2*n*math.Sin(phi1)
	rho0 := earthRadius * math.Sqrt(c-2*n*math.Sin(phi0)) / n

	return func(p orb.Point) orb.Point {
		phi := p.Lat() * math.Pi / 180
		lam := p.Lon() * math.Pi / 180

		rho := earthRadius * math.Sqrt(c-2*n*math.Sin(phi)) / n
		theta := n * normalizeLon(lam-lam0)

		x := rho * math.Sin(theta)
		y := rho0 - rho*math.Cos(theta)
		return orb.Point{x, y}
	}
}

// polarAzimuthalEqualArea returns a north-polar Lambert azimuthal equal-area
// projection (Snyder 1987, eq. 24-3/24-4). Output units are meters.
func polarAzimuthalEqualArea(lon0 float64) func(orb.Point) orb.Point {
	lam0 := lon0 * math.Pi / 180

	return func(p orb.Point) orb.Point {
		phi := p.Lat() * math.Pi / 180
		lam := p.Lon() * math.Pi / 180

		rho := 2 * earthRadius * math.Sin(math.Pi/4-phi/2)
		dlam := normalizeLon(lam - lam0)

		x := rho * math.Sin(dlam)
		y := -rho * math.Cos(dlam)
		return orb.Point{x, y}
	}
}

// normalizeLon wraps a longitude difference into (-π, π] so features
// straddling the antimeridian project contiguously.
func normalizeLon(d float64) float64 {
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}
