// Package geo loads boundary geometry and provides the equal-area overlay
// math the crosswalk builder runs on. All area computation happens in a
// projected equal-area plane; geographic (degree) coordinates are never
// measured directly.
package geo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RegionBucket selects the equal-area projection family for a feature.
type RegionBucket string

const (
	// BucketConus: mid-latitude continental features, Albers equal-area conic.
	BucketConus RegionBucket = "conus"
	// BucketPolar: high-latitude features, polar Lambert azimuthal equal-area.
	BucketPolar RegionBucket = "polar"
)

// Valid reports whether b is a known projection bucket.
func (b RegionBucket) Valid() bool {
	return b == BucketConus || b == BucketPolar
}

// Jurisdiction is one boundary feature a risk profile is built for.
type Jurisdiction struct {
	ID        string
	Name      string
	Region    RegionBucket
	StateFIPS string // 2-digit prefix used by the coarse fallback match
	Geometry  orb.MultiPolygon
}

// County is one boundary feature of the county dataset.
type County struct {
	FIPS     string // 5-digit GEOID
	Name     string
	Geometry orb.MultiPolygon
}

// LoadJurisdictions reads a GeoJSON FeatureCollection of jurisdiction
// boundaries. Features missing an id or carrying non-areal geometry are
// skipped with a warning; an unknown region bucket defaults to conus.
func LoadJurisdictions(path string, logger *slog.Logger) ([]Jurisdiction, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, fmt.Errorf("load jurisdictions: %w", err)
	}

	out := make([]Jurisdiction, 0, len(fc.Features))
	for i, f := range fc.Features {
		id := firstProperty(f, "id", "GEOID", "geoid")
		if id == "" {
			logger.Warn("jurisdiction feature missing id, skipping", "index", i)
			continue
		}
		mp, ok := toMultiPolygon(f.Geometry)
		if !ok {
			logger.Warn("jurisdiction feature is not areal, skipping",
				"id", id, "geometry", geometryType(f.Geometry))
			continue
		}
		region := RegionBucket(firstProperty(f, "region", "bucket"))
		if !region.Valid() {
			region = BucketConus
		}
		out = append(out, Jurisdiction{
			ID:        id,
			Name:      firstProperty(f, "name", "NAME"),
			Region:    region,
			StateFIPS: firstProperty(f, "state_fips", "STATEFP"),
			Geometry:  mp,
		})
	}
	return out, nil
}

// LoadCounties reads a GeoJSON FeatureCollection of county boundaries keyed
// by 5-digit GEOID.
func LoadCounties(path string, logger *slog.Logger) ([]County, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, fmt.Errorf("load counties: %w", err)
	}

	out := make([]County, 0, len(fc.Features))
	for i, f := range fc.Features {
		fips := firstProperty(f, "GEOID", "geoid", "STCOFIPS", "fips")
		if len(fips) != 5 {
			logger.Warn("county feature missing 5-digit GEOID, skipping",
				"index", i, "geoid", fips)
			continue
		}
		mp, ok := toMultiPolygon(f.Geometry)
		if !ok {
			logger.Warn("county feature is not areal, skipping",
				"geoid", fips, "geometry", geometryType(f.Geometry))
			continue
		}
		out = append(out, County{
			FIPS:     fips,
			Name:     firstProperty(f, "name", "NAME"),
			Geometry: mp,
		})
	}
	return out, nil
}

func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// firstProperty returns the first non-empty string property among keys.
func firstProperty(f *geojson.Feature, keys ...string) string {
	for _, k := range keys {
		if v, ok := f.Properties[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// toMultiPolygon normalizes areal geometry to a MultiPolygon.
func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, bool) {
	switch g := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{g}, true
	case orb.MultiPolygon:
		return g, true
	default:
		return nil, false
	}
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}

// ChecksumFiles hashes the raw bytes of the given files in order. The
// crosswalk snapshot stores this to detect boundary-source changes.
func ChecksumFiles(paths ...string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return "", fmt.Errorf("checksum %s: %w", p, err)
		}
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", fmt.Errorf("checksum %s: %w", p, err)
		}
		f.Close()
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
