package crosswalk

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/duskmoth/hazard-profile-etl/internal/geo"
)

// countyCacheSize holds every county of one projection bucket with room to
// spare (the national county set is ~3,200 features).
const countyCacheSize = 4096

// Builder computes crosswalk snapshots. Safe for a single Build call at a
// time; the prepared-geometry cache inside is shared across its workers.
type Builder struct {
	logger  *slog.Logger
	cache   *geo.PreparedCache
	workers int
}

// NewBuilder creates a Builder fanning out over the given number of workers.
func NewBuilder(logger *slog.Logger, workers int) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{
		logger:  logger,
		cache:   geo.NewPreparedCache(countyCacheSize),
		workers: workers,
	}
}

// Build intersects every jurisdiction with the county set and produces the
// weighted snapshot. Jurisdictions with unusable geometry or no overlap end
// up flagged with an empty entry list rather than failing the build; only
// empty inputs, duplicate jurisdiction ids, or cancellation are fatal.
func (b *Builder) Build(ctx context.Context, jurisdictions []geo.Jurisdiction, counties []geo.County, threshold float64, checksum string) (*Snapshot, error) {
	if len(jurisdictions) == 0 {
		return nil, fmt.Errorf("no jurisdictions to map")
	}
	if len(counties) == 0 {
		return nil, fmt.Errorf("no counties to map against")
	}
	seen := make(map[string]struct{}, len(jurisdictions))
	for _, j := range jurisdictions {
		if _, dup := seen[j.ID]; dup {
			return nil, fmt.Errorf("duplicate jurisdiction id %q", j.ID)
		}
		seen[j.ID] = struct{}{}
	}

	mappings := make([]Mapping, len(jurisdictions))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, j := range jurisdictions {
		g.Go(func() error {
			m, err := b.mapJurisdiction(ctx, j, counties, threshold)
			if err != nil {
				return err
			}
			mappings[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build crosswalk: %w", err)
	}

	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].JurisdictionID < mappings[j].JurisdictionID
	})
	var zero []string
	for _, m := range mappings {
		if len(m.Entries) == 0 {
			zero = append(zero, m.JurisdictionID)
		}
	}
	if len(zero) > 0 {
		b.logger.Warn("jurisdictions with no county overlap", "count", len(zero), "ids", zero)
	}
	b.logger.Info("crosswalk built",
		"jurisdictions", len(mappings),
		"counties", len(counties),
		"zero_overlap", len(zero))

	return &Snapshot{
		GeometryChecksum: checksum,
		SliverThreshold:  threshold,
		Mappings:         mappings,
		ZeroOverlap:      zero,
	}, nil
}

func (b *Builder) mapJurisdiction(ctx context.Context, j geo.Jurisdiction, counties []geo.County, threshold float64) (Mapping, error) {
	m := Mapping{
		JurisdictionID: j.ID,
		Name:           j.Name,
		Region:         j.Region,
		StateFIPS:      j.StateFIPS,
		Entries:        []Entry{},
	}

	repaired, err := geo.Repair(j.Geometry)
	if err != nil {
		b.logger.Warn("jurisdiction geometry unusable",
			"jurisdiction_id", j.ID, "error", err)
		m.OverlayFailures++
		return m, nil
	}
	projected := geo.ProjectMultiPolygon(repaired, j.Region)
	bound := projected.Bound()

	var overlaps []overlap
	for _, c := range counties {
		if err := ctx.Err(); err != nil {
			return Mapping{}, err
		}
		prepared, err := b.cache.Prepare(c.FIPS, c.Geometry, j.Region)
		if err != nil {
			b.logger.Warn("county geometry unusable, skipping pair",
				"county_id", c.FIPS, "jurisdiction_id", j.ID, "error", err)
			m.OverlayFailures++
			continue
		}
		if !bound.Intersects(prepared.Bound) {
			continue
		}
		area, err := geo.IntersectionArea(projected, prepared.Geometry)
		if err != nil {
			b.logger.Warn("overlay failed, skipping pair",
				"county_id", c.FIPS, "jurisdiction_id", j.ID, "error", err)
			m.OverlayFailures++
			continue
		}
		if area <= 0 {
			continue
		}
		overlaps = append(overlaps, overlap{countyID: c.FIPS, area: area})
	}

	m.Entries, m.SliversDropped = weightEntries(overlaps, threshold)
	for _, o := range overlaps {
		m.TotalOverlap += o.area
	}
	b.logger.Debug("jurisdiction mapped",
		"jurisdiction_id", j.ID,
		"counties", len(m.Entries),
		"slivers_dropped", m.SliversDropped)
	return m, nil
}

type overlap struct {
	countyID string
	area     float64
}

// weightEntries drops sliver overlaps below threshold (a fraction of the
// jurisdiction's total overlap area), then renormalizes the survivors so
// their weights sum to 1. The sliver cut happens before normalization;
// pairs exactly at the threshold are kept.
func weightEntries(overlaps []overlap, threshold float64) ([]Entry, int) {
	var total float64
	for _, o := range overlaps {
		total += o.area
	}
	if total <= 0 {
		return []Entry{}, 0
	}

	cut := threshold * total
	kept := make([]overlap, 0, len(overlaps))
	var keptSum float64
	for _, o := range overlaps {
		if o.area < cut {
			continue
		}
		kept = append(kept, o)
		keptSum += o.area
	}
	dropped := len(overlaps) - len(kept)
	if keptSum <= 0 {
		return []Entry{}, dropped
	}

	entries := make([]Entry, 0, len(kept))
	for _, o := range kept {
		entries = append(entries, Entry{
			CountyID:    o.countyID,
			OverlapArea: o.area,
			Weight:      o.area / keptSum,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entryLess(entries[i], entries[j]) })
	return entries, dropped
}
