package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/duskmoth/hazard-profile-etl/internal/coverage"
	"github.com/duskmoth/hazard-profile-etl/internal/crosswalk"
	"github.com/duskmoth/hazard-profile-etl/internal/domain"
	"github.com/duskmoth/hazard-profile-etl/internal/geo"
	"github.com/duskmoth/hazard-profile-etl/internal/observability"
	"github.com/duskmoth/hazard-profile-etl/internal/profile"
	"github.com/duskmoth/hazard-profile-etl/internal/store"
)

// ErrNoInputs is returned when boundary geometry and hazard records are both
// absent. It is the only input condition that aborts a run.
var ErrNoInputs = errors.New("nothing to process: boundary geometry and hazard records are both absent")

// BoundarySet is the loaded geometry working set for one run.
type BoundarySet struct {
	Jurisdictions []geo.Jurisdiction
	Counties      []geo.County

	// Checksum fingerprints the boundary source files and gates crosswalk
	// reuse.
	Checksum string
}

// BoundarySource loads both boundary layers. A partial result with a non-nil
// error is valid: the pipeline degrades to whatever loaded.
type BoundarySource interface {
	LoadBoundaries(ctx context.Context) (BoundarySet, error)
}

// RecordSource is the county hazard table consumed by the aggregator.
type RecordSource interface {
	profile.RecordSource
	Len() int
	Skipped() int
}

// RecordLoader opens the primary county hazard dataset.
type RecordLoader interface {
	LoadRecords(ctx context.Context) (RecordSource, error)
}

// OverrideLoader opens the secondary-source datasets. The int result is the
// number of rows dropped during load.
type OverrideLoader interface {
	LoadOverrides(ctx context.Context) (domain.OverrideRegistry, int, error)
}

// CrosswalkSource builds the weight table when no reusable snapshot exists.
type CrosswalkSource interface {
	Build(ctx context.Context, jurisdictions []geo.Jurisdiction, counties []geo.County, threshold float64, checksum string) (*crosswalk.Snapshot, error)
}

// ArtifactStore persists run outputs.
type ArtifactStore interface {
	WriteCrosswalk(snap crosswalk.Snapshot) error
	LoadCrosswalk() (crosswalk.Snapshot, error)
	WriteProfile(p domain.HazardProfile) error
	WriteCoverage(r coverage.Report) error
	WriteMetrics(data []byte) error
	WriteRunReport(r store.RunReport) error
}

// Params wires the pipeline's stages and run parameters.
type Params struct {
	Boundaries BoundarySource
	Records    RecordLoader
	Overrides  OverrideLoader
	Builder    CrosswalkSource
	Artifacts  ArtifactStore
	Policy     domain.Policy
	Edition    string
	Workers    int

	// ForceRebuild skips the persisted crosswalk and always rebuilds.
	ForceRebuild bool
}

// Pipeline orchestrates one load-crosswalk-aggregate-persist run.
type Pipeline struct {
	boundaries   BoundarySource
	records      RecordLoader
	overrides    OverrideLoader
	builder      CrosswalkSource
	artifacts    ArtifactStore
	policy       domain.Policy
	edition      string
	workers      int
	forceRebuild bool
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// New creates a Pipeline with the given stages and observability.
func New(p Params, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		boundaries:   p.Boundaries,
		records:      p.Records,
		overrides:    p.Overrides,
		builder:      p.Builder,
		artifacts:    p.Artifacts,
		policy:       p.Policy,
		edition:      p.Edition,
		workers:      workers,
		forceRebuild: p.ForceRebuild,
		logger:       logger,
		metrics:      metrics,
	}
}

// inputs is the loaded working set for one run.
type inputs struct {
	boundaries BoundarySet
	records    RecordSource
	overrides  domain.OverrideRegistry
}

// Run executes one full pipeline run. Input problems degrade per layer; the
// sole fatal input condition is boundary geometry and hazard records both
// absent, which aborts before anything is written.
func (p *Pipeline) Run(ctx context.Context) error {
	wallStart := time.Now()
	started := domain.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	logger.Info("pipeline started", "edition", p.edition, "workers", p.workers)

	in, err := p.loadInputs(ctx, logger)
	if err != nil {
		return err
	}

	snap, reused, err := p.resolveCrosswalk(ctx, in.boundaries, logger)
	if err != nil {
		return err
	}
	p.observeCrosswalk(snap, reused)
	if !reused {
		if err := p.artifacts.WriteCrosswalk(snap); err != nil {
			return fmt.Errorf("persist crosswalk: %w", err)
		}
	}

	profiles, err := p.aggregate(ctx, in, snap, logger)
	if err != nil {
		return err
	}

	written := p.persistProfiles(profiles, logger)
	overrides := p.observeProfiles(profiles)

	report := coverage.Build(profiles, p.edition)
	if err := p.artifacts.WriteCoverage(report); err != nil {
		return fmt.Errorf("persist coverage: %w", err)
	}

	p.metrics.RunDuration.Observe(time.Since(wallStart).Seconds())
	if data, err := p.metrics.Export(); err != nil {
		logger.Error("metrics export failed", "error", err)
	} else if err := p.artifacts.WriteMetrics(data); err != nil {
		logger.Error("metrics not persisted", "error", err)
	}

	finished := domain.Now()
	run := store.RunReport{
		RunID:            runID,
		StartedAt:        started.UTC(),
		FinishedAt:       finished.UTC(),
		Edition:          p.edition,
		GeometryChecksum: snap.GeometryChecksum,
		CrosswalkReused:  reused,
		Jurisdictions:    len(snap.Mappings),
		Counties:         len(in.boundaries.Counties),
		ProfilesWritten:  written,
		OverridesApplied: overrides,
	}
	if err := p.artifacts.WriteRunReport(run); err != nil {
		return fmt.Errorf("persist run report: %w", err)
	}

	logger.Info("pipeline finished",
		"jurisdictions", len(profiles),
		"profiles_written", written,
		"ok", report.Overall.OK,
		"fallback", report.Overall.Fallback,
		"no_data", report.Overall.NoData,
		"crosswalk_reused", reused)
	return nil
}

// loadInputs pulls in every input layer, degrading to empty sets on failure.
// It errors only when there is nothing at all to process.
func (p *Pipeline) loadInputs(ctx context.Context, logger *slog.Logger) (inputs, error) {
	stageStart := time.Now()
	in := inputs{}

	b, err := p.boundaries.LoadBoundaries(ctx)
	if err != nil {
		logger.Error("boundary load incomplete", "error", err)
	}
	in.boundaries = b

	records, err := p.records.LoadRecords(ctx)
	if err != nil || records == nil {
		if err != nil {
			logger.Error("hazard record load failed", "error", err)
		}
		records = emptyRecords{}
	}
	in.records = records
	p.metrics.RecordsSkipped.WithLabelValues("nri").Add(float64(records.Skipped()))

	reg, skipped, err := p.overrides.LoadOverrides(ctx)
	if err != nil {
		logger.Warn("override load failed, primary values stand", "error", err)
		reg = domain.OverrideRegistry{}
	}
	in.overrides = reg
	p.metrics.RecordsSkipped.WithLabelValues("wildfire").Add(float64(skipped))

	if len(b.Jurisdictions) == 0 && len(b.Counties) == 0 && in.records.Len() == 0 {
		return inputs{}, ErrNoInputs
	}

	p.metrics.StageDuration.WithLabelValues("load").Observe(time.Since(stageStart).Seconds())
	logger.Info("inputs loaded",
		"jurisdictions", len(b.Jurisdictions),
		"counties", len(b.Counties),
		"records", in.records.Len(),
		"records_skipped", in.records.Skipped())
	return in, nil
}

// resolveCrosswalk reuses the persisted snapshot when the boundary checksum
// and sliver threshold still match, and rebuilds otherwise.
func (p *Pipeline) resolveCrosswalk(ctx context.Context, b BoundarySet, logger *slog.Logger) (crosswalk.Snapshot, bool, error) {
	stageStart := time.Now()

	if p.forceRebuild {
		logger.Info("crosswalk rebuild forced")
	} else if cached, err := p.artifacts.LoadCrosswalk(); err == nil {
		if !cached.Reusable(b.Checksum, p.policy.SliverThreshold) {
			logger.Info("cached crosswalk stale, rebuilding")
		} else if err := cached.Validate(); err != nil {
			logger.Warn("cached crosswalk invalid, rebuilding", "error", err)
		} else {
			logger.Info("reusing cached crosswalk",
				"jurisdictions", len(cached.Mappings), "checksum", cached.GeometryChecksum)
			return cached, true, nil
		}
	}

	if len(b.Jurisdictions) == 0 || len(b.Counties) == 0 {
		logger.Warn("a boundary layer is empty, crosswalk has no overlaps",
			"jurisdictions", len(b.Jurisdictions), "counties", len(b.Counties))
		return emptySnapshot(b, p.policy.SliverThreshold), false, nil
	}

	snap, err := p.builder.Build(ctx, b.Jurisdictions, b.Counties, p.policy.SliverThreshold, b.Checksum)
	if err != nil {
		return crosswalk.Snapshot{}, false, fmt.Errorf("build crosswalk: %w", err)
	}
	p.metrics.StageDuration.WithLabelValues("crosswalk").Observe(time.Since(stageStart).Seconds())
	return *snap, false, nil
}

// emptySnapshot maps every jurisdiction to an empty entry list. Used when a
// boundary layer is absent so downstream stages still emit an artifact per
// jurisdiction.
func emptySnapshot(b BoundarySet, threshold float64) crosswalk.Snapshot {
	mappings := make([]crosswalk.Mapping, 0, len(b.Jurisdictions))
	zero := make([]string, 0, len(b.Jurisdictions))
	for _, j := range b.Jurisdictions {
		mappings = append(mappings, crosswalk.Mapping{
			JurisdictionID: j.ID,
			Name:           j.Name,
			Region:         j.Region,
			StateFIPS:      j.StateFIPS,
			Entries:        []crosswalk.Entry{},
		})
		zero = append(zero, j.ID)
	}
	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].JurisdictionID < mappings[j].JurisdictionID
	})
	sort.Strings(zero)
	return crosswalk.Snapshot{
		GeometryChecksum: b.Checksum,
		SliverThreshold:  threshold,
		Mappings:         mappings,
		ZeroOverlap:      zero,
	}
}

// aggregate fans per-jurisdiction profile computation out over the worker
// pool. profiles[i] matches snap.Mappings[i], so output order stays
// deterministic regardless of worker interleaving.
func (p *Pipeline) aggregate(ctx context.Context, in inputs, snap crosswalk.Snapshot, logger *slog.Logger) ([]domain.HazardProfile, error) {
	stageStart := time.Now()

	agg := profile.NewAggregator(in.records, p.policy, p.edition, snap.GeometryChecksum, logger)
	profiles := make([]domain.HazardProfile, len(snap.Mappings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, m := range snap.Mappings {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prof := agg.Aggregate(m)
			domain.ApplyOverrides(&prof, in.overrides, p.policy.Breakpoints, p.policy.TopHazards, logger)
			profiles[i] = prof
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate profiles: %w", err)
	}

	p.metrics.StageDuration.WithLabelValues("aggregate").Observe(time.Since(stageStart).Seconds())
	return profiles, nil
}

// persistProfiles writes each profile, logging and skipping the ones that
// cannot be persisted. Returns the number written.
func (p *Pipeline) persistProfiles(profiles []domain.HazardProfile, logger *slog.Logger) int {
	stageStart := time.Now()

	written := 0
	for i := range profiles {
		if err := p.artifacts.WriteProfile(profiles[i]); err != nil {
			logger.Error("profile not persisted",
				"jurisdiction_id", profiles[i].JurisdictionID, "error", err)
			continue
		}
		written++
	}

	p.metrics.StageDuration.WithLabelValues("persist").Observe(time.Since(stageStart).Seconds())
	return written
}

// observeCrosswalk records the crosswalk the run operates on, whether fresh
// or reused.
func (p *Pipeline) observeCrosswalk(snap crosswalk.Snapshot, reused bool) {
	if reused {
		p.metrics.CrosswalkReused.Set(1)
	} else {
		p.metrics.CrosswalkReused.Set(0)
	}
	for _, m := range snap.Mappings {
		p.metrics.CountiesMatched.Add(float64(len(m.Entries)))
		p.metrics.SliversDropped.Add(float64(m.SliversDropped))
		p.metrics.OverlayFailures.Add(float64(m.OverlayFailures))
	}
}

// observeProfiles tallies per-status and per-override metrics. Returns the
// total number of overridden slots.
func (p *Pipeline) observeProfiles(profiles []domain.HazardProfile) int {
	overrides := 0
	for i := range profiles {
		p.metrics.JurisdictionsProcessed.WithLabelValues(string(profiles[i].Status)).Inc()
		for h, slot := range profiles[i].Hazards {
			if slot.Source == domain.SourceOverride {
				p.metrics.OverridesApplied.WithLabelValues(string(h)).Inc()
				overrides++
			}
		}
	}
	return overrides
}

// emptyRecords stands in when the hazard dataset is absent; every lookup
// misses and aggregation degrades per the missing-record rules.
type emptyRecords struct{}

func (emptyRecords) Get(string) (domain.CountyRecord, bool) { return domain.CountyRecord{}, false }
func (emptyRecords) StateCounties(string) []string          { return nil }
func (emptyRecords) Len() int                               { return 0 }
func (emptyRecords) Skipped() int                           { return 0 }
