// Command profiler builds per-jurisdiction hazard risk profiles from
// county-level multi-hazard data.
//
// Usage:
//
//	profiler run        full pipeline: crosswalk, profiles, coverage, run report
//	profiler crosswalk  build or refresh the boundary crosswalk only
//	profiler profiles   aggregate profiles from the persisted crosswalk
//	profiler coverage   re-summarize persisted profiles
//
// Configuration comes from environment variables (see internal/config);
// flags override the environment where set. Logs go to stderr, operator
// summaries to stdout.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/duskmoth/hazard-profile-etl/internal/config"
	"github.com/duskmoth/hazard-profile-etl/internal/coverage"
	"github.com/duskmoth/hazard-profile-etl/internal/crosswalk"
	"github.com/duskmoth/hazard-profile-etl/internal/domain"
	"github.com/duskmoth/hazard-profile-etl/internal/observability"
	"github.com/duskmoth/hazard-profile-etl/internal/pipeline"
	"github.com/duskmoth/hazard-profile-etl/internal/profile"
	"github.com/duskmoth/hazard-profile-etl/internal/store"
)

var (
	flagOutputDir  string
	flagPolicyFile string
	flagWorkers    int
	flagRebuild    bool
)

var rootCmd = &cobra.Command{
	Use:          "profiler",
	Short:        "Build per-jurisdiction hazard risk profiles from county data",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: crosswalk, profiles, coverage, run report",
	RunE:  runFull,
}

var crosswalkCmd = &cobra.Command{
	Use:   "crosswalk",
	Short: "Build or refresh the jurisdiction-to-county crosswalk",
	RunE:  runCrosswalk,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Aggregate hazard profiles from the persisted crosswalk",
	RunE:  runProfiles,
}

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Summarize coverage across persisted profiles",
	RunE:  runCoverage,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOutputDir, "output", "o", "", "artifact directory (overrides OUTPUT_DIR)")
	rootCmd.PersistentFlags().StringVar(&flagPolicyFile, "policy", "", "aggregation policy YAML (overrides POLICY_FILE)")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "worker pool size (overrides WORKERS)")

	runCmd.Flags().BoolVar(&flagRebuild, "rebuild", false, "rebuild the crosswalk even when the cached snapshot matches")
	crosswalkCmd.Flags().BoolVar(&flagRebuild, "rebuild", false, "rebuild even when the cached snapshot matches")

	rootCmd.AddCommand(runCmd, crosswalkCmd, profilesCmd, coverageCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the wired dependency set shared by the subcommands.
type app struct {
	cfg    *config.Config
	policy domain.Policy
	logger *slog.Logger
	store  *store.Store
}

func setup() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	}
	if flagPolicyFile != "" {
		cfg.PolicyFile = flagPolicyFile
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg)
	return &app{
		cfg:    cfg,
		policy: policy,
		logger: logger,
		store:  store.New(cfg.OutputDir, logger),
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runFull(_ *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	p := pipeline.New(pipeline.Params{
		Boundaries: pipeline.FileBoundaries{
			JurisdictionPath: a.cfg.JurisdictionGeoJSON,
			CountyPath:       a.cfg.CountyGeoJSON,
			Logger:           a.logger,
		},
		Records:      pipeline.FileRecords{Path: a.cfg.NRICSV, Logger: a.logger},
		Overrides:    pipeline.FileOverrides{WildfirePath: a.cfg.WildfireCSV, Logger: a.logger},
		Builder:      crosswalk.NewBuilder(a.logger, a.cfg.Workers),
		Artifacts:    a.store,
		Policy:       a.policy,
		Edition:      a.cfg.NRIEdition,
		Workers:      a.cfg.Workers,
		ForceRebuild: flagRebuild,
	}, a.logger, observability.NewMetrics())

	return p.Run(ctx)
}

func runCrosswalk(_ *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	src := pipeline.FileBoundaries{
		JurisdictionPath: a.cfg.JurisdictionGeoJSON,
		CountyPath:       a.cfg.CountyGeoJSON,
		Logger:           a.logger,
	}
	set, err := src.LoadBoundaries(ctx)
	if err != nil {
		return err
	}

	if !flagRebuild {
		if cached, err := a.store.LoadCrosswalk(); err == nil &&
			cached.Reusable(set.Checksum, a.policy.SliverThreshold) &&
			cached.Validate() == nil {
			fmt.Printf("crosswalk up to date: %d jurisdictions, checksum %.12s\n",
				len(cached.Mappings), cached.GeometryChecksum)
			return nil
		}
	}

	builder := crosswalk.NewBuilder(a.logger, a.cfg.Workers)
	snap, err := builder.Build(ctx, set.Jurisdictions, set.Counties, a.policy.SliverThreshold, set.Checksum)
	if err != nil {
		return err
	}
	if err := a.store.WriteCrosswalk(*snap); err != nil {
		return err
	}
	fmt.Printf("crosswalk written: %d jurisdictions, %d zero-overlap\n",
		len(snap.Mappings), len(snap.ZeroOverlap))
	return nil
}

func runProfiles(_ *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	snap, err := a.store.LoadCrosswalk()
	if err != nil {
		return fmt.Errorf("no usable crosswalk, run \"profiler crosswalk\" first: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("persisted crosswalk invalid: %w", err)
	}

	records, err := pipeline.FileRecords{Path: a.cfg.NRICSV, Logger: a.logger}.LoadRecords(ctx)
	if err != nil {
		return err
	}
	reg, _, err := pipeline.FileOverrides{WildfirePath: a.cfg.WildfireCSV, Logger: a.logger}.LoadOverrides(ctx)
	if err != nil {
		a.logger.Warn("override load failed, primary values stand", "error", err)
		reg = domain.OverrideRegistry{}
	}

	agg := profile.NewAggregator(records, a.policy, a.cfg.NRIEdition, snap.GeometryChecksum, a.logger)
	written := 0
	for _, m := range snap.Mappings {
		if err := ctx.Err(); err != nil {
			return err
		}
		prof := agg.Aggregate(m)
		domain.ApplyOverrides(&prof, reg, a.policy.Breakpoints, a.policy.TopHazards, a.logger)
		if err := a.store.WriteProfile(prof); err != nil {
			a.logger.Error("profile not persisted",
				"jurisdiction_id", prof.JurisdictionID, "error", err)
			continue
		}
		written++
	}
	fmt.Printf("profiles written: %d of %d\n", written, len(snap.Mappings))
	return nil
}

func runCoverage(_ *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	profiles, err := a.store.LoadProfiles()
	if err != nil {
		return err
	}
	report := coverage.Build(profiles, a.cfg.NRIEdition)
	if err := a.store.WriteCoverage(report); err != nil {
		return err
	}
	fmt.Print(report.Narrative())
	return nil
}
