package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/duskmoth/hazard-profile-etl/internal/adapter/wildfire"
	"github.com/duskmoth/hazard-profile-etl/internal/domain"
	"github.com/duskmoth/hazard-profile-etl/internal/geo"
	"github.com/duskmoth/hazard-profile-etl/internal/nri"
)

// FileBoundaries loads the boundary layers from GeoJSON files.
type FileBoundaries struct {
	JurisdictionPath string
	CountyPath       string
	Logger           *slog.Logger
}

func (f FileBoundaries) LoadBoundaries(_ context.Context) (BoundarySet, error) {
	set := BoundarySet{}
	var errs []error

	jurisdictions, err := geo.LoadJurisdictions(f.JurisdictionPath, f.Logger)
	if err != nil {
		errs = append(errs, fmt.Errorf("jurisdictions: %w", err))
	}
	set.Jurisdictions = jurisdictions

	counties, err := geo.LoadCounties(f.CountyPath, f.Logger)
	if err != nil {
		errs = append(errs, fmt.Errorf("counties: %w", err))
	}
	set.Counties = counties

	// Fingerprint only a fully loaded pair; a blank checksum never matches a
	// cached snapshot built from healthy inputs.
	if len(errs) == 0 {
		sum, err := geo.ChecksumFiles(f.JurisdictionPath, f.CountyPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("checksum: %w", err))
		}
		set.Checksum = sum
	}
	return set, errors.Join(errs...)
}

// FileRecords opens the county hazard table.
type FileRecords struct {
	Path   string
	Logger *slog.Logger
}

func (f FileRecords) LoadRecords(_ context.Context) (RecordSource, error) {
	t, err := nri.Load(f.Path, f.Logger)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FileOverrides opens the wildfire community risk dataset. An empty path
// means overrides are not in play for this run.
type FileOverrides struct {
	WildfirePath string
	Logger       *slog.Logger
}

func (f FileOverrides) LoadOverrides(_ context.Context) (domain.OverrideRegistry, int, error) {
	if f.WildfirePath == "" {
		f.Logger.Info("no override dataset configured")
		return domain.OverrideRegistry{}, 0, nil
	}
	p, err := wildfire.Load(f.WildfirePath, f.Logger)
	if err != nil {
		return nil, 0, err
	}
	return wildfire.NewRegistry(p), p.Skipped(), nil
}
