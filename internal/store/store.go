// Package store persists and reloads run artifacts under a single output
// root. Every write goes through a temp file and rename, so readers never
// observe a half-written artifact and an interrupted run is safe to repeat.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/duskmoth/hazard-profile-etl/internal/coverage"
	"github.com/duskmoth/hazard-profile-etl/internal/crosswalk"
	"github.com/duskmoth/hazard-profile-etl/internal/domain"
)

const (
	crosswalkFile    = "crosswalk.json"
	coverageJSONFile = "coverage.json"
	coverageTextFile = "coverage.txt"
	metricsFile      = "metrics.prom"
	runFile          = "run.json"
	profilesDir      = "profiles"
)

// RunReport is the run.json artifact: one record per pipeline run carrying
// the identifiers needed to audit what produced the sibling artifacts.
type RunReport struct {
	RunID            string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Edition          string    `json:"edition"`
	GeometryChecksum string    `json:"geometry_checksum"`
	CrosswalkReused  bool      `json:"crosswalk_reused"`
	Jurisdictions    int       `json:"jurisdictions"`
	Counties         int       `json:"counties"`
	ProfilesWritten  int       `json:"profiles_written"`
	OverridesApplied int       `json:"overrides_applied"`
}

// Store reads and writes run artifacts under one output root.
type Store struct {
	root   string
	logger *slog.Logger
}

func New(root string, logger *slog.Logger) *Store {
	return &Store{root: root, logger: logger}
}

// Root is the output directory the store was opened on.
func (s *Store) Root() string { return s.root }

func (s *Store) WriteCrosswalk(snap crosswalk.Snapshot) error {
	return s.writeJSON(crosswalkFile, snap)
}

// LoadCrosswalk reads a previously persisted crosswalk. Callers decide
// whether it is reusable; any error here just means "rebuild".
func (s *Store) LoadCrosswalk() (crosswalk.Snapshot, error) {
	var snap crosswalk.Snapshot
	if err := s.readJSON(crosswalkFile, &snap); err != nil {
		return crosswalk.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) WriteProfile(p domain.HazardProfile) error {
	stem, err := SanitizeID(p.JurisdictionID)
	if err != nil {
		return fmt.Errorf("profile file name: %w", err)
	}
	return s.writeJSON(filepath.Join(profilesDir, stem+".json"), p)
}

func (s *Store) LoadProfile(id string) (domain.HazardProfile, error) {
	stem, err := SanitizeID(id)
	if err != nil {
		return domain.HazardProfile{}, fmt.Errorf("profile file name: %w", err)
	}
	var p domain.HazardProfile
	if err := s.readJSON(filepath.Join(profilesDir, stem+".json"), &p); err != nil {
		return domain.HazardProfile{}, err
	}
	return p, nil
}

// LoadProfiles reads every persisted profile, ordered by file name. A
// missing profiles directory reads as an empty set.
func (s *Store) LoadProfiles() ([]domain.HazardProfile, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, profilesDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", profilesDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	profiles := make([]domain.HazardProfile, 0, len(names))
	for _, name := range names {
		var p domain.HazardProfile
		if err := s.readJSON(filepath.Join(profilesDir, name), &p); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// WriteCoverage persists both renderings of the coverage report.
func (s *Store) WriteCoverage(r coverage.Report) error {
	if err := s.writeJSON(coverageJSONFile, r); err != nil {
		return err
	}
	return s.writeFile(coverageTextFile, []byte(r.Narrative()))
}

func (s *Store) LoadCoverage() (coverage.Report, error) {
	var r coverage.Report
	if err := s.readJSON(coverageJSONFile, &r); err != nil {
		return coverage.Report{}, err
	}
	return r, nil
}

// WriteMetrics persists the Prometheus text exposition produced at the end
// of a run.
func (s *Store) WriteMetrics(data []byte) error {
	return s.writeFile(metricsFile, data)
}

func (s *Store) WriteRunReport(r RunReport) error {
	return s.writeJSON(runFile, r)
}

func (s *Store) LoadRunReport() (RunReport, error) {
	var r RunReport
	if err := s.readJSON(runFile, &r); err != nil {
		return RunReport{}, err
	}
	return r, nil
}

func (s *Store) writeJSON(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", rel, err)
	}
	data = append(data, '\n')
	return s.writeFile(rel, data)
}

func (s *Store) writeFile(rel string, data []byte) error {
	path := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(rel), err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	s.logger.Debug("artifact written", "path", rel, "bytes", len(data))
	return nil
}

func (s *Store) readJSON(rel string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.root, rel))
	if err != nil {
		return fmt.Errorf("read %s: %w", rel, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", rel, err)
	}
	return nil
}
