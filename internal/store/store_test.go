package store

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskmoth/hazard-profile-etl/internal/coverage"
	"github.com/duskmoth/hazard-profile-etl/internal/crosswalk"
	"github.com/duskmoth/hazard-profile-etl/internal/domain"
	"github.com/duskmoth/hazard-profile-etl/internal/geo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), discardLogger())
}

func sampleSnapshot() crosswalk.Snapshot {
	return crosswalk.Snapshot{
		GeometryChecksum: "cafe01",
		SliverThreshold:  0.01,
		Mappings: []crosswalk.Mapping{
			{
				JurisdictionID: "district-01",
				Region:         geo.BucketConus,
				StateFIPS:      "48",
				TotalOverlap:   100,
				Entries: []crosswalk.Entry{
					{CountyID: "48001", OverlapArea: 70, Weight: 0.7},
					{CountyID: "48003", OverlapArea: 30, Weight: 0.3},
				},
			},
		},
	}
}

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		want    string
		wantErr bool
	}{
		{name: "clean id passes through", id: "district-12", want: "district-12"},
		{name: "allowed punctuation kept", id: "US_48.001-a", want: "US_48.001-a"},
		{name: "spaces and symbols replaced", id: "my district #7", want: "my_district__7"},
		{name: "path separator replaced", id: "48/001", want: "48_001"},
		{name: "traversal prefix neutralized", id: "../escape", want: ".._escape"},
		{name: "backslash replaced", id: `..\escape`, want: ".._escape"},
		{name: "parent dir rejected", id: "..", wantErr: true},
		{name: "current dir rejected", id: ".", wantErr: true},
		{name: "all dots rejected", id: "...", wantErr: true},
		{name: "empty rejected", id: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeID(tt.id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCrosswalkRoundTrip(t *testing.T) {
	s := newTestStore(t)
	snap := sampleSnapshot()

	require.NoError(t, s.WriteCrosswalk(snap))

	got, err := s.LoadCrosswalk()
	require.NoError(t, err)
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Fatalf("crosswalk round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCrosswalkBytesStableAcrossRewrites(t *testing.T) {
	s := newTestStore(t)
	snap := sampleSnapshot()

	require.NoError(t, s.WriteCrosswalk(snap))
	first, err := os.ReadFile(filepath.Join(s.Root(), "crosswalk.json"))
	require.NoError(t, err)

	require.NoError(t, s.WriteCrosswalk(snap))
	second, err := os.ReadFile(filepath.Join(s.Root(), "crosswalk.json"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadCrosswalk_Missing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadCrosswalk()
	assert.Error(t, err)
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	p := domain.NewPlaceholderProfile("district-12", "District 12", "conus", "2023.1")

	require.NoError(t, s.WriteProfile(p))

	got, err := s.LoadProfile("district-12")
	require.NoError(t, err)
	if diff := cmp.Diff(p, got); diff != "" {
		t.Fatalf("profile round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteProfile_FileNameIsSanitized(t *testing.T) {
	s := newTestStore(t)
	p := domain.NewPlaceholderProfile("district/12", "", "conus", "2023.1")

	require.NoError(t, s.WriteProfile(p))

	assert.FileExists(t, filepath.Join(s.Root(), "profiles", "district_12.json"))

	got, err := s.LoadProfile("district/12")
	require.NoError(t, err)
	assert.Equal(t, "district/12", got.JurisdictionID, "artifact keeps the raw id")
}

func TestWriteProfile_RejectsDotSegmentID(t *testing.T) {
	s := newTestStore(t)
	p := domain.NewPlaceholderProfile("..", "", "conus", "2023.1")

	err := s.WriteProfile(p)
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(s.Root(), "profiles"))
}

func TestLoadProfiles(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"bravo", "alpha", "charlie"} {
		require.NoError(t, s.WriteProfile(
			domain.NewPlaceholderProfile(id, "", "conus", "2023.1")))
	}

	// Stray entries in the profiles directory are ignored.
	require.NoError(t, os.WriteFile(
		filepath.Join(s.Root(), "profiles", "notes.txt"), []byte("scratch"), 0o600))
	require.NoError(t, os.MkdirAll(
		filepath.Join(s.Root(), "profiles", "archive"), 0o755))

	profiles, err := s.LoadProfiles()
	require.NoError(t, err)
	require.Len(t, profiles, 3)

	ids := []string{profiles[0].JurisdictionID, profiles[1].JurisdictionID, profiles[2].JurisdictionID}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, ids, "ordered by file name")
}

func TestLoadProfiles_MissingDirIsEmpty(t *testing.T) {
	s := newTestStore(t)

	profiles, err := s.LoadProfiles()
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestCoverageArtifacts(t *testing.T) {
	s := newTestStore(t)
	r := coverage.Report{
		GeneratedAt: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
		Edition:     "2023.1",
		Total:       2,
		Overall:     coverage.StatusCounts{OK: 1, Fallback: 1},
		ByRegion: map[string]coverage.StatusCounts{
			"conus": {OK: 1, Fallback: 1},
		},
	}

	require.NoError(t, s.WriteCoverage(r))

	got, err := s.LoadCoverage()
	require.NoError(t, err)
	assert.Equal(t, r, got)

	text, err := os.ReadFile(filepath.Join(s.Root(), "coverage.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(text), "Jurisdictions: 2")
}

func TestRunReportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	r := RunReport{
		RunID:            "0f9a4a6e-6a51-4b7a-9a1e-2f8f0d3c5b21",
		StartedAt:        time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt:       time.Date(2024, time.March, 1, 12, 0, 42, 0, time.UTC),
		Edition:          "2023.1",
		GeometryChecksum: "cafe01",
		Jurisdictions:    4,
		Counties:         12,
		ProfilesWritten:  4,
	}

	require.NoError(t, s.WriteRunReport(r))

	got, err := s.LoadRunReport()
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestWriteMetrics(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.WriteMetrics([]byte("# HELP hazard_etl_up 1\n")))

	data, err := os.ReadFile(filepath.Join(s.Root(), "metrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hazard_etl_up")
}
