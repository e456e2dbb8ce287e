package nri

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskmoth/hazard-profile-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "counties.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const cleanCSV = `STCOFIPS,COUNTY,STATEABBRV,WFIR_RISKS,WFIR_EALT,WFIR_RISKR,TRND_RISKS,TRND_EALT,TRND_RISKR,RISK_SCORE,RISK_RATNG,EAL_VALT,SOVI_SCORE,SOVI_RATNG,RESL_SCORE,RESL_RATNG
48001,Anderson,TX,42.5,1250000.5,Relatively Moderate,55.1,3400000,Relatively High,48.2,Relatively Moderate,7800000.25,61.3,Relatively High,52.0,Relatively Moderate
48003,Andrews,TX,,,,,,,,,,,,,
02020,Anchorage,AK,12.0,500000,Very Low,0,0,,35.5,Relatively Low,900000,40,Relatively Low,70,Relatively High
`

const dirtyCSV = `STCOFIPS,COUNTY,STATEABBRV,WFIR_RISKS,WFIR_EALT,WFIR_RISKR
48001,Anderson,TX,42.5,1250000,Relatively Moderate
480,ShortFips,TX,10,100,Very Low
48005,BadNumeric,TX,abc,100,Very Low
48001,Duplicate,TX,99,100,Very High
48007,OutOfRange,TX,150,100,Very High
48009,Ragged
48011,Valid,TX,20,200,Relatively Low
`

func TestLoad(t *testing.T) {
	table, err := Load(writeCSV(t, cleanCSV), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Zero(t, table.Skipped())

	rec, ok := table.Get("48001")
	require.True(t, ok)
	assert.Equal(t, "Anderson", rec.Name)
	assert.Equal(t, "TX", rec.State)
	assert.Equal(t, 42.5, rec.Hazards[domain.Wildfire].RiskScore)
	assert.Equal(t, 1250000.5, rec.Hazards[domain.Wildfire].EALDollars)
	assert.Equal(t, domain.RatingRelativelyModerate, rec.Hazards[domain.Wildfire].Rating)
	assert.Equal(t, 55.1, rec.Hazards[domain.Tornado].RiskScore)

	assert.Equal(t, 48.2, rec.OverallRisk.RiskScore)
	assert.Equal(t, 7800000.25, rec.OverallRisk.EALDollars)
	assert.Equal(t, 61.3, rec.SocialVulnerability.RiskScore)
	assert.Equal(t, 52.0, rec.CommunityResilience.RiskScore)
	assert.Equal(t, domain.RatingRelativelyModerate, rec.CommunityResilience.Rating)
}

func TestLoad_AbsentColumnsReadAsZero(t *testing.T) {
	table, err := Load(writeCSV(t, cleanCSV), discardLogger())
	require.NoError(t, err)

	rec, ok := table.Get("48001")
	require.True(t, ok)
	// The fixture has no earthquake columns at all.
	assert.Zero(t, rec.Hazards[domain.Earthquake].RiskScore)
	assert.Zero(t, rec.Hazards[domain.Earthquake].EALDollars)
	assert.Equal(t, domain.RatingNone, rec.Hazards[domain.Earthquake].Rating)
}

func TestLoad_EmptyCellsReadAsZero(t *testing.T) {
	table, err := Load(writeCSV(t, cleanCSV), discardLogger())
	require.NoError(t, err)

	rec, ok := table.Get("48003")
	require.True(t, ok)
	assert.Zero(t, rec.Hazards[domain.Wildfire].RiskScore)
	assert.Zero(t, rec.OverallRisk.RiskScore)
}

func TestLoad_SkipsMalformedRows(t *testing.T) {
	table, err := Load(writeCSV(t, dirtyCSV), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len(), "only the two well-formed rows survive")
	assert.Equal(t, 5, table.Skipped())

	rec, ok := table.Get("48001")
	require.True(t, ok)
	assert.Equal(t, "Anderson", rec.Name, "first row wins on duplicate FIPS")
	assert.Equal(t, 42.5, rec.Hazards[domain.Wildfire].RiskScore)

	_, ok = table.Get("48005")
	assert.False(t, ok)
	_, ok = table.Get("48007")
	assert.False(t, ok)
}

func TestLoad_StateCounties(t *testing.T) {
	table, err := Load(writeCSV(t, cleanCSV), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"48001", "48003"}, table.StateCounties("48"))
	assert.Equal(t, []string{"02020"}, table.StateCounties("02"))
	assert.Empty(t, table.StateCounties("06"))
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), discardLogger())
		assert.Error(t, err)
	})

	t.Run("missing key column", func(t *testing.T) {
		_, err := Load(writeCSV(t, "GEOID,COUNTY\n48001,Anderson\n"), discardLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STCOFIPS")
	})

	t.Run("no usable rows", func(t *testing.T) {
		_, err := Load(writeCSV(t, "STCOFIPS,COUNTY\nbad,Row\n"), discardLogger())
		assert.Error(t, err)
	})
}
