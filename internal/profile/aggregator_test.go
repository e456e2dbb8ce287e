package profile

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskmoth/hazard-profile-etl/internal/crosswalk"
	"github.com/duskmoth/hazard-profile-etl/internal/domain"
	"github.com/duskmoth/hazard-profile-etl/internal/geo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- stub record source ---

type stubRecords struct {
	records map[string]domain.CountyRecord
	states  map[string][]string
}

func (s stubRecords) Get(fips string) (domain.CountyRecord, bool) {
	rec, ok := s.records[fips]
	return rec, ok
}

func (s stubRecords) StateCounties(stateFIPS string) []string {
	return s.states[stateFIPS]
}

func county(fips string, hazards map[domain.HazardType]domain.HazardMetrics, overall domain.HazardMetrics) domain.CountyRecord {
	if hazards == nil {
		hazards = map[domain.HazardType]domain.HazardMetrics{}
	}
	return domain.CountyRecord{
		FIPS:        fips,
		Hazards:     hazards,
		OverallRisk: overall,
	}
}

func mapping(id string, entries ...crosswalk.Entry) crosswalk.Mapping {
	return crosswalk.Mapping{
		JurisdictionID: id,
		Region:         geo.BucketConus,
		Entries:        entries,
	}
}

func newAggregator(records stubRecords) *Aggregator {
	return NewAggregator(records, domain.DefaultPolicy(), "2023.1", "cafe01", discardLogger())
}

// --- tests ---

func TestAggregate_WeightedMeanAndProportionalSum(t *testing.T) {
	records := stubRecords{records: map[string]domain.CountyRecord{
		"48001": county("48001",
			map[domain.HazardType]domain.HazardMetrics{
				domain.Wildfire: {RiskScore: 80, EALDollars: 1_000_000},
			},
			domain.HazardMetrics{RiskScore: 80, EALDollars: 1_000_000}),
		"48003": county("48003",
			map[domain.HazardType]domain.HazardMetrics{
				domain.Wildfire: {RiskScore: 50, EALDollars: 200_000},
			},
			domain.HazardMetrics{RiskScore: 50, EALDollars: 200_000}),
	}}

	p := newAggregator(records).Aggregate(mapping("district-12",
		crosswalk.Entry{CountyID: "48001", Weight: 0.7},
		crosswalk.Entry{CountyID: "48003", Weight: 0.3},
	))

	assert.Equal(t, domain.StatusOK, p.Status)
	slot := p.Hazards[domain.Wildfire]
	assert.Equal(t, 71.0, slot.WeightedRiskScore, "0.7*80 + 0.3*50")
	assert.Equal(t, 760_000.0, slot.WeightedEAL, "0.7*1M + 0.3*200k")
	assert.Equal(t, domain.RatingRelativelyHigh, slot.Rating)
	assert.Equal(t, domain.SourcePrimary, slot.Source)

	assert.Equal(t, 71.0, p.OverallRisk.WeightedRiskScore)
	assert.Equal(t, []string{"48001", "48003"}, p.Provenance.CountiesUsed)
	assert.Empty(t, p.Provenance.CountiesSkipped)
	assert.Equal(t, "2023.1", p.Provenance.Edition)
	assert.Equal(t, "cafe01", p.Provenance.CrosswalkChecksum)
}

func TestAggregate_RatingBoundary(t *testing.T) {
	tests := []struct {
		score float64
		want  domain.Rating
	}{
		{score: 80.0, want: domain.RatingVeryHigh},
		{score: 79.999, want: domain.RatingRelativelyHigh},
		{score: 20.0, want: domain.RatingRelativelyLow},
		{score: 19.999, want: domain.RatingVeryLow},
	}
	for _, tt := range tests {
		records := stubRecords{records: map[string]domain.CountyRecord{
			"48001": county("48001",
				map[domain.HazardType]domain.HazardMetrics{domain.Tornado: {RiskScore: tt.score}},
				domain.HazardMetrics{}),
		}}
		p := newAggregator(records).Aggregate(mapping("d",
			crosswalk.Entry{CountyID: "48001", Weight: 1.0}))
		assert.Equal(t, tt.want, p.Hazards[domain.Tornado].Rating, "score %v", tt.score)
	}
}

func TestAggregate_AllSlotsEmitted(t *testing.T) {
	records := stubRecords{records: map[string]domain.CountyRecord{
		"48001": county("48001",
			map[domain.HazardType]domain.HazardMetrics{domain.Hail: {RiskScore: 33}},
			domain.HazardMetrics{}),
	}}

	p := newAggregator(records).Aggregate(mapping("d",
		crosswalk.Entry{CountyID: "48001", Weight: 1.0}))

	require.Len(t, p.Hazards, len(domain.HazardTypes()))
	for _, h := range domain.HazardTypes() {
		slot, ok := p.Hazards[h]
		require.True(t, ok, "slot %s must exist", h)
		if h == domain.Hail {
			continue
		}
		assert.Zero(t, slot.WeightedRiskScore, "slot %s", h)
		assert.Equal(t, domain.RatingVeryLow, slot.Rating,
			"zero is measured no-risk and still rates in the lowest band")
	}

	require.Len(t, p.TopHazards, 1, "zero scores never rank")
	assert.Equal(t, domain.Hail, p.TopHazards[0].Type)
}

func TestAggregate_MissingCountyExcludedWithoutRenormalizing(t *testing.T) {
	records := stubRecords{records: map[string]domain.CountyRecord{
		"48001": county("48001",
			map[domain.HazardType]domain.HazardMetrics{domain.Drought: {RiskScore: 50, EALDollars: 100_000}},
			domain.HazardMetrics{RiskScore: 50}),
	}}

	p := newAggregator(records).Aggregate(mapping("d",
		crosswalk.Entry{CountyID: "48001", Weight: 0.6},
		crosswalk.Entry{CountyID: "48999", Weight: 0.4},
	))

	assert.Equal(t, domain.StatusOK, p.Status)
	slot := p.Hazards[domain.Drought]
	assert.InDelta(t, 30.0, slot.WeightedRiskScore, 1e-9,
		"surviving weight stays 0.6, understating rather than inflating")
	assert.InDelta(t, 60_000.0, slot.WeightedEAL, 1e-9)
	assert.Equal(t, []string{"48001"}, p.Provenance.CountiesUsed)
	assert.Equal(t, []string{"48999"}, p.Provenance.CountiesSkipped)
}

func TestAggregate_StateFallback(t *testing.T) {
	records := stubRecords{
		records: map[string]domain.CountyRecord{
			"48001": county("48001",
				map[domain.HazardType]domain.HazardMetrics{domain.HeatWave: {RiskScore: 60}},
				domain.HazardMetrics{RiskScore: 60}),
			"48003": county("48003",
				map[domain.HazardType]domain.HazardMetrics{domain.HeatWave: {RiskScore: 20}},
				domain.HazardMetrics{RiskScore: 20}),
		},
		states: map[string][]string{"48": {"48001", "48003"}},
	}

	m := mapping("district-empty")
	m.StateFIPS = "48"
	p := newAggregator(records).Aggregate(m)

	assert.Equal(t, domain.StatusFallback, p.Status)
	assert.InDelta(t, 40.0, p.Hazards[domain.HeatWave].WeightedRiskScore, 1e-9,
		"equal weights over the state's counties")
	assert.Equal(t, []string{"48001", "48003"}, p.Provenance.CountiesUsed)
}

func TestAggregate_PlaceholderWhenFallbackFails(t *testing.T) {
	records := stubRecords{states: map[string][]string{}}

	t.Run("no state fips", func(t *testing.T) {
		p := newAggregator(records).Aggregate(mapping("district-lost"))

		assert.Equal(t, domain.StatusNoData, p.Status)
		require.Len(t, p.Hazards, len(domain.HazardTypes()))
		for h, slot := range p.Hazards {
			assert.Zero(t, slot.WeightedRiskScore, "slot %s", h)
			assert.Equal(t, domain.RatingNone, slot.Rating, "slot %s", h)
		}
		require.NotNil(t, p.TopHazards)
		assert.Empty(t, p.TopHazards)
		assert.Equal(t, "cafe01", p.Provenance.CrosswalkChecksum)
	})

	t.Run("unknown state", func(t *testing.T) {
		m := mapping("district-lost")
		m.StateFIPS = "99"
		p := newAggregator(records).Aggregate(m)
		assert.Equal(t, domain.StatusNoData, p.Status)
	})
}

func TestAggregate_TopHazardRanking(t *testing.T) {
	records := stubRecords{records: map[string]domain.CountyRecord{
		"48001": county("48001",
			map[domain.HazardType]domain.HazardMetrics{
				domain.Tornado:          {RiskScore: 90},
				domain.Hail:             {RiskScore: 70},
				domain.Drought:          {RiskScore: 70},
				domain.Wildfire:         {RiskScore: 50},
				domain.StrongWind:       {RiskScore: 40},
				domain.Lightning:        {RiskScore: 30},
				domain.RiverineFlooding: {RiskScore: 10},
			},
			domain.HazardMetrics{}),
	}}

	p := newAggregator(records).Aggregate(mapping("d",
		crosswalk.Entry{CountyID: "48001", Weight: 1.0}))

	require.Len(t, p.TopHazards, 5, "truncated to the policy cap")
	assert.Equal(t, domain.Tornado, p.TopHazards[0].Type)
	assert.Equal(t, domain.Drought, p.TopHazards[1].Type, "canonical order breaks the 70/70 tie")
	assert.Equal(t, domain.Hail, p.TopHazards[2].Type)
	assert.Equal(t, domain.Wildfire, p.TopHazards[3].Type)
	assert.Equal(t, domain.StrongWind, p.TopHazards[4].Type)
}

func TestAggregate_Composites(t *testing.T) {
	records := stubRecords{records: map[string]domain.CountyRecord{
		"48001": {
			FIPS:                "48001",
			Hazards:             map[domain.HazardType]domain.HazardMetrics{},
			OverallRisk:         domain.HazardMetrics{RiskScore: 85, EALDollars: 2_000_000},
			SocialVulnerability: domain.HazardMetrics{RiskScore: 30},
			CommunityResilience: domain.HazardMetrics{RiskScore: 62},
		},
		"48003": {
			FIPS:                "48003",
			Hazards:             map[domain.HazardType]domain.HazardMetrics{},
			OverallRisk:         domain.HazardMetrics{RiskScore: 45, EALDollars: 500_000},
			SocialVulnerability: domain.HazardMetrics{RiskScore: 70},
			CommunityResilience: domain.HazardMetrics{RiskScore: 38},
		},
	}}

	p := newAggregator(records).Aggregate(mapping("d",
		crosswalk.Entry{CountyID: "48001", Weight: 0.5},
		crosswalk.Entry{CountyID: "48003", Weight: 0.5},
	))

	assert.InDelta(t, 65.0, p.OverallRisk.WeightedRiskScore, 1e-9)
	assert.InDelta(t, 1_250_000.0, p.OverallRisk.WeightedEAL, 1e-9)
	assert.Equal(t, domain.RatingRelativelyHigh, p.OverallRisk.Rating)

	assert.InDelta(t, 50.0, p.SocialVulnerability.WeightedRiskScore, 1e-9)
	assert.Equal(t, domain.RatingRelativelyModerate, p.SocialVulnerability.Rating)

	assert.InDelta(t, 50.0, p.CommunityResilience.WeightedRiskScore, 1e-9)
}
