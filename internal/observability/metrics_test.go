package observability

import (
	"bytes"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport(t *testing.T) {
	m := NewMetricsForTesting()

	m.JurisdictionsProcessed.WithLabelValues("ok").Add(3)
	m.JurisdictionsProcessed.WithLabelValues("fallback").Inc()
	m.CountiesMatched.Add(12)
	m.SliversDropped.Inc()
	m.OverridesApplied.WithLabelValues("wildfire").Inc()
	m.CrosswalkReused.Set(1)
	m.RunDuration.Observe(1.2)
	m.StageDuration.WithLabelValues("crosswalk").Observe(0.4)

	out, err := m.Export()
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, `hazard_etl_jurisdictions_processed_total{status="ok"} 3`)
	assert.Contains(t, text, `hazard_etl_jurisdictions_processed_total{status="fallback"} 1`)
	assert.Contains(t, text, "hazard_etl_counties_matched_total 12")
	assert.Contains(t, text, "hazard_etl_slivers_dropped_total 1")
	assert.Contains(t, text, `hazard_etl_overrides_applied_total{hazard="wildfire"} 1`)
	assert.Contains(t, text, "hazard_etl_crosswalk_reused 1")
	assert.Contains(t, text, "hazard_etl_run_duration_seconds_bucket")
	assert.Contains(t, text, `hazard_etl_stage_duration_seconds_count{stage="crosswalk"} 1`)
	assert.Contains(t, text, "# HELP")
	assert.Contains(t, text, "# TYPE")
}

func TestExport_ParsesAsExpositionFormat(t *testing.T) {
	m := NewMetricsForTesting()
	m.JurisdictionsProcessed.WithLabelValues("ok").Add(2)
	m.RunDuration.Observe(0.25)

	out, err := m.Export()
	require.NoError(t, err)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(bytes.NewReader(out))
	require.NoError(t, err)

	jp, ok := families["hazard_etl_jurisdictions_processed_total"]
	require.True(t, ok)
	assert.Equal(t, dto.MetricType_COUNTER, jp.GetType())
	require.Len(t, jp.GetMetric(), 1)
	assert.Equal(t, 2.0, jp.GetMetric()[0].GetCounter().GetValue())

	rd, ok := families["hazard_etl_run_duration_seconds"]
	require.True(t, ok)
	assert.Equal(t, dto.MetricType_HISTOGRAM, rd.GetType())
	require.NotEmpty(t, rd.GetMetric())
	assert.Equal(t, uint64(1), rd.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestExport_FreshMetrics(t *testing.T) {
	out, err := NewMetricsForTesting().Export()
	require.NoError(t, err)

	// Plain counters and gauges exist at zero even before any increment.
	assert.Contains(t, string(out), "hazard_etl_counties_matched_total 0")
	assert.Contains(t, string(out), "hazard_etl_crosswalk_reused 0")
}

func TestMetricsInstancesAreIndependent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.CountiesMatched.Add(5)

	outB, err := b.Export()
	require.NoError(t, err)
	assert.Contains(t, string(outB), "hazard_etl_counties_matched_total 0")
}
