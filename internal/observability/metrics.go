package observability

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// profile pipeline. The pipeline is a batch job, so metrics live on a
// private registry and are exported once per run as a textfile artifact
// instead of being scraped.
type Metrics struct {
	JurisdictionsProcessed *prometheus.CounterVec // labels: status={ok,fallback,no_data}
	CountiesMatched        prometheus.Counter
	SliversDropped         prometheus.Counter
	OverlayFailures        prometheus.Counter
	RecordsSkipped         *prometheus.CounterVec // labels: source={nri,wildfire}
	OverridesApplied       *prometheus.CounterVec // labels: hazard
	CrosswalkReused        prometheus.Gauge

	RunDuration   prometheus.Histogram
	StageDuration *prometheus.HistogramVec // labels: stage={load,crosswalk,aggregate,persist}

	registry *prometheus.Registry
}

// NewMetrics creates all pipeline metrics on a fresh private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		JurisdictionsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_etl",
			Name:      "jurisdictions_processed_total",
			Help:      "Jurisdiction profiles produced, by resolution status.",
		}, []string{"status"}),
		CountiesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_etl",
			Name:      "counties_matched_total",
			Help:      "County overlap pairs retained in the crosswalk.",
		}),
		SliversDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_etl",
			Name:      "slivers_dropped_total",
			Help:      "Overlap pairs discarded as boundary-noise slivers.",
		}),
		OverlayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_etl",
			Name:      "overlay_failures_total",
			Help:      "Geometry repairs or intersections that failed and were skipped.",
		}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_etl",
			Name:      "records_skipped_total",
			Help:      "Malformed or duplicate input rows dropped, by source.",
		}, []string{"source"}),
		OverridesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_etl",
			Name:      "overrides_applied_total",
			Help:      "Secondary-source score overrides applied, by hazard.",
		}, []string{"hazard"}),
		CrosswalkReused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_etl",
			Name:      "crosswalk_reused",
			Help:      "1 when the run reused a cached crosswalk, 0 when it rebuilt.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete pipeline run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hazard_etl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.JurisdictionsProcessed,
		m.CountiesMatched,
		m.SliversDropped,
		m.OverlayFailures,
		m.RecordsSkipped,
		m.OverridesApplied,
		m.CrosswalkReused,
		m.RunDuration,
		m.StageDuration,
	)

	return m
}

// NewMetricsForTesting returns an independent Metrics instance. Every
// instance owns its registry, so tests can create as many as they need
// without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// Export renders the registry in the Prometheus text exposition format,
// suitable for the textfile collector or offline inspection.
func (m *Metrics) Export() ([]byte, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}
