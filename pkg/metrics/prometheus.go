package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	snapshots    *prometheus.CounterVec
	snapshotSize *prometheus.GaugeVec
	anomalies    *prometheus.CounterVec
	banners      *prometheus.CounterVec
	sections     *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on reg, or on the default registry when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		snapshots: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoboard_snapshots_total",
				Help: "Feed snapshots accepted, by source",
			},
			[]string{"source"},
		),
		snapshotSize: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recoboard_snapshot_records",
				Help: "Raw record count of the latest snapshot, by source",
			},
			[]string{"source"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoboard_ingest_anomalies_total",
				Help: "Data-contract anomalies found at ingestion, by kind",
			},
			[]string{"kind"},
		),
		banners: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoboard_banner_resolutions_total",
				Help: "Banner states resolved by presentation passes",
			},
			[]string{"state"},
		),
		sections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recoboard_section_records",
				Help: "Records per section in the latest presentation pass",
			},
			[]string{"section"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoboard_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recoboard_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSnapshot records an accepted snapshot and its raw size.
func (r *Recorder) RecordSnapshot(source string, records int) {
	r.snapshots.WithLabelValues(source).Inc()
	r.snapshotSize.WithLabelValues(source).Set(float64(records))
}

// RecordAnomaly records one ingestion anomaly.
func (r *Recorder) RecordAnomaly(kind string) {
	r.anomalies.WithLabelValues(kind).Inc()
}

// RecordBanner records a resolved banner state.
func (r *Recorder) RecordBanner(state string) {
	r.banners.WithLabelValues(state).Inc()
}

// RecordSections sets the per-section gauges.
func (r *Recorder) RecordSections(active, needsAttention, archived int) {
	r.sections.WithLabelValues("active").Set(float64(active))
	r.sections.WithLabelValues("needs-attention").Set(float64(needsAttention))
	r.sections.WithLabelValues("archived").Set(float64(archived))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
