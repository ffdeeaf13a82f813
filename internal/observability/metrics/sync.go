// Package metrics provides Prometheus metrics for sync passes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Bucket parameters shared by the duration histograms.
const (
	BucketStart1ms = 0.001
	BucketFactor2  = 2.0
	BucketCount15  = 15
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// SyncRecorder is the narrow interface the migration engine reports through.
type SyncRecorder interface {
	// RecordWrite counts one document operation handed to a batch (op: set, create, delete).
	RecordWrite(kind, op string)
	// RecordDeleteFailure counts a swallowed best-effort delete failure.
	RecordDeleteFailure(kind string)
	// RecordCommit records a batch window commit and its duration.
	RecordCommit(status string, seconds float64)
	// RecordPass records a finished per-kind pass.
	RecordPass(kind, status string, seconds float64)
	// SetPhase publishes the numeric phase of a kind's pass.
	SetPhase(kind string, phase int)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) RecordWrite(string, string) {}
func (NoopRecorder) RecordDeleteFailure(string) {}
func (NoopRecorder) RecordCommit(string, float64) {}
func (NoopRecorder) RecordPass(string, string, float64) {}
func (NoopRecorder) SetPhase(string, int) {}

// SyncMetrics contains Prometheus metrics for sync passes
type SyncMetrics struct {
	documentsWritten *prometheus.CounterVec
	deleteFailures   *prometheus.CounterVec
	batchCommits     *prometheus.CounterVec
	passesTotal      *prometheus.CounterVec
	passDuration     *prometheus.HistogramVec
	commitDuration   prometheus.Histogram
	phase            *prometheus.GaugeVec

	collectors []prometheus.Collector
}

// NewSyncMetrics creates and registers sync metrics
func NewSyncMetrics(registry prometheus.Registerer) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SyncMetrics) initMetrics() {
	m.documentsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invsync_documents_written_total",
			Help: "Total number of document operations handed to write batches",
		},
		[]string{"kind", "op"},
	)
	m.deleteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invsync_delete_failures_total",
			Help: "Total number of best-effort deletes that failed and were skipped",
		},
		[]string{"kind"},
	)
	m.batchCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invsync_batch_commits_total",
			Help: "Total number of batch window commits",
		},
		[]string{"status"},
	)
	m.passesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invsync_passes_total",
			Help: "Total number of per-kind sync passes",
		},
		[]string{"kind", "status"},
	)
	m.passDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invsync_pass_duration_seconds",
			Help:    "Time taken by a per-kind sync pass",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"kind"},
	)
	m.commitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "invsync_commit_duration_seconds",
			Help:    "Time taken to commit one batch window",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
	)
	m.phase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "invsync_phase",
			Help: "Current phase of each kind's pass (0 idle through 7 failed)",
		},
		[]string{"kind"},
	)

	m.collectors = []prometheus.Collector{
		m.documentsWritten, m.deleteFailures, m.batchCommits,
		m.passesTotal, m.passDuration, m.commitDuration, m.phase,
	}
}

// Describe implements the prometheus.Collector interface
func (m *SyncMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface
func (m *SyncMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

func (m *SyncMetrics) RecordWrite(kind, op string) {
	m.documentsWritten.WithLabelValues(kind, op).Inc()
}

func (m *SyncMetrics) RecordDeleteFailure(kind string) {
	m.deleteFailures.WithLabelValues(kind).Inc()
}

func (m *SyncMetrics) RecordCommit(status string, seconds float64) {
	m.batchCommits.WithLabelValues(status).Inc()
	m.commitDuration.Observe(seconds)
}

func (m *SyncMetrics) RecordPass(kind, status string, seconds float64) {
	m.passesTotal.WithLabelValues(kind, status).Inc()
	m.passDuration.WithLabelValues(kind).Observe(seconds)
}

func (m *SyncMetrics) SetPhase(kind string, phase int) {
	m.phase.WithLabelValues(kind).Set(float64(phase))
}
