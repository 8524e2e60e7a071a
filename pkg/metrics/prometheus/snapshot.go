package prometheus

import (
	"time"

	"github.com/marmos91/memfsd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type snapshotMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	filesSaved    prometheus.Gauge
	accountsSaved prometheus.Gauge
}

// NewSnapshotMetrics creates a Prometheus-backed metrics.SnapshotMetrics.
func NewSnapshotMetrics() metrics.SnapshotMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopSnapshotMetrics()
	}

	reg := metrics.GetRegistry()

	return &snapshotMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "memfsd_snapshot_operations_total",
				Help: "Snapshot saves and loads by store and outcome",
			},
			[]string{"operation", "store", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memfsd_snapshot_duration_milliseconds",
				Help:    "Duration of snapshot saves and loads in milliseconds",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
			[]string{"operation", "store"},
		),
		filesSaved: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "memfsd_snapshot_files",
				Help: "Number of files in the last snapshot saved or loaded",
			},
		),
		accountsSaved: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "memfsd_snapshot_accounts",
				Help: "Number of accounts in the last snapshot saved or loaded",
			},
		),
	}
}

func (m *snapshotMetrics) RecordSnapshot(operation, store string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(operation, store, status).Inc()
	m.duration.WithLabelValues(operation, store).Observe(float64(duration.Milliseconds()))
}

func (m *snapshotMetrics) SetSnapshotSize(files, accounts int) {
	m.filesSaved.Set(float64(files))
	m.accountsSaved.Set(float64(accounts))
}
