package prometheus

import (
	"fmt"

	"github.com/marmos91/memfsd/pkg/memfs"
	"github.com/marmos91/memfsd/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// FileStats is satisfied by *memfs.Service.
type FileStats interface {
	Stats() memfs.Stats
}

// AccountCounter is satisfied by *accounts.Registry.
type AccountCounter interface {
	Len() int
}

// RegisterTableGauges exposes the current table sizes as gauges that are
// read at scrape time. It does nothing when metrics are disabled.
func RegisterTableGauges(files FileStats, accounts AccountCounter) error {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "memfsd_files",
			Help: "Number of files in the file table",
		}, func() float64 { return float64(files.Stats().Files) }),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "memfsd_open_handles",
			Help: "Number of live handles in the open-file table",
		}, func() float64 { return float64(files.Stats().OpenHandles) }),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "memfsd_max_open_files",
			Help: "Capacity of the open-file table",
		}, func() float64 { return float64(files.Stats().MaxOpenFiles) }),

		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "memfsd_accounts",
			Help: "Number of registered accounts",
		}, func() float64 { return float64(accounts.Len()) }),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register table gauge: %w", err)
		}
	}
	return nil
}
