package config

import (
	"github.com/marmos91/memfsd/pkg/metrics"
	promMetrics "github.com/marmos91/memfsd/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// SocketMetrics is the socket adapter collector (never nil, noop if disabled)
	SocketMetrics metrics.SocketMetrics

	// SnapshotMetrics is the snapshot collector (never nil, noop if disabled)
	SnapshotMetrics metrics.SnapshotMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled the global Prometheus registry is initialized and
// Prometheus-backed collectors are returned together with the HTTP server.
// Otherwise the collectors are no-ops and Server is nil.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Server:          nil,
			SocketMetrics:   metrics.NewNoopSocketMetrics(),
			SnapshotMetrics: metrics.NewNoopSnapshotMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
	})

	return &MetricsResult{
		Server:          server,
		SocketMetrics:   promMetrics.NewSocketMetrics(),
		SnapshotMetrics: promMetrics.NewSnapshotMetrics(),
	}
}
