// Package metrics provides Prometheus metrics collection for memfsd.
//
// All metrics are optional. If the registry is not initialized, components
// use no-op implementations, so memfsd runs the same with or without
// collection enabled.
//
// Usage:
//
//	metrics.InitRegistry()
//	socketMetrics := prometheus.NewSocketMetrics()
//	adapter := socket.New(cfg, socketMetrics)
//
//	// or nil for no-op behaviour
//	adapter := socket.New(cfg, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry. Later calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
