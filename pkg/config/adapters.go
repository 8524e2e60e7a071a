package config

import (
	"fmt"

	"github.com/marmos91/memfsd/pkg/adapter"
	"github.com/marmos91/memfsd/pkg/adapter/socket"
	"github.com/marmos91/memfsd/pkg/metrics"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Parameters:
//   - cfg: The complete memfsd configuration
//   - socketMetrics: Socket adapter metrics collector (nil = no metrics)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, socketMetrics metrics.SocketMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.Socket.Enabled {
		socketCfg := cfg.Adapters.Socket
		socketCfg.RequireAuth = cfg.Accounts.RequireAuth
		adapters = append(adapters, socket.New(socketCfg, socketMetrics))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
