package config

import (
	"fmt"

	"github.com/marmos91/memfsd/internal/logger"
	"github.com/marmos91/memfsd/pkg/accounts"
	"github.com/marmos91/memfsd/pkg/adapter"
	"github.com/marmos91/memfsd/pkg/memfs"
)

// InitializeServices creates the shared file service and account registry
// every adapter serves.
//
// The tables start empty; restoring a snapshot into them is the server's
// job.
func InitializeServices(cfg *Config) (adapter.Services, error) {
	if cfg == nil {
		return adapter.Services{}, fmt.Errorf("configuration is nil")
	}

	svc := adapter.Services{
		Files:    memfs.NewService(cfg.Files),
		Accounts: accounts.NewRegistry(),
	}

	logger.Debug("Initialized file service (max_open_files=%d, require_auth=%v)",
		svc.Files.Stats().MaxOpenFiles, cfg.Accounts.RequireAuth)

	return svc, nil
}
