package config

import (
	"context"
	"fmt"

	"github.com/marmos91/memfsd/internal/logger"
	"github.com/marmos91/memfsd/pkg/store"
	"github.com/marmos91/memfsd/pkg/store/badger"
	"github.com/marmos91/memfsd/pkg/store/memory"
	"github.com/marmos91/memfsd/pkg/store/s3"
)

// CreateSnapshotStore creates the snapshot store selected by cfg.Type.
//
// Supported types:
//   - "none": no store; returns (nil, nil)
//   - "memory": pkg/store/memory (lost on exit; for tests)
//   - "badger": pkg/store/badger (BadgerDB directory)
//   - "s3": pkg/store/s3 (one object in a bucket)
func CreateSnapshotStore(ctx context.Context, cfg *SnapshotConfig) (store.Store, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return memory.NewMemorySnapshotStore(memory.MemorySnapshotStoreConfig{}), nil
	case "badger":
		return createBadgerSnapshotStore(ctx, cfg.Badger)
	case "s3":
		return createS3SnapshotStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown snapshot store type: %q (supported: none, memory, badger, s3)", cfg.Type)
	}
}

// createBadgerSnapshotStore creates a BadgerDB snapshot store.
func createBadgerSnapshotStore(ctx context.Context, options map[string]any) (store.Store, error) {
	var badgerCfg badger.BadgerSnapshotStoreConfig
	if err := decodeOptions(options, &badgerCfg); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}

	s, err := badger.NewBadgerSnapshotStore(ctx, badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Info("Badger snapshot store initialized: path=%s", badgerCfg.Path)
	return s, nil
}

// createS3SnapshotStore creates an S3-backed snapshot store.
func createS3SnapshotStore(ctx context.Context, options map[string]any) (store.Store, error) {
	var s3Cfg s3.S3SnapshotStoreConfig
	if err := decodeOptions(options, &s3Cfg); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}

	if s3Cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if s3Cfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	s, err := s3.NewS3SnapshotStore(ctx, s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 store: %w", err)
	}
	return s, nil
}
