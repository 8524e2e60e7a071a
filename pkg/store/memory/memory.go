// Package memory is a snapshot store that lives in process memory.
//
// It survives nothing but an in-process restart of the server and exists for
// tests and for wiring checks of the snapshot path.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/marmos91/memfsd/pkg/store"
)

// MemorySnapshotStoreConfig has no options. It exists so the factory can
// decode a memory section the same way it decodes the others.
type MemorySnapshotStoreConfig struct{}

// MemorySnapshotStore keeps the latest snapshot as encoded JSON so callers
// never share state with the stored copy.
type MemorySnapshotStore struct {
	mu     sync.RWMutex
	data   []byte
	closed bool
}

// NewMemorySnapshotStore returns an empty store.
func NewMemorySnapshotStore(_ MemorySnapshotStoreConfig) *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (s *MemorySnapshotStore) Save(ctx context.Context, snap *store.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	s.data = data
	return nil
}

func (s *MemorySnapshotStore) Load(ctx context.Context) (*store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	if s.data == nil {
		return nil, store.ErrNoSnapshot
	}

	var snap store.Snapshot
	if err := json.Unmarshal(s.data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *MemorySnapshotStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemorySnapshotStore) Type() string { return "memory" }
