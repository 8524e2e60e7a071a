package memory

import (
	"context"
	"testing"

	"github.com/marmos91/memfsd/pkg/store"
	storetesting "github.com/marmos91/memfsd/pkg/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemorySnapshotStore runs the complete Store test suite against the
// MemorySnapshotStore implementation.
func TestMemorySnapshotStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func() store.Store {
			return NewMemorySnapshotStore(MemorySnapshotStoreConfig{})
		},
	}

	suite.Run(t)
}

func TestClosedStore(t *testing.T) {
	s := NewMemorySnapshotStore(MemorySnapshotStoreConfig{})
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.ErrorIs(t, s.Save(ctx, &store.Snapshot{Version: store.SnapshotVersion}), store.ErrClosed)
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestLoadReturnsCopy(t *testing.T) {
	s := NewMemorySnapshotStore(MemorySnapshotStoreConfig{})
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &store.Snapshot{ID: "one", Version: store.SnapshotVersion}))

	first, err := s.Load(ctx)
	require.NoError(t, err)
	first.ID = "changed"

	second, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", second.ID)
}
