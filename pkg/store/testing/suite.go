// Package testing holds a conformance suite for store.Store implementations.
package testing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/memfsd/pkg/accounts"
	"github.com/marmos91/memfsd/pkg/memfs"
	"github.com/marmos91/memfsd/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite tests the Store contract, not implementation details.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func() store.Store { return mystore.New() },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore returns a fresh, empty store for each test.
	NewStore func() store.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("LoadEmpty", suite.testLoadEmpty)
	t.Run("SaveLoad", suite.testSaveLoad)
	t.Run("SaveReplaces", suite.testSaveReplaces)
	t.Run("EmptyTables", suite.testEmptyTables)
	t.Run("CancelledContext", suite.testCancelledContext)
	t.Run("ServiceRoundTrip", suite.testServiceRoundTrip)
}

func (suite *StoreTestSuite) store(t *testing.T) store.Store {
	t.Helper()
	s := suite.NewStore()
	require.NotNil(t, s)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSnapshot(files []memfs.FileRecord, accts []accounts.Account) *store.Snapshot {
	return &store.Snapshot{
		ID:       "snapshot-" + time.Now().Format("150405.000000000"),
		Version:  store.SnapshotVersion,
		TakenAt:  time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
		Files:    files,
		Accounts: accts,
	}
}

func (suite *StoreTestSuite) testLoadEmpty(t *testing.T) {
	s := suite.store(t)

	snap, err := s.Load(context.Background())
	assert.Nil(t, snap)
	assert.True(t, errors.Is(err, store.ErrNoSnapshot), "expected ErrNoSnapshot, got %v", err)
}

func (suite *StoreTestSuite) testSaveLoad(t *testing.T) {
	s := suite.store(t)
	ctx := context.Background()

	want := testSnapshot(
		[]memfs.FileRecord{
			{Name: "a.txt", Content: "hello", OwnerPermission: memfs.PermissionReadWrite, OthersPermission: memfs.PermissionRead},
			{Name: "b.txt", Content: "", OwnerPermission: memfs.PermissionWrite, OthersPermission: memfs.PermissionNone},
			{Name: "ünï.txt", Content: "çà et là", OwnerPermission: memfs.PermissionRead, OthersPermission: memfs.PermissionReadWrite},
		},
		[]accounts.Account{
			{Name: "alice", Password: "secret"},
			{Name: "bob", Password: "hunter2"},
		},
	)
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Version, got.Version)
	assert.True(t, want.TakenAt.Equal(got.TakenAt), "taken_at %v != %v", got.TakenAt, want.TakenAt)
	assert.Equal(t, want.Files, got.Files)
	assert.Equal(t, want.Accounts, got.Accounts)
}

func (suite *StoreTestSuite) testSaveReplaces(t *testing.T) {
	s := suite.store(t)
	ctx := context.Background()

	first := testSnapshot(
		[]memfs.FileRecord{
			{Name: "old", Content: "1", OwnerPermission: memfs.PermissionRead},
			{Name: "kept", Content: "2", OwnerPermission: memfs.PermissionRead},
		},
		[]accounts.Account{{Name: "gone", Password: "x"}},
	)
	require.NoError(t, s.Save(ctx, first))

	second := testSnapshot(
		[]memfs.FileRecord{{Name: "kept", Content: "3", OwnerPermission: memfs.PermissionWrite}},
		[]accounts.Account{{Name: "new", Password: "y"}},
	)
	second.ID = "second"
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", got.ID)
	assert.Equal(t, second.Files, got.Files)
	assert.Equal(t, second.Accounts, got.Accounts)
}

func (suite *StoreTestSuite) testEmptyTables(t *testing.T) {
	s := suite.store(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSnapshot(nil, nil)))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Files)
	assert.Empty(t, got.Accounts)
	assert.NoError(t, got.Validate())
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	s := suite.store(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Save(ctx, testSnapshot(nil, nil)), context.Canceled)
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// testServiceRoundTrip saves live tables and restores them into fresh ones.
func (suite *StoreTestSuite) testServiceRoundTrip(t *testing.T) {
	s := suite.store(t)
	ctx := context.Background()

	files := memfs.NewService(memfs.Config{MaxOpenFiles: 5})
	accts := accounts.NewRegistry()

	require.NoError(t, files.Create(ctx, "notes", "remember the milk", memfs.PermissionReadWrite, memfs.PermissionRead))
	require.NoError(t, files.Create(ctx, "log", "", memfs.PermissionWrite, memfs.PermissionNone))
	require.NoError(t, accts.Register(ctx, "carol", "pw"))
	require.NoError(t, accts.Login(ctx, "carol", "pw"))
	_, err := files.Open(ctx, "notes", memfs.PermissionRead)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, store.NewSnapshot(files, accts)))

	snap, err := s.Load(ctx)
	require.NoError(t, err)

	restoredFiles := memfs.NewService(memfs.Config{MaxOpenFiles: 5})
	restoredAccts := accounts.NewRegistry()
	require.NoError(t, snap.Apply(restoredFiles, restoredAccts))

	assert.Equal(t, files.Snapshot(), restoredFiles.Snapshot())
	assert.Equal(t, accts.Snapshot(), restoredAccts.Snapshot())
	assert.Empty(t, restoredFiles.Handles(), "open handles must not survive a snapshot")
	assert.False(t, restoredAccts.IsOnline("carol"))
	assert.NoError(t, restoredAccts.Login(ctx, "carol", "pw"))
}
