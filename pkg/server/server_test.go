package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/memfsd/internal/protocol/line"
	"github.com/marmos91/memfsd/pkg/accounts"
	"github.com/marmos91/memfsd/pkg/adapter"
	"github.com/marmos91/memfsd/pkg/adapter/socket"
	"github.com/marmos91/memfsd/pkg/client"
	"github.com/marmos91/memfsd/pkg/memfs"
	"github.com/marmos91/memfsd/pkg/store"
	"github.com/marmos91/memfsd/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter records its lifecycle and can be told to fail.
type fakeAdapter struct {
	protocol string
	addr     string
	failWith error

	mu       sync.Mutex
	services adapter.Services
	stopped  bool
	started  chan struct{}
}

func newFakeAdapter(protocol, addr string) *fakeAdapter {
	return &fakeAdapter{protocol: protocol, addr: addr, started: make(chan struct{})}
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	close(f.started)
	if f.failWith != nil {
		return f.failWith
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeAdapter) SetServices(svc adapter.Services) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.services = svc
}

func (f *fakeAdapter) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Addr() string     { return f.addr }

func (f *fakeAdapter) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// failingStore fails every Save.
type failingStore struct {
	store.Store
}

func (failingStore) Save(context.Context, *store.Snapshot) error { return errors.New("disk full") }

func newServices() adapter.Services {
	return adapter.Services{
		Files:    memfs.NewService(memfs.Config{}),
		Accounts: accounts.NewRegistry(),
	}
}

// serve runs srv.Serve in the background and returns a cancel func and the
// channel Serve's result arrives on.
func serve(t *testing.T, srv *Server) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestNewPanicsOnNilServices(t *testing.T) {
	assert.Panics(t, func() { New(adapter.Services{}, Options{}) })
}

func TestAddAdapter(t *testing.T) {
	svc := newServices()
	srv := New(svc, Options{})

	a := newFakeAdapter("socket", "/tmp/a.sock")
	require.NoError(t, srv.AddAdapter(a))
	assert.Same(t, svc.Files, a.services.Files, "services must be injected")

	assert.Error(t, srv.AddAdapter(newFakeAdapter("socket", "/tmp/b.sock")), "duplicate protocol")
	assert.Error(t, srv.AddAdapter(newFakeAdapter("other", "/tmp/a.sock")), "duplicate address")
	assert.Len(t, srv.Adapters(), 1)
}

func TestServeWithoutAdapters(t *testing.T) {
	srv := New(newServices(), Options{})
	assert.Error(t, srv.Serve(context.Background()))
}

func TestServeTwice(t *testing.T) {
	srv := New(newServices(), Options{})
	a := newFakeAdapter("fake", "fake")
	require.NoError(t, srv.AddAdapter(a))

	cancel, done := serve(t, srv)
	<-a.started

	assert.Error(t, srv.Serve(context.Background()))

	cancel()
	assert.ErrorIs(t, waitDone(t, done), context.Canceled)
}

func TestCancellationStopsAdapters(t *testing.T) {
	srv := New(newServices(), Options{})
	a := newFakeAdapter("a", "a")
	b := newFakeAdapter("b", "b")
	require.NoError(t, srv.AddAdapter(a))
	require.NoError(t, srv.AddAdapter(b))

	cancel, done := serve(t, srv)
	<-a.started
	<-b.started

	cancel()
	assert.ErrorIs(t, waitDone(t, done), context.Canceled)
	assert.True(t, a.wasStopped())
	assert.True(t, b.wasStopped())
}

func TestAdapterFailureStopsOthers(t *testing.T) {
	srv := New(newServices(), Options{})
	healthy := newFakeAdapter("healthy", "healthy")
	broken := newFakeAdapter("broken", "broken")
	broken.failWith = errors.New("bind failed")
	require.NoError(t, srv.AddAdapter(healthy))
	require.NoError(t, srv.AddAdapter(broken))

	_, done := serve(t, srv)

	err := waitDone(t, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind failed")
	assert.True(t, healthy.wasStopped())
}

func TestRestoreOnStartAndSaveOnShutdown(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewMemorySnapshotStore(memory.MemorySnapshotStoreConfig{})

	// Seed the store from a first set of tables
	seed := newServices()
	require.NoError(t, seed.Files.Create(ctx, "restored", "from snapshot", memfs.PermissionReadWrite, memfs.PermissionNone))
	require.NoError(t, seed.Accounts.Register(ctx, "frank", "pw"))
	require.NoError(t, snapshots.Save(ctx, store.NewSnapshot(seed.Files, seed.Accounts)))

	svc := newServices()
	srv := New(svc, Options{Snapshots: snapshots, RestoreOnStart: true, SaveOnShutdown: true})
	a := newFakeAdapter("fake", "fake")
	require.NoError(t, srv.AddAdapter(a))

	cancel, done := serve(t, srv)
	<-a.started

	rec, ok := svc.Files.Lookup("restored")
	require.True(t, ok, "snapshot must be restored before adapters start")
	assert.Equal(t, "from snapshot", rec.Content)
	assert.NoError(t, svc.Accounts.Login(ctx, "frank", "pw"))

	require.NoError(t, svc.Files.Create(ctx, "added", "while running", memfs.PermissionRead, memfs.PermissionNone))

	cancel()
	assert.ErrorIs(t, waitDone(t, done), context.Canceled)

	snap, err := snapshots.Load(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(snap.Files))
	for _, f := range snap.Files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"added", "restored"}, names)
}

func TestRestoreWithEmptyStore(t *testing.T) {
	snapshots := memory.NewMemorySnapshotStore(memory.MemorySnapshotStoreConfig{})
	srv := New(newServices(), Options{Snapshots: snapshots, RestoreOnStart: true})
	a := newFakeAdapter("fake", "fake")
	require.NoError(t, srv.AddAdapter(a))

	cancel, done := serve(t, srv)
	<-a.started
	cancel()
	assert.ErrorIs(t, waitDone(t, done), context.Canceled)

	_, err := snapshots.Load(context.Background())
	assert.ErrorIs(t, err, store.ErrNoSnapshot, "nothing is saved unless SaveOnShutdown is set")
}

func TestRestoreFailureAbortsStartup(t *testing.T) {
	ctx := context.Background()
	snapshots := memory.NewMemorySnapshotStore(memory.MemorySnapshotStoreConfig{})
	require.NoError(t, snapshots.Save(ctx, &store.Snapshot{Version: 42}))

	srv := New(newServices(), Options{Snapshots: snapshots, RestoreOnStart: true})
	a := newFakeAdapter("fake", "fake")
	require.NoError(t, srv.AddAdapter(a))

	err := srv.Serve(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restore snapshot")

	select {
	case <-a.started:
		t.Error("adapters must not start after a failed restore")
	default:
	}
}

func TestSaveFailureIsReported(t *testing.T) {
	svc := newServices()
	require.NoError(t, svc.Files.Create(context.Background(), "kept", "", memfs.PermissionRead, memfs.PermissionNone))

	snapshots := failingStore{memory.NewMemorySnapshotStore(memory.MemorySnapshotStoreConfig{})}
	srv := New(svc, Options{Snapshots: snapshots, SaveOnShutdown: true})
	a := newFakeAdapter("fake", "fake")
	require.NoError(t, srv.AddAdapter(a))

	cancel, done := serve(t, srv)
	<-a.started
	cancel()

	err := waitDone(t, done)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "disk full")

	_, ok := svc.Files.Lookup("kept")
	assert.True(t, ok, "a failed save must not touch the tables")
}

func TestSaveSnapshotWithoutStore(t *testing.T) {
	srv := New(newServices(), Options{})
	assert.NoError(t, srv.SaveSnapshot(context.Background()))
}

// TestSocketEndToEnd serves real clients through the socket adapter and
// checks that their work survives a restart through the snapshot store.
func TestSocketEndToEnd(t *testing.T) {
	dir, err := os.MkdirTemp("", "memfsd")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "fs.sock")

	snapshots := memory.NewMemorySnapshotStore(memory.MemorySnapshotStoreConfig{})

	run := func(t *testing.T, fn func(c *client.Client)) {
		adp := socket.New(socket.Config{Enabled: true, Path: path, ShutdownTimeout: 2 * time.Second, RequireAuth: true}, nil)
		srv := New(newServices(), Options{Snapshots: snapshots, RestoreOnStart: true, SaveOnShutdown: true})
		require.NoError(t, srv.AddAdapter(adp))

		cancel, done := serve(t, srv)

		select {
		case <-adp.Ready():
		case err := <-done:
			t.Fatalf("server exited before listening: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("socket adapter did not start")
		}

		c, err := client.Dial(context.Background(), path, client.Options{Timeout: 5 * time.Second})
		require.NoError(t, err)
		fn(c)
		_ = c.Close()

		cancel()
		assert.ErrorIs(t, waitDone(t, done), context.Canceled)
	}

	run(t, func(c *client.Client) {
		status, err := c.Register("grace", "pw")
		require.NoError(t, err)
		require.Equal(t, line.StatusOk, status)

		status, err = c.Login("grace", "pw")
		require.NoError(t, err)
		require.Equal(t, line.StatusOk, status)

		status, err = c.Create("persisted.txt", "still here", memfs.PermissionReadWrite, memfs.PermissionNone)
		require.NoError(t, err)
		require.Equal(t, line.StatusOk, status)
	})

	run(t, func(c *client.Client) {
		status, err := c.Login("grace", "pw")
		require.NoError(t, err)
		require.Equal(t, line.StatusOk, status, "account must survive the restart")

		fd, status, err := c.Open("persisted.txt", memfs.PermissionRead)
		require.NoError(t, err)
		require.Equal(t, line.StatusOk, status)

		text, status, err := c.Read(fd, len("still here"))
		require.NoError(t, err)
		require.Equal(t, line.StatusOk, status)
		assert.Equal(t, "still here", text)
	})
}
