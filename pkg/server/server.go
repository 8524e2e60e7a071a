package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/memfsd/internal/logger"
	"github.com/marmos91/memfsd/pkg/adapter"
	"github.com/marmos91/memfsd/pkg/metrics"
	promMetrics "github.com/marmos91/memfsd/pkg/metrics/prometheus"
	"github.com/marmos91/memfsd/pkg/store"
)

// DefaultStopTimeout bounds adapter shutdown and the final snapshot save when
// Options.StopTimeout is zero.
const DefaultStopTimeout = 30 * time.Second

// Options configures a Server. Every field is optional.
type Options struct {
	// Snapshots is where the tables are restored from and saved to.
	// nil disables both.
	Snapshots store.Store

	// RestoreOnStart loads the latest snapshot before adapters start.
	RestoreOnStart bool

	// SaveOnShutdown saves the tables once every adapter has stopped.
	SaveOnShutdown bool

	// SnapshotMetrics records snapshot timings. nil means no-op.
	SnapshotMetrics metrics.SnapshotMetrics

	// MetricsServer is started with the adapters and stopped with them.
	MetricsServer *metrics.Server

	// StopTimeout bounds adapter shutdown and the final save.
	StopTimeout time.Duration
}

// Server manages the lifecycle of the protocol adapters that share one file
// service and one account registry.
//
// Lifecycle:
//  1. Creation: New() with the shared services
//  2. Registration: AddAdapter() for each protocol
//  3. Startup: Serve() restores the snapshot and starts all adapters
//  4. Shutdown: context cancellation stops every adapter, then the tables
//     are saved
//
// Thread safety:
// AddAdapter() may be called concurrently with other methods until Serve()
// is called. Serve() may only be called once.
type Server struct {
	services adapter.Services
	opts     Options

	// mu protects adapters and served
	mu       sync.RWMutex
	adapters []adapter.Adapter
	served   bool

	// snapshotMu serializes snapshot saves
	snapshotMu sync.Mutex
}

// New creates a Server for services.
//
// Panics if either service is nil (indicates programmer error).
func New(services adapter.Services, opts Options) *Server {
	if services.Files == nil {
		panic("file service cannot be nil")
	}
	if services.Accounts == nil {
		panic("account registry cannot be nil")
	}

	if opts.SnapshotMetrics == nil {
		opts.SnapshotMetrics = metrics.NewNoopSnapshotMetrics()
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}

	return &Server{
		services: services,
		opts:     opts,
		adapters: make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter registers a protocol adapter and injects the shared services.
//
// Returns an error if another adapter already serves the same protocol or
// address.
//
// Panics if a is nil or Serve() has already been called.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	addr := a.Addr()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if existing.Addr() == addr {
			return fmt.Errorf("address %s already in use by %s adapter", addr, existing.Protocol())
		}
	}

	a.SetServices(s.services)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on %s", protocol, addr)
	return nil
}

// Serve restores the snapshot, starts every adapter and blocks until ctx is
// cancelled or an adapter fails. It then stops every adapter and saves the
// tables.
//
// Returns:
//   - ctx.Err() after a shutdown triggered by ctx
//   - the adapter's error if an adapter failed
//   - an error if startup failed (no adapters, unreadable snapshot)
//
// A failed final save is joined to the returned error; the in-memory tables
// are left intact.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("Serve() has already been called on this server instance")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	if s.opts.Snapshots != nil && s.opts.RestoreOnStart {
		if err := s.restoreSnapshot(ctx); err != nil {
			return err
		}
	}

	if err := promMetrics.RegisterTableGauges(s.services.Files, s.services.Accounts); err != nil {
		logger.Warn("Table gauges unavailable: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	if s.opts.MetricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.opts.MetricsServer.Start(runCtx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	logger.Info("Starting memfsd with %d adapter(s)", len(adapters))

	// Buffered so a failing adapter never blocks after we stop listening
	errChan := make(chan adapterError, len(adapters))

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on %s", protocol, a.Addr())

			if err := a.Serve(runCtx); err != nil {
				if !errors.Is(err, context.Canceled) && runCtx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped gracefully", protocol)
				}
			} else {
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	s.stopAllAdapters(adapters)
	cancel()

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	if s.opts.Snapshots != nil && s.opts.SaveOnShutdown {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), s.opts.StopTimeout)
		err := s.SaveSnapshot(saveCtx)
		saveCancel()
		if err != nil {
			logger.Error("Failed to save snapshot: %v", err)
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}

	logger.Info("memfsd stopped")
	return shutdownErr
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters initiates graceful shutdown of all adapters in reverse
// registration order. It only signals; the caller waits for the adapter
// goroutines.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.StopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (%s)", protocol, adp.Addr())

		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		} else {
			logger.Debug("%s adapter stop signal sent", protocol)
		}
	}
}

// restoreSnapshot loads the latest snapshot into the tables. A store without
// a snapshot is not an error.
func (s *Server) restoreSnapshot(ctx context.Context) error {
	storeType := s.opts.Snapshots.Type()
	start := time.Now()

	snap, err := s.opts.Snapshots.Load(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		s.opts.SnapshotMetrics.RecordSnapshot("restore", storeType, time.Since(start), nil)
		logger.Info("No snapshot in %s store; starting with empty tables", storeType)
		return nil
	}
	if err == nil {
		err = snap.Apply(s.services.Files, s.services.Accounts)
	}
	s.opts.SnapshotMetrics.RecordSnapshot("restore", storeType, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to restore snapshot from %s store: %w", storeType, err)
	}

	s.opts.SnapshotMetrics.SetSnapshotSize(len(snap.Files), len(snap.Accounts))
	logger.Info("Restored snapshot %s taken at %s: %d file(s), %d account(s)",
		snap.ID, snap.TakenAt.Format(time.RFC3339), len(snap.Files), len(snap.Accounts))
	return nil
}

// SaveSnapshot saves the current tables to the snapshot store. It does
// nothing when no store is configured.
//
// Thread safety:
// Safe to call while adapters are serving; each table is copied under its
// own lock.
func (s *Server) SaveSnapshot(ctx context.Context) error {
	if s.opts.Snapshots == nil {
		return nil
	}

	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	storeType := s.opts.Snapshots.Type()
	start := time.Now()

	snap := store.NewSnapshot(s.services.Files, s.services.Accounts)
	err := s.opts.Snapshots.Save(ctx, snap)
	s.opts.SnapshotMetrics.RecordSnapshot("save", storeType, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to save snapshot to %s store: %w", storeType, err)
	}

	s.opts.SnapshotMetrics.SetSnapshotSize(len(snap.Files), len(snap.Accounts))
	logger.Info("Saved snapshot %s to %s store: %d file(s), %d account(s)",
		snap.ID, storeType, len(snap.Files), len(snap.Accounts))
	return nil
}

// Adapters returns a copy of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}

// Services returns the shared tables.
func (s *Server) Services() adapter.Services {
	return s.services
}
