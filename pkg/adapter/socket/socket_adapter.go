package socket

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/memfsd/internal/logger"
	"github.com/marmos91/memfsd/internal/protocol/line"
	"github.com/marmos91/memfsd/internal/ratelimiter"
	"github.com/marmos91/memfsd/pkg/adapter"
	"github.com/marmos91/memfsd/pkg/metrics"
)

// DefaultPath is the socket file used when none is configured.
const DefaultPath = "/tmp/fs_socket"

// SocketAdapter serves the line protocol on a Unix domain socket.
//
// Each accepted connection gets its own goroutine running a Connection.
// Connections share the file service and the account registry injected by
// SetServices and never talk to each other.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed; the socket file is unlinked
//  3. shutdownCtx cancelled so in-flight requests abort
//  4. Wait for active connections up to ShutdownTimeout
//  5. Force-close whatever is left
//
// Thread safety:
// All methods are safe for concurrent use.
type SocketAdapter struct {
	config   Config
	services adapter.Services
	metrics  metrics.SocketMetrics

	listenerMu sync.Mutex
	listener   net.Listener

	// ready is closed once the listener is bound
	ready     chan struct{}
	readyOnce sync.Once

	activeConns  sync.WaitGroup
	shutdownOnce sync.Once
	shutdown     chan struct{}
	connCount    atomic.Int32

	// connSemaphore bounds concurrent connections; nil means unlimited
	connSemaphore chan struct{}

	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps session id to net.Conn for forced closure.
	// Unix peers usually have no usable remote address, so the session id
	// is the key.
	activeConnections sync.Map
}

// Config holds the socket adapter settings.
//
// Zero values are replaced by New:
//   - Path: /tmp/fs_socket
//   - MaxLineBytes: 64 KiB
//   - Timeouts.Write: 30s
//   - ShutdownTimeout: 30s
//
// Timeouts.Read, Timeouts.Idle, MaxConnections and MetricsLogInterval stay
// disabled at zero.
type Config struct {
	// Enabled controls whether the adapter is started
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the socket file. A stale socket left by a previous run is
	// removed before binding; any other kind of file is an error.
	Path string `mapstructure:"path" yaml:"path"`

	// MaxConnections limits concurrent clients. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"min=0"`

	// MaxLineBytes bounds a request line. Longer lines close the connection.
	MaxLineBytes int `mapstructure:"max_line_bytes" yaml:"max_line_bytes" validate:"min=0"`

	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`

	// ShutdownTimeout is how long Serve waits for connections after
	// shutdown starts before force-closing them.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`

	// MetricsLogInterval logs the active connection count periodically.
	// 0 disables it.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval" validate:"min=0"`

	// RateLimit throttles each connection independently
	RateLimit ratelimiter.Config `mapstructure:"rate_limit" yaml:"rate_limit"`

	// RequireAuth rejects file requests on connections that have not logged
	// in. Set from accounts.require_auth.
	RequireAuth bool `mapstructure:"-" yaml:"-" json:"-"`
}

// TimeoutsConfig groups the per-connection deadlines.
type TimeoutsConfig struct {
	// Read bounds the handling of one request once its line has arrived,
	// including any rate-limit wait.
	Read time.Duration `mapstructure:"read" yaml:"read" validate:"min=0"`

	// Write bounds writing one reply.
	Write time.Duration `mapstructure:"write" yaml:"write" validate:"min=0"`

	// Idle closes a connection that sends no complete line for this long.
	Idle time.Duration `mapstructure:"idle" yaml:"idle" validate:"min=0"`
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = line.DefaultMaxLineBytes
	}
	if c.Timeouts.Write == 0 {
		c.Timeouts.Write = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid max_connections %d: must be >= 0", c.MaxConnections)
	}
	if c.Timeouts.Read < 0 || c.Timeouts.Write < 0 || c.Timeouts.Idle < 0 {
		return fmt.Errorf("invalid timeouts %+v: must be >= 0", c.Timeouts)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown_timeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("invalid rate_limit %+v: must be >= 0", c.RateLimit)
	}
	return nil
}

// New creates a stopped adapter. Call SetServices, then Serve.
//
// Panics if the configuration is invalid after defaults are applied.
func New(config Config, socketMetrics metrics.SocketMetrics) *SocketAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid socket adapter config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("socket connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("socket connection limit: unlimited")
	}

	if socketMetrics == nil {
		socketMetrics = metrics.NewNoopSocketMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &SocketAdapter{
		config:         config,
		metrics:        socketMetrics,
		ready:          make(chan struct{}),
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// SetServices injects the shared file service and account registry.
func (s *SocketAdapter) SetServices(svc adapter.Services) {
	s.services = svc
	logger.Debug("socket adapter services configured")
}

// Ready is closed once the socket is bound and accepting.
func (s *SocketAdapter) Ready() <-chan struct{} {
	return s.ready
}

// Serve binds the socket and accepts connections until ctx is cancelled.
//
// Returns nil after a graceful shutdown, or an error if binding fails or
// connections had to be force-closed.
func (s *SocketAdapter) Serve(ctx context.Context) error {
	if s.services.Files == nil || s.services.Accounts == nil {
		return errors.New("socket adapter: services not configured")
	}

	if err := removeStaleSocket(s.config.Path); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.config.Path)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Path, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	logger.Info("socket server listening on %s", s.config.Path)
	logger.Debug("socket config: max_connections=%d max_line_bytes=%d read_timeout=%v write_timeout=%v idle_timeout=%v require_auth=%t",
		s.config.MaxConnections, s.config.MaxLineBytes, s.config.Timeouts.Read,
		s.config.Timeouts.Write, s.config.Timeouts.Idle, s.config.RequireAuth)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("socket shutdown signal received: %v", ctx.Err())
		case <-s.shutdown:
		}
		s.initiateShutdown()
		// Stop may have run before the listener existed
		_ = listener.Close()
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		netConn, err := listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("error accepting socket connection: %v", err)
				continue
			}
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)

		conn := NewConnection(s, netConn)
		s.activeConnections.Store(conn.sessionID, netConn)
		// initiateShutdown may have swept activeConnections before the Store
		s.interruptIfShuttingDown(netConn)

		s.metrics.RecordConnectionAccepted()
		currentConns := s.connCount.Load()
		s.metrics.SetActiveConnections(currentConns)
		logger.Debug("socket connection %s accepted (active: %d)", conn.sessionID, currentConns)

		go func(conn *Connection) {
			defer func() {
				s.activeConnections.Delete(conn.sessionID)

				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}

				s.metrics.RecordConnectionClosed()
				currentConns := s.connCount.Load()
				s.metrics.SetActiveConnections(currentConns)
				logger.Debug("socket connection %s closed (active: %d)", conn.sessionID, currentConns)
			}()

			conn.Serve(s.shutdownCtx)
		}(conn)
	}
}

// removeStaleSocket deletes a socket file left behind by a previous run.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat socket path %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("socket path %s exists and is not a socket", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	logger.Debug("removed stale socket %s", path)
	return nil
}

// initiateShutdown closes the listener and cancels in-flight requests.
// Safe to call more than once.
func (s *SocketAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("socket shutdown initiated")

		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("error closing socket listener: %v", err)
			}
		}
		s.listenerMu.Unlock()

		s.cancelRequests()

		// Wake connections blocked waiting for their next line. A request
		// already read still gets its reply.
		s.activeConnections.Range(func(_, value any) bool {
			_ = value.(net.Conn).SetReadDeadline(time.Now())
			return true
		})
	})
}

// gracefulShutdown waits for active connections up to ShutdownTimeout and
// force-closes the rest.
func (s *SocketAdapter) gracefulShutdown() error {
	logger.Info("socket graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		s.connCount.Load(), s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("socket graceful shutdown complete")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("socket shutdown timeout exceeded: %d connection(s) still active after %v, forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()
		return fmt.Errorf("socket shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *SocketAdapter) forceCloseConnections() {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		session := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("error force-closing connection %s: %v", session, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("force-closed %d connection(s)", closedCount)
	}
}

// interruptIfShuttingDown expires conn's read deadline once shutdown has
// begun, so a blocked read returns.
func (s *SocketAdapter) interruptIfShuttingDown(conn net.Conn) {
	select {
	case <-s.shutdown:
		_ = conn.SetReadDeadline(time.Now())
	default:
	}
}

// Stop initiates shutdown and waits for connections until ctx is done.
func (s *SocketAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Warn("socket shutdown context done with %d connection(s) still active: %v",
			s.connCount.Load(), ctx.Err())
		return ctx.Err()
	}
}

func (s *SocketAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			stats := s.services.Files.Stats()
			logger.Info("socket metrics: active_connections=%d files=%d open_handles=%d/%d accounts=%d",
				s.connCount.Load(), stats.Files, stats.OpenHandles, stats.MaxOpenFiles, s.services.Accounts.Len())
		}
	}
}

// GetActiveConnections returns the number of connections being served.
func (s *SocketAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Addr returns the socket path.
func (s *SocketAdapter) Addr() string {
	return s.config.Path
}

// Protocol returns "socket".
func (s *SocketAdapter) Protocol() string {
	return "socket"
}
