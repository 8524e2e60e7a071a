package adapter

import (
	"context"

	"github.com/marmos91/memfsd/pkg/accounts"
	"github.com/marmos91/memfsd/pkg/memfs"
)

// Services are the shared tables every adapter serves.
type Services struct {
	Files    *memfs.Service
	Accounts *accounts.Registry
}

// Adapter is a protocol front end managed by server.Server.
//
// Lifecycle:
//  1. Creation with protocol-specific configuration
//  2. SetServices injects the shared file service and account registry
//  3. Serve listens and blocks until ctx is cancelled
//  4. Stop initiates graceful shutdown with a timeout
//
// Thread safety:
// SetServices is called once before Serve. Stop may be called concurrently
// with Serve and more than once.
type Adapter interface {
	// Serve starts the listener and blocks until ctx is cancelled or an
	// unrecoverable error occurs. On cancellation it stops accepting, waits
	// for active connections up to its shutdown timeout and returns.
	//
	// If Serve returns before ctx is cancelled, the server treats it as fatal
	// and stops every other adapter.
	Serve(ctx context.Context) error

	// SetServices injects the shared tables.
	SetServices(svc Services)

	// Stop initiates graceful shutdown and waits for connections until ctx
	// is done.
	Stop(ctx context.Context) error

	// Protocol returns a short name for logs and metrics.
	Protocol() string

	// Addr returns the address the adapter listens on.
	Addr() string
}
