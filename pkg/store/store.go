// Package store persists wholesale snapshots of the file and account tables.
//
// A snapshot is taken on shutdown and restored on start-up. Stores are not
// live backends: the in-memory tables stay authoritative while the process
// runs, and open handles are never persisted.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/memfsd/pkg/accounts"
	"github.com/marmos91/memfsd/pkg/memfs"
)

// SnapshotVersion is the format version written by this package.
const SnapshotVersion = 1

var (
	// ErrNoSnapshot is returned by Load when the store holds no snapshot.
	ErrNoSnapshot = errors.New("no snapshot")

	// ErrClosed is returned by Save and Load after Close.
	ErrClosed = errors.New("snapshot store closed")
)

// Snapshot is a point-in-time copy of the file and account tables.
type Snapshot struct {
	ID       string             `json:"id"`
	Version  int                `json:"version"`
	TakenAt  time.Time          `json:"taken_at"`
	Files    []memfs.FileRecord `json:"files"`
	Accounts []accounts.Account `json:"accounts"`
}

// NewSnapshot captures the current state of files and accts.
func NewSnapshot(files *memfs.Service, accts *accounts.Registry) *Snapshot {
	return &Snapshot{
		ID:       uuid.NewString(),
		Version:  SnapshotVersion,
		TakenAt:  time.Now().UTC(),
		Files:    files.Snapshot(),
		Accounts: accts.Snapshot(),
	}
}

// Apply replaces the contents of files and accts with the snapshot.
//
// Both tables are validated before either is touched, so a rejected snapshot
// leaves the service unchanged.
func (s *Snapshot) Apply(files *memfs.Service, accts *accounts.Registry) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := files.Restore(s.Files); err != nil {
		return fmt.Errorf("restore files: %w", err)
	}
	if err := accts.Restore(s.Accounts); err != nil {
		return fmt.Errorf("restore accounts: %w", err)
	}
	return nil
}

// Validate checks the version and rejects duplicate or empty names.
func (s *Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}

	seen := make(map[string]struct{}, len(s.Files))
	for _, f := range s.Files {
		if f.Name == "" {
			return errors.New("snapshot contains a file with an empty name")
		}
		if !memfs.SingleLine(f.Name) || !memfs.SingleLine(f.Content) {
			return fmt.Errorf("snapshot file %q has a line feed in its name or content", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("snapshot contains file %q twice", f.Name)
		}
		if !f.OwnerPermission.Valid() || !f.OthersPermission.Valid() {
			return fmt.Errorf("snapshot file %q has an invalid permission", f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	clear(seen)
	for _, a := range s.Accounts {
		if a.Name == "" {
			return errors.New("snapshot contains an account with an empty name")
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("snapshot contains account %q twice", a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	return nil
}

// Store saves and loads snapshots.
//
// Implementations must be safe for concurrent use. Save replaces any
// previous snapshot atomically: a failed Save leaves the previous snapshot
// loadable.
type Store interface {
	// Save persists snap, replacing the previous snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Load returns the latest snapshot, or ErrNoSnapshot.
	Load(ctx context.Context) (*Snapshot, error)

	// Close releases the store's resources.
	Close() error

	// Type returns the store type name used in configuration.
	Type() string
}
