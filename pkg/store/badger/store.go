// Package badger is a snapshot store backed by BadgerDB.
//
// Each file and account is its own key so a snapshot can be inspected with
// the badger tools. Save rewrites every key in a single transaction.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/memfsd/internal/logger"
	"github.com/marmos91/memfsd/pkg/accounts"
	"github.com/marmos91/memfsd/pkg/memfs"
	"github.com/marmos91/memfsd/pkg/store"
)

// BadgerSnapshotStoreConfig configures the store.
type BadgerSnapshotStoreConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string `mapstructure:"path"`

	// InMemory keeps the database in memory. Used by tests.
	InMemory bool `mapstructure:"in_memory"`

	// BadgerOptions overrides every other option when set.
	BadgerOptions *badger.Options `mapstructure:"-"`
}

// BadgerSnapshotStore persists snapshots in a BadgerDB database.
type BadgerSnapshotStore struct {
	db *badger.DB
}

type header struct {
	ID       string    `json:"id"`
	Version  int       `json:"version"`
	TakenAt  time.Time `json:"taken_at"`
	Files    int       `json:"files"`
	Accounts int       `json:"accounts"`
}

// NewBadgerSnapshotStore opens (or creates) the database described by config.
func NewBadgerSnapshotStore(ctx context.Context, config BadgerSnapshotStoreConfig) (*BadgerSnapshotStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	switch {
	case config.BadgerOptions != nil:
		opts = *config.BadgerOptions
	case config.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case config.Path == "":
		return nil, errors.New("badger snapshot store: path is required")
	default:
		opts = badger.DefaultOptions(config.Path)
	}

	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.Path, err)
	}

	logger.Debug("badger snapshot store opened at %q (in-memory=%v)", config.Path, config.InMemory)
	return &BadgerSnapshotStore{db: db}, nil
}

func (s *BadgerSnapshotStore) Save(ctx context.Context, snap *store.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	meta, err := json.Marshal(header{
		ID:       snap.ID,
		Version:  snap.Version,
		TakenAt:  snap.TakenAt,
		Files:    len(snap.Files),
		Accounts: len(snap.Accounts),
	})
	if err != nil {
		return fmt.Errorf("encode snapshot header: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, prefix := range []string{prefixFile, prefixAccount} {
			if err := deletePrefix(txn, []byte(prefix)); err != nil {
				return err
			}
		}

		for i := range snap.Files {
			data, err := json.Marshal(&snap.Files[i])
			if err != nil {
				return fmt.Errorf("encode file %q: %w", snap.Files[i].Name, err)
			}
			if err := txn.Set(keyFile(snap.Files[i].Name), data); err != nil {
				return fmt.Errorf("failed to store file %q: %w", snap.Files[i].Name, err)
			}
		}

		for i := range snap.Accounts {
			data, err := json.Marshal(&snap.Accounts[i])
			if err != nil {
				return fmt.Errorf("encode account %q: %w", snap.Accounts[i].Name, err)
			}
			if err := txn.Set(keyAccount(snap.Accounts[i].Name), data); err != nil {
				return fmt.Errorf("failed to store account %q: %w", snap.Accounts[i].Name, err)
			}
		}

		return txn.Set([]byte(keyMeta), meta)
	})
	if err != nil {
		if errors.Is(err, badger.ErrTxnTooBig) {
			return fmt.Errorf("snapshot too large for a single transaction: %w", err)
		}
		return err
	}
	return nil
}

func (s *BadgerSnapshotStore) Load(ctx context.Context) (*store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snap store.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyMeta))
		if err == badger.ErrKeyNotFound {
			return store.ErrNoSnapshot
		}
		if err != nil {
			return fmt.Errorf("failed to read snapshot header: %w", err)
		}

		var h header
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &h) }); err != nil {
			return fmt.Errorf("decode snapshot header: %w", err)
		}
		snap.ID = h.ID
		snap.Version = h.Version
		snap.TakenAt = h.TakenAt

		snap.Files = make([]memfs.FileRecord, 0, h.Files)
		err = scanPrefix(txn, []byte(prefixFile), func(val []byte) error {
			var rec memfs.FileRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			snap.Files = append(snap.Files, rec)
			return nil
		})
		if err != nil {
			return fmt.Errorf("decode files: %w", err)
		}

		snap.Accounts = make([]accounts.Account, 0, h.Accounts)
		err = scanPrefix(txn, []byte(prefixAccount), func(val []byte) error {
			var acc accounts.Account
			if err := json.Unmarshal(val, &acc); err != nil {
				return err
			}
			snap.Accounts = append(snap.Accounts, acc)
			return nil
		})
		if err != nil {
			return fmt.Errorf("decode accounts: %w", err)
		}

		if len(snap.Files) != h.Files || len(snap.Accounts) != h.Accounts {
			return fmt.Errorf("snapshot %s is inconsistent: header has %d files and %d accounts, found %d and %d",
				h.ID, h.Files, h.Accounts, len(snap.Files), len(snap.Accounts))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *BadgerSnapshotStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func (s *BadgerSnapshotStore) Type() string { return "badger" }

// deletePrefix removes every key under prefix. Keys are collected before
// deletion so the iterator never sees its own writes.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	var keys [][]byte
	it := txn.NewIterator(opts)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("failed to delete %q: %w", key, err)
		}
	}
	return nil
}

func scanPrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return fmt.Errorf("key %q: %w", it.Item().Key(), err)
		}
	}
	return nil
}
