package badgerdb

import (
	"context"
	"errors"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/cognicore/koch/pkg/koch/store"
)

// badgerStore implements store.Backend on a BadgerDB directory
type badgerStore struct {
	db      *badger.DB
	release func()
}

// Open opens (or creates) the BadgerDB directory at opts.Path.
// It implements store.Opener.
func Open(ctx context.Context, opts store.Options) (store.Backend, error) {
	if opts.Path == "" {
		return nil, store.OpenError("badger", "path is required", nil)
	}
	if err := checkLocation(opts); err != nil {
		return nil, err
	}

	release, err := store.Claim(opts.Path)
	if err != nil {
		return nil, err
	}

	bopts := badger.DefaultOptions(opts.Path)
	bopts.Logger = nil
	bopts.DetectConflicts = false
	bopts.ValueThreshold = 1 << 10

	db, err := badger.Open(bopts)
	if err != nil {
		release()
		return nil, store.OpenError(opts.Path, "open badger", err)
	}

	return &badgerStore{db: db, release: release}, nil
}

// checkLocation applies create-if-missing and error-if-exists semantics
func checkLocation(opts store.Options) error {
	entries, err := os.ReadDir(opts.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !opts.CreateIfMissing {
			return store.OpenError(opts.Path, "does not exist", nil)
		}
		return nil
	case err != nil:
		return store.OpenError(opts.Path, "invalid location", err)
	}
	if opts.ErrorIfExists && len(entries) > 0 {
		return store.OpenError(opts.Path, "already exists", nil)
	}
	return nil
}

func (s *badgerStore) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// Commit writes the batch in a single transaction
func (s *badgerStore) Commit(ctx context.Context, entries []store.Entry) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := txn.Set(e.Key, e.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *badgerStore) Scan(ctx context.Context, fn func(key, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.KeyCopy(nil)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *badgerStore) Close() error {
	defer s.release()
	return s.db.Close()
}
