package store

import (
	"context"
	"fmt"

	"github.com/cognicore/koch/pkg/koch/internalerr"
)

// DefaultBatchSize is the number of buffered writes that triggers a flush.
const DefaultBatchSize = 100

// Store is an ordered key/value container with buffered writes.
// Reads issued after a Put always observe it, flushed or not.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Put(ctx context.Context, key, value []byte) error

	// Scan flushes pending writes and calls fn for every pair in key order.
	// Returning internalerr.ErrStop from fn ends the scan without error.
	Scan(ctx context.Context, fn func(key, value []byte) error) error

	Flush(ctx context.Context) error

	// Close flushes and releases the store. Calling it twice is a no-op.
	Close() error
}

// Backend is the engine underneath a Store. Commit must apply the whole
// batch or none of it.
type Backend interface {
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Commit(ctx context.Context, entries []Entry) error
	Scan(ctx context.Context, fn func(key, value []byte) error) error
	Close() error
}

// Entry is a single buffered write
type Entry struct {
	Key   []byte
	Value []byte
}

// Opener opens a backend for the given options
type Opener func(ctx context.Context, opts Options) (Backend, error)

// Options select and configure a store location
type Options struct {
	Backend         string `yaml:"backend"`
	Path            string `yaml:"path"`
	CreateIfMissing bool   `yaml:"create_if_missing"`
	ErrorIfExists   bool   `yaml:"error_if_exists"`
	BatchSize       int    `yaml:"batch_size"`
}

// ReadOptions returns options for opening an existing store.
func ReadOptions(backend, path string) Options {
	return Options{Backend: backend, Path: path, BatchSize: DefaultBatchSize}
}

// WriteOptions returns options for creating a fresh output store.
func WriteOptions(backend, path string) Options {
	return Options{
		Backend:         backend,
		Path:            path,
		CreateIfMissing: true,
		ErrorIfExists:   true,
		BatchSize:       DefaultBatchSize,
	}
}

// AppendOptions returns options for a store that may already hold data.
func AppendOptions(backend, path string) Options {
	return Options{
		Backend:         backend,
		Path:            path,
		CreateIfMissing: true,
		BatchSize:       DefaultBatchSize,
	}
}

func (o Options) batchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

// OpenError builds an ErrStoreOpen error for a location.
func OpenError(path, reason string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s: %s: %v", internalerr.ErrStoreOpen, path, reason, cause)
	}
	return fmt.Errorf("%w: %s: %s", internalerr.ErrStoreOpen, path, reason)
}
