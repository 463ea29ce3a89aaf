// Package backends maps backend names to store openers.
package backends

import (
	"context"
	"fmt"
	"sort"

	"github.com/cognicore/koch/pkg/koch/internalerr"
	"github.com/cognicore/koch/pkg/koch/store"
	"github.com/cognicore/koch/pkg/koch/store/badgerdb"
	"github.com/cognicore/koch/pkg/koch/store/memstore"
	"github.com/cognicore/koch/pkg/koch/store/sqlite"
)

// Backend names accepted in store.Options.Backend
const (
	Badger = "badger"
	SQLite = "sqlite"
	Memory = "memory"
)

// Default is used when Options.Backend is empty.
const Default = Badger

var openers = map[string]store.Opener{
	Badger: badgerdb.Open,
	SQLite: sqlite.Open,
}

// Names lists the known backends in sorted order.
func Names() []string {
	names := []string{Memory}
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Opener resolves the opener for opts.Backend. Each call for the memory
// backend returns a fresh, empty instance.
func Opener(opts store.Options) (store.Opener, error) {
	name := opts.Backend
	if name == "" {
		name = Default
	}
	if name == Memory {
		return memstore.New(opts.Path).Open, nil
	}
	open, ok := openers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w: unknown store backend %q (known: %v)", internalerr.ErrStoreOpen, internalerr.ErrInvalidConfig, name, Names())
	}
	return open, nil
}

// NewHandle resolves the backend and returns a closed handle for opts.
func NewHandle(opts store.Options) (*store.Handle, error) {
	open, err := Opener(opts)
	if err != nil {
		return nil, err
	}
	return store.NewHandle(opts, open), nil
}

// Open opens a store directly, outside any handle.
func Open(ctx context.Context, opts store.Options) (store.Store, error) {
	open, err := Opener(opts)
	if err != nil {
		return nil, err
	}
	b, err := open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return store.NewBuffered(b, opts.BatchSize), nil
}
