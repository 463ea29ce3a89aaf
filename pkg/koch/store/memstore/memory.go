package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/koch/pkg/koch/internalerr"
	"github.com/cognicore/koch/pkg/koch/store"
)

// Store is an in-memory ordered key/value container. Its contents outlive
// any single open session, so a store.Handle can close and reopen it.
type Store struct {
	mu   sync.RWMutex
	name string
	data map[string][]byte
	held bool
}

// New creates an empty in-memory store. name only labels errors.
func New(name string) *Store {
	if name == "" {
		name = "memory"
	}
	return &Store{name: name, data: make(map[string][]byte)}
}

// Open implements store.Opener.
func (s *Store) Open(ctx context.Context, opts store.Options) (store.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held {
		return nil, store.OpenError(s.name, "already held open", nil)
	}
	if opts.ErrorIfExists && len(s.data) > 0 {
		return nil, store.OpenError(s.name, "already exists", nil)
	}
	s.held = true
	return &session{s: s}, nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// session is one open view of a Store
type session struct {
	s      *Store
	closed bool
}

func (v *session) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	if v.closed {
		return nil, false, internalerr.ErrStoreClosed
	}
	val, ok := v.s.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), val...), true, nil
}

func (v *session) Commit(ctx context.Context, entries []store.Entry) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if v.closed {
		return internalerr.ErrStoreClosed
	}
	for _, e := range entries {
		v.s.data[string(e.Key)] = append([]byte(nil), e.Value...)
	}
	return nil
}

// Scan iterates over a snapshot so fn may call back into the store.
func (v *session) Scan(ctx context.Context, fn func(key, value []byte) error) error {
	v.s.mu.RLock()
	if v.closed {
		v.s.mu.RUnlock()
		return internalerr.ErrStoreClosed
	}
	keys := make([]string, 0, len(v.s.data))
	for k := range v.s.data {
		keys = append(keys, k)
	}
	snapshot := make(map[string][]byte, len(keys))
	for _, k := range keys {
		snapshot[k] = v.s.data[k]
	}
	v.s.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn([]byte(k), append([]byte(nil), snapshot[k]...)); err != nil {
			return err
		}
	}
	return nil
}

func (v *session) Close() error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if v.closed {
		return nil
	}
	v.closed = true
	v.s.held = false
	return nil
}
