package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cognicore/koch/pkg/koch/internalerr"
)

var errEmptyKey = errors.New("empty key")

// buffered batches writes in front of a Backend
type buffered struct {
	mu      sync.Mutex
	backend Backend
	size    int
	pending map[string][]byte
	order   []string
	closed  bool
}

// NewBuffered wraps a backend with write batching of the given size.
func NewBuffered(b Backend, batchSize int) Store {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &buffered{
		backend: b,
		size:    batchSize,
		pending: make(map[string][]byte, batchSize),
	}
}

func (s *buffered) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, false, internalerr.ErrStoreClosed
	}
	if v, ok := s.pending[string(key)]; ok {
		s.mu.Unlock()
		return append([]byte(nil), v...), true, nil
	}
	s.mu.Unlock()
	return s.backend.Get(ctx, key)
}

func (s *buffered) Put(ctx context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return internalerr.ErrStoreClosed
	}
	if len(key) == 0 {
		return errEmptyKey
	}
	k := string(key)
	if _, ok := s.pending[k]; !ok {
		s.order = append(s.order, k)
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.pending[k] = v

	if len(s.order) >= s.size {
		return s.flushLocked(ctx)
	}
	return nil
}

func (s *buffered) Scan(ctx context.Context, fn func(key, value []byte) error) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	err := s.backend.Scan(ctx, fn)
	if errors.Is(err, internalerr.ErrStop) {
		return nil
	}
	return err
}

func (s *buffered) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return internalerr.ErrStoreClosed
	}
	return s.flushLocked(ctx)
}

func (s *buffered) flushLocked(ctx context.Context) error {
	if len(s.order) == 0 {
		return nil
	}
	entries := make([]Entry, len(s.order))
	for i, k := range s.order {
		entries[i] = Entry{Key: []byte(k), Value: s.pending[k]}
	}
	if err := s.backend.Commit(ctx, entries); err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(entries), err)
	}
	clear(s.pending)
	s.order = s.order[:0]
	return nil
}

func (s *buffered) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	flushErr := s.flushLocked(context.Background())
	return errors.Join(flushErr, s.backend.Close())
}
