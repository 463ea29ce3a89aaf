package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/cognicore/koch/pkg/koch/internalerr"
)

// Handle owns one store location and hands out scoped access to it.
// Acquire and Release nest: the store opens on the first Acquire and is
// flushed and closed when the last reference is released.
type Handle struct {
	mu     sync.Mutex
	opts   Options
	open   Opener
	refs   int
	st     Store
	opened bool
}

// NewHandle creates a closed handle for opts.
func NewHandle(opts Options, open Opener) *Handle {
	return &Handle{opts: opts, open: open}
}

// Options returns the options the handle opens with.
func (h *Handle) Options() Options { return h.opts }

// Path returns the store location.
func (h *Handle) Path() string { return h.opts.Path }

// Acquire opens the store if no scope currently holds it.
func (h *Handle) Acquire(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refs > 0 {
		h.refs++
		return nil
	}

	opts := h.opts
	if h.opened {
		// The handle wrote this location itself; reopening appends.
		opts.ErrorIfExists = false
		opts.CreateIfMissing = true
	}
	b, err := h.open(ctx, opts)
	if err != nil {
		return err
	}
	h.st = NewBuffered(b, opts.batchSize())
	h.opened = true
	h.refs = 1
	return nil
}

// Release drops one reference, closing the store at the last one.
// Releasing an already closed handle is a no-op.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refs == 0 {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	st := h.st
	h.st = nil
	if err := st.Close(); err != nil {
		return fmt.Errorf("close %s: %w", h.opts.Path, err)
	}
	return nil
}

// Store returns the open store, or ErrStoreClosed outside any scope.
func (h *Handle) Store() (Store, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refs == 0 {
		return nil, fmt.Errorf("%s: %w", h.opts.Path, internalerr.ErrStoreClosed)
	}
	return h.st, nil
}

// Do runs fn with the store held open for its duration.
func (h *Handle) Do(ctx context.Context, fn func(Store) error) (err error) {
	if err := h.Acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if rerr := h.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	st, err := h.Store()
	if err != nil {
		return err
	}
	return fn(st)
}
