package pipeline

import (
	"context"
	"fmt"

	"github.com/cognicore/koch/pkg/koch/codec"
	"github.com/cognicore/koch/pkg/koch/store"
)

// Table is a typed view of one store handle. Its Reader and Writer views
// share the handle, which is how a combining pass reads its own writes.
type Table[V any] struct {
	handle *store.Handle
	codec  codec.Codec[V]
}

// NewTable binds a codec to a store handle.
func NewTable[V any](h *store.Handle, c codec.Codec[V]) *Table[V] {
	return &Table[V]{handle: h, codec: c}
}

// Handle returns the underlying store handle.
func (t *Table[V]) Handle() *store.Handle { return t.handle }

// Reader returns the read view.
func (t *Table[V]) Reader() *TableReader[V] { return &TableReader[V]{t: t} }

// Writer returns the write view.
func (t *Table[V]) Writer() *TableWriter[V] { return &TableWriter[V]{t: t} }

func (t *Table[V]) get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	st, err := t.handle.Store()
	if err != nil {
		return zero, false, err
	}
	raw, ok, err := st.Get(ctx, []byte(key))
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := t.codec.Unmarshal(raw)
	if err != nil {
		return zero, false, fmt.Errorf("key %q: %w", key, err)
	}
	return v, true, nil
}

// TableReader reads a table in key order and supports point lookups.
type TableReader[V any] struct {
	t *Table[V]
}

// Each scans the whole table in key order.
func (r *TableReader[V]) Each(ctx context.Context, fn func(key string, value V) error) error {
	return stopped(r.t.handle.Do(ctx, func(st store.Store) error {
		return st.Scan(ctx, func(k, raw []byte) error {
			v, err := r.t.codec.Unmarshal(raw)
			if err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			return fn(string(k), v)
		})
	}))
}

func (r *TableReader[V]) Acquire(ctx context.Context) error { return r.t.handle.Acquire(ctx) }

func (r *TableReader[V]) Release() error { return r.t.handle.Release() }

// Get looks up key; the reader must be acquired.
func (r *TableReader[V]) Get(ctx context.Context, key string) (V, bool, error) {
	return r.t.get(ctx, key)
}

// TableWriter writes typed values into a table.
type TableWriter[V any] struct {
	t *Table[V]
}

func (w *TableWriter[V]) Open(ctx context.Context) error { return w.t.handle.Acquire(ctx) }

func (w *TableWriter[V]) Write(ctx context.Context, key string, value V) error {
	st, err := w.t.handle.Store()
	if err != nil {
		return err
	}
	raw, err := w.t.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return st.Put(ctx, []byte(key), raw)
}

// Get looks up the current value under key, including unflushed writes.
func (w *TableWriter[V]) Get(ctx context.Context, key string) (V, bool, error) {
	return w.t.get(ctx, key)
}

// Flush pushes buffered writes to the engine.
func (w *TableWriter[V]) Flush(ctx context.Context) error {
	st, err := w.t.handle.Store()
	if err != nil {
		return err
	}
	return st.Flush(ctx)
}

func (w *TableWriter[V]) Close() error { return w.t.handle.Release() }

// sameTable reports whether both views alias one store handle
func sameTable[V any](r *TableReader[V], w *TableWriter[V]) bool {
	return r != nil && w != nil && r.t.handle == w.t.handle
}
