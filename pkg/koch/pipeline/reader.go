// Package pipeline moves keyed records from Readers through transforms into
// Writers, with combine-by-key aggregation and keyed joins on top of a Store.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/cognicore/koch/pkg/koch/internalerr"
)

// Record is a key/value pair
type Record[V any] struct {
	Key   string
	Value V
}

// Emit forwards one output record
type Emit[V any] func(key string, value V) error

// PipeFunc turns one input record into zero or more output records.
// Outputs of a single input are forwarded in emission order.
type PipeFunc[In, Out any] func(ctx context.Context, key string, value In, emit Emit[Out]) error

// Reader is a source of keyed records.
type Reader[V any] interface {
	// Each acquires the source, calls fn for every record and releases the
	// source before returning, whatever the exit path. fn may return
	// internalerr.ErrStop to end early, in which case Each returns nil.
	Each(ctx context.Context, fn func(key string, value V) error) error
}

// Lookup is the random-access capability of store-backed readers. Get is
// only valid between Acquire and Release.
type Lookup[V any] interface {
	Acquire(ctx context.Context) error
	Release() error
	Get(ctx context.Context, key string) (V, bool, error)
}

// Writer is a sink of keyed records. Close finalises the sink and must be
// called on every path once Open succeeded.
type Writer[V any] interface {
	Open(ctx context.Context) error
	Write(ctx context.Context, key string, value V) error
	Close() error
}

// AsLookup returns r's random-access capability, or ErrUnsupported for
// sequential-only readers.
func AsLookup[V any](r Reader[V]) (Lookup[V], error) {
	l, ok := r.(Lookup[V])
	if !ok {
		return nil, fmt.Errorf("%w: get on sequential reader %T", internalerr.ErrUnsupported, r)
	}
	return l, nil
}

// Get performs a single scoped point lookup on r.
func Get[V any](ctx context.Context, r Reader[V], key string) (v V, found bool, err error) {
	l, err := AsLookup(r)
	if err != nil {
		return v, false, err
	}
	if err := l.Acquire(ctx); err != nil {
		return v, false, err
	}
	defer func() {
		err = errors.Join(err, l.Release())
	}()
	return l.Get(ctx, key)
}

// Collect reads every record of r into memory. Meant for tests and small
// side inputs.
func Collect[V any](ctx context.Context, r Reader[V]) ([]Record[V], error) {
	var out []Record[V]
	err := r.Each(ctx, func(key string, value V) error {
		out = append(out, Record[V]{Key: key, Value: value})
		return nil
	})
	return out, err
}

// Count returns the number of records r yields.
func Count[V any](ctx context.Context, r Reader[V]) (int64, error) {
	var n int64
	err := r.Each(ctx, func(string, V) error {
		n++
		return nil
	})
	return n, err
}

// stopped maps the early-exit sentinel to a clean return
func stopped(err error) error {
	if errors.Is(err, internalerr.ErrStop) {
		return nil
	}
	return err
}
