package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cognicore/koch/pkg/koch/codec"
	"github.com/cognicore/koch/pkg/koch/store"
	"github.com/cognicore/koch/pkg/koch/store/backends"
)

func memTable[V any](t *testing.T) *Table[V] {
	t.Helper()
	h, err := backends.NewHandle(store.WriteOptions(backends.Memory, t.Name()))
	require.NoError(t, err)
	return NewTable(h, codec.Msgpack[V]())
}

func badgerTable[V any](t *testing.T, batchSize int) *Table[V] {
	t.Helper()
	opts := store.WriteOptions(backends.Badger, filepath.Join(t.TempDir(), "db"))
	opts.BatchSize = batchSize
	h, err := backends.NewHandle(opts)
	require.NoError(t, err)
	return NewTable(h, codec.Msgpack[V]())
}

func fill[V any](t *testing.T, tbl *Table[V], records ...Record[V]) {
	t.Helper()
	ctx := context.Background()
	w := tbl.Writer()
	require.NoError(t, w.Open(ctx))
	for _, r := range records {
		require.NoError(t, w.Write(ctx, r.Key, r.Value))
	}
	require.NoError(t, w.Close())
}

// trackingWriter counts lifecycle calls
type trackingWriter[V any] struct {
	opened, closed int
	records        []Record[V]
	failWrite      error
}

func (w *trackingWriter[V]) Open(ctx context.Context) error {
	w.opened++
	return nil
}

func (w *trackingWriter[V]) Write(ctx context.Context, key string, value V) error {
	if w.failWrite != nil {
		return w.failWrite
	}
	w.records = append(w.records, Record[V]{Key: key, Value: value})
	return nil
}

func (w *trackingWriter[V]) Close() error {
	w.closed++
	return nil
}

// trackingReader wraps a reader and records whether it was released
type trackingReader[V any] struct {
	inner    Reader[V]
	acquired int
	released int
}

func (r *trackingReader[V]) Each(ctx context.Context, fn func(string, V) error) error {
	r.acquired++
	defer func() { r.released++ }()
	return r.inner.Each(ctx, fn)
}
