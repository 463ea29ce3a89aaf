package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/koch/pkg/koch/internalerr"
)

// recordingBackend keeps committed batches so tests can inspect flush points
type recordingBackend struct {
	data    map[string][]byte
	batches [][]Entry
	failOn  int
	closed  int
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{data: map[string][]byte{}, failOn: -1}
}

func (b *recordingBackend) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	v, ok := b.data[string(key)]
	return v, ok, nil
}

func (b *recordingBackend) Commit(ctx context.Context, entries []Entry) error {
	if b.failOn == len(b.batches) {
		return errors.New("disk full")
	}
	b.batches = append(b.batches, entries)
	for _, e := range entries {
		b.data[string(e.Key)] = e.Value
	}
	return nil
}

func (b *recordingBackend) Scan(ctx context.Context, fn func(key, value []byte) error) error {
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		if v, ok := b.data[k]; ok {
			if err := fn([]byte(k), v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *recordingBackend) Close() error {
	b.closed++
	return nil
}

func TestBufferedFlushesAtBatchSize(t *testing.T) {
	ctx := context.Background()
	b := newRecordingBackend()
	st := NewBuffered(b, 2)

	require.NoError(t, st.Put(ctx, []byte("a"), []byte("1")))
	assert.Empty(t, b.batches, "first write stays buffered")

	require.NoError(t, st.Put(ctx, []byte("b"), []byte("2")))
	require.Len(t, b.batches, 1)
	assert.Len(t, b.batches[0], 2)

	require.NoError(t, st.Put(ctx, []byte("c"), []byte("3")))
	require.NoError(t, st.Close())
	require.Len(t, b.batches, 2, "close flushes the tail")
	assert.Equal(t, 1, b.closed)
}

func TestBufferedReadYourWrites(t *testing.T) {
	ctx := context.Background()
	b := newRecordingBackend()
	st := NewBuffered(b, 100)

	require.NoError(t, st.Put(ctx, []byte("a"), []byte("old")))
	require.NoError(t, st.Put(ctx, []byte("a"), []byte("new")))

	v, ok, err := st.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", string(v))
	assert.Empty(t, b.batches)

	var seen []string
	require.NoError(t, st.Scan(ctx, func(key, value []byte) error {
		seen = append(seen, string(key)+"="+string(value))
		return nil
	}))
	assert.Equal(t, []string{"a=new"}, seen)
	require.Len(t, b.batches, 1)
	assert.Len(t, b.batches[0], 1, "overwrites collapse inside a batch")
}

func TestBufferedScanStop(t *testing.T) {
	ctx := context.Background()
	st := NewBuffered(newRecordingBackend(), 10)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, st.Put(ctx, []byte(k), []byte(k)))
	}

	var n int
	err := st.Scan(ctx, func(key, value []byte) error {
		n++
		return internalerr.ErrStop
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBufferedCommitFailureKeepsBatch(t *testing.T) {
	ctx := context.Background()
	b := newRecordingBackend()
	b.failOn = 0
	st := NewBuffered(b, 1)

	err := st.Put(ctx, []byte("a"), []byte("1"))
	require.Error(t, err)
	assert.Empty(t, b.data, "failed batch must not be partially applied")

	v, ok, err := st.Get(ctx, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", string(v))
}

func TestBufferedClosed(t *testing.T) {
	ctx := context.Background()
	b := newRecordingBackend()
	st := NewBuffered(b, 10)

	require.NoError(t, st.Close())
	require.NoError(t, st.Close())
	assert.Equal(t, 1, b.closed)

	_, _, err := st.Get(ctx, []byte("a"))
	assert.ErrorIs(t, err, internalerr.ErrStoreClosed)
	assert.ErrorIs(t, st.Put(ctx, []byte("a"), nil), internalerr.ErrStoreClosed)
	assert.ErrorIs(t, st.Flush(ctx), internalerr.ErrStoreClosed)
	assert.ErrorIs(t, st.Scan(ctx, func(k, v []byte) error { return nil }), internalerr.ErrStoreClosed)
}

func TestBufferedRejectsEmptyKey(t *testing.T) {
	st := NewBuffered(newRecordingBackend(), 10)
	assert.Error(t, st.Put(context.Background(), nil, []byte("x")))
}
