package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/koch/pkg/koch/internalerr"
)

func splitWords(ctx context.Context, key, value string, emit Emit[string]) error {
	for _, w := range strings.Fields(value) {
		if err := emit(w, key); err != nil {
			return err
		}
	}
	return nil
}

func TestPipelineFanOut(t *testing.T) {
	ctx := context.Background()
	src := Fixed(
		Record[string]{"doc1", "the cat sat"},
		Record[string]{"doc2", ""},
		Record[string]{"doc3", "a dog"},
	)
	w := &trackingWriter[string]{}

	require.NoError(t, New[string, string](src, w, splitWords).Run(ctx))

	assert.Equal(t, 1, w.opened)
	assert.Equal(t, 1, w.closed)
	assert.Equal(t, []Record[string]{
		{"the", "doc1"}, {"cat", "doc1"}, {"sat", "doc1"},
		{"a", "doc3"}, {"dog", "doc3"},
	}, w.records, "outputs of one input keep emission order")
}

func TestPipelineReleasesOnPipeError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	src := &trackingReader[string]{inner: Fixed(Record[string]{"k", "v"}, Record[string]{"k2", "v2"})}
	w := &trackingWriter[string]{}

	err := New[string, string](src, w, func(ctx context.Context, key, value string, emit Emit[string]) error {
		return boom
	}, WithName("failing")).Run(ctx)

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, 1, src.released)
	assert.Equal(t, 1, w.closed)
}

func TestPipelineReleasesOnPanic(t *testing.T) {
	ctx := context.Background()
	src := &trackingReader[string]{inner: Fixed(Record[string]{"k", "v"})}
	w := &trackingWriter[string]{}

	p := New[string, string](src, w, func(ctx context.Context, key, value string, emit Emit[string]) error {
		panic("transform bug")
	})
	require.Panics(t, func() { _ = p.Run(ctx) })
	assert.Equal(t, 1, src.released)
	assert.Equal(t, 1, w.closed)
}

func TestPipelineWriteErrorReleasesTable(t *testing.T) {
	ctx := context.Background()
	tbl := memTable[string](t)
	src := Fixed(Record[string]{"k", "v"})

	fail := New[string, string](src, tbl.Writer(), func(ctx context.Context, key, value string, emit Emit[string]) error {
		if err := emit(key, value); err != nil {
			return err
		}
		return errors.New("after write")
	})
	require.Error(t, fail.Run(ctx))

	_, err := tbl.Handle().Store()
	assert.ErrorIs(t, err, internalerr.ErrStoreClosed)
}

func TestPipelineComposesAsReader(t *testing.T) {
	ctx := context.Background()
	src := Fixed(Record[string]{"doc1", "b a"}, Record[string]{"doc2", "c"})
	words := Compose[string, string](src, splitWords)
	upper := Compose[string, string](words, func(ctx context.Context, key, value string, emit Emit[string]) error {
		return emit(strings.ToUpper(key), value)
	})

	got, err := Collect[string](ctx, upper)
	require.NoError(t, err)
	assert.Equal(t, []Record[string]{{"B", "doc1"}, {"A", "doc1"}, {"C", "doc2"}}, got)

	assert.ErrorIs(t, upper.Run(ctx), internalerr.ErrInvalidConfig)
}

func TestEachStopsEarly(t *testing.T) {
	ctx := context.Background()
	src := Fixed(Record[int]{"a", 1}, Record[int]{"b", 2}, Record[int]{"c", 3})
	p := Compose[int, int](src, Identity[int])

	var seen []string
	err := p.Each(ctx, func(key string, value int) error {
		seen = append(seen, key)
		if key == "b" {
			return internalerr.ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestRunToTable(t *testing.T) {
	ctx := context.Background()
	tbl := memTable[string](t)
	src := Fixed(Record[string]{"doc1", "z y"}, Record[string]{"doc2", "y x"})

	require.NoError(t, New[string, string](src, tbl.Writer(), splitWords).Run(ctx))

	got, err := Collect[string](ctx, tbl.Reader())
	require.NoError(t, err)
	// scan order is key order; the later write wins for "y"
	assert.Equal(t, []Record[string]{{"x", "doc2"}, {"y", "doc2"}, {"z", "doc1"}}, got)

	n, err := Count[string](ctx, tbl.Reader())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}
