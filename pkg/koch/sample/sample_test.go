package sample

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/koch/pkg/koch/pipeline"
)

func source(n int) *pipeline.FixedReader[int] {
	records := make([]pipeline.Record[int], n)
	for i := range records {
		records[i] = pipeline.Record[int]{Key: fmt.Sprintf("k%03d", i), Value: i}
	}
	return pipeline.Fixed(records...)
}

func TestReservoirSize(t *testing.T) {
	ctx := context.Background()

	got, err := New[int](source(100), 10, 0).Draw(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 10)

	seen := make(map[string]bool)
	for _, r := range got {
		assert.False(t, seen[r.Key], "duplicate %s", r.Key)
		seen[r.Key] = true
		assert.Equal(t, fmt.Sprintf("k%03d", r.Value), r.Key)
	}

	small, err := New[int](source(3), 10, 0).Draw(ctx)
	require.NoError(t, err)
	assert.Len(t, small, 3, "short streams are kept whole")

	none, err := New[int](source(3), 0, 0).Draw(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReservoirIsSeeded(t *testing.T) {
	ctx := context.Background()
	a, err := pipeline.Collect[int](ctx, New[int](source(1000), 20, 7))
	require.NoError(t, err)
	b, err := pipeline.Collect[int](ctx, New[int](source(1000), 20, 7))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := pipeline.Collect[int](ctx, New[int](source(1000), 20, 8))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestReservoirIsUniform(t *testing.T) {
	ctx := context.Background()
	hits := make([]int, 10)
	for seed := int64(0); seed < 2000; seed++ {
		got, err := New[int](source(10), 3, seed).Draw(ctx)
		require.NoError(t, err)
		for _, r := range got {
			hits[r.Value]++
		}
	}
	// each record is expected 600 times
	for i, h := range hits {
		assert.InDelta(t, 600, h, 120, "record %d", i)
	}
}

func TestPipeline(t *testing.T) {
	ctx := context.Background()
	var out []int
	w := &sink{fn: func(v int) { out = append(out, v) }}
	require.NoError(t, NewPipeline[int](source(50), w, 5, 1, nil).Run(ctx))
	assert.Len(t, out, 5)
}

type sink struct{ fn func(int) }

func (s *sink) Open(context.Context) error { return nil }

func (s *sink) Write(ctx context.Context, key string, v int) error {
	s.fn(v)
	return nil
}

func (s *sink) Close() error { return nil }
