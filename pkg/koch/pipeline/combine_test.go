package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/koch/pkg/koch/internalerr"
)

// counter is an accumulator with add-one smoothing applied on first sight
type counter struct {
	Count int64 `msgpack:"count"`
	Seen  int64 `msgpack:"seen"`
}

func countWords(ctx context.Context, key, value string, emit Emit[counter]) error {
	return splitWords(ctx, key, value, func(word, _ string) error {
		return emit(word, counter{Count: 1, Seen: 1})
	})
}

func smoothedSum(value, old counter, found bool) (counter, error) {
	if !found {
		old = counter{Count: 1}
	}
	old.Count += value.Count
	old.Seen += value.Seen
	return old, nil
}

func combineAll(t *testing.T, tbl *Table[counter], inputs []Record[string]) map[string]counter {
	t.Helper()
	ctx := context.Background()
	c, err := OnTable[string, counter](Fixed(inputs...), tbl, countWords, smoothedSum)
	require.NoError(t, err)

	out := map[string]counter{}
	require.NoError(t, c.Each(ctx, func(key string, value counter) error {
		_, dup := out[key]
		require.False(t, dup, "key %q emitted twice", key)
		out[key] = value
		return nil
	}))
	return out
}

func TestCombiningPipelineCounts(t *testing.T) {
	got := combineAll(t, memTable[counter](t), []Record[string]{
		{"d1", "the cat sat"},
		{"d2", "the cat ran"},
		{"d3", "the end"},
	})

	assert.Equal(t, map[string]counter{
		"the": {Count: 4, Seen: 3},
		"cat": {Count: 3, Seen: 2},
		"sat": {Count: 2, Seen: 1},
		"ran": {Count: 2, Seen: 1},
		"end": {Count: 2, Seen: 1},
	}, got)
}

func TestCombineIsOrderIndependent(t *testing.T) {
	var inputs []Record[string]
	vocab := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 60; i++ {
		text := ""
		for j := 0; j < 1+rng.Intn(4); j++ {
			text += vocab[rng.Intn(len(vocab))] + " "
		}
		inputs = append(inputs, Record[string]{Key: fmt.Sprintf("d%02d", i), Value: text})
	}

	want := combineAll(t, memTable[counter](t), inputs)

	for trial := 0; trial < 20; trial++ {
		shuffled := append([]Record[string](nil), inputs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		// regroup: split the shuffled input across two passes into one table
		tbl := memTable[counter](t)
		cut := rng.Intn(len(shuffled))
		first, err := OnTable[string, counter](Fixed(shuffled[:cut]...), tbl, countWords, smoothedSum)
		require.NoError(t, err)
		require.NoError(t, first.Run(context.Background()))

		got := combineAll(t, tbl, shuffled[cut:])
		assert.Equal(t, want, got, "trial %d", trial)
	}
}

func TestCombiningReadYourWritesAcrossFlushes(t *testing.T) {
	// batch size 2 forces many flushes in the middle of the pass
	tbl := badgerTable[counter](t, 2)

	var inputs []Record[string]
	for i := 0; i < 40; i++ {
		inputs = append(inputs, Record[string]{Key: fmt.Sprint(i), Value: "a b c a"})
	}
	got := combineAll(t, tbl, inputs)

	require.Len(t, got, 3)
	assert.Equal(t, counter{Count: 81, Seen: 80}, got["a"])
	assert.Equal(t, counter{Count: 41, Seen: 40}, got["b"])
	assert.Equal(t, counter{Count: 41, Seen: 40}, got["c"])

	_, err := tbl.Handle().Store()
	assert.ErrorIs(t, err, internalerr.ErrStoreClosed, "store released after emission")
}

func TestCombiningRequiresOneTable(t *testing.T) {
	a, b := memTable[counter](t), memTable[counter](t)
	_, err := NewCombining[string, counter](Fixed[string](), a.Reader(), b.Writer(), countWords, smoothedSum)
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestCombiningWithoutCombine(t *testing.T) {
	_, err := OnTable[string, counter](Fixed[string](), memTable[counter](t), countWords, nil)
	assert.ErrorIs(t, err, internalerr.ErrUnsupported)
}

func TestCombineErrorReleasesStore(t *testing.T) {
	tbl := memTable[counter](t)
	boom := errors.New("overflow")
	c, err := OnTable[string, counter](
		Fixed(Record[string]{"d1", "x y"}),
		tbl,
		countWords,
		func(value, old counter, found bool) (counter, error) { return old, boom },
	)
	require.NoError(t, err)

	err = c.Each(context.Background(), func(string, counter) error {
		t.Fatal("emission must not start after a failed pass")
		return nil
	})
	require.ErrorIs(t, err, boom)

	_, err = tbl.Handle().Store()
	assert.ErrorIs(t, err, internalerr.ErrStoreClosed)
}
