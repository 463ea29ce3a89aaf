package mutualinfo

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/koch/pkg/koch/bayes"
	"github.com/cognicore/koch/pkg/koch/codec"
	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/pipeline"
	"github.com/cognicore/koch/pkg/koch/store"
	"github.com/cognicore/koch/pkg/koch/store/backends"
)

func table[V any](t *testing.T, name string) *pipeline.Table[V] {
	t.Helper()
	h, err := backends.NewHandle(store.WriteOptions(backends.Memory, name))
	require.NoError(t, err)
	return pipeline.NewTable(h, codec.Msgpack[V]())
}

func document(url, topic, text string) pipeline.Record[doc.Document] {
	d := doc.Document{URL: url, Metadata: map[string]string{"topic": topic}}
	b := doc.Blob{Text: text}
	for i, w := range strings.Fields(text) {
		b.Words = append(b.Words, doc.Word{Text: w, Index: i})
	}
	d.Blobs = []doc.Blob{b}
	return pipeline.Record[doc.Document]{Key: url, Value: d}
}

func TestScore(t *testing.T) {
	priors := map[string]float64{"a": 2, "b": 2}

	informative := Score(doc.Keyword{DocCount: 2, Prior: map[string]float64{"a": 2}}, priors)
	assert.InDelta(t, 1.0, informative["a"], 1e-12)
	assert.InDelta(t, 1.0, informative["b"], 1e-12)

	independent := Score(doc.Keyword{DocCount: 2, Prior: map[string]float64{"a": 1, "b": 1}}, priors)
	assert.InDelta(t, 0.0, independent["a"], 1e-12)
	assert.InDelta(t, 0.0, independent["b"], 1e-12)

	empty := Score(doc.Keyword{}, priors)
	assert.Equal(t, map[string]float64{"a": 0, "b": 0}, empty)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	cfg := bayes.Config{Label: "topic", Classes: []string{"sports", "politics"}}
	docs := pipeline.Fixed(
		document("http://1", "sports", "ball game ball"),
		document("http://2", "politics", "vote game"),
		document("http://3", "weather", "ball"),
	)
	counts, scored := table[doc.Keyword](t, "counts"), table[doc.Keyword](t, "scored")
	require.NoError(t, Run(ctx, docs, cfg, counts, scored.Writer(), nil))

	got, err := pipeline.Collect[doc.Keyword](ctx, scored.Reader())
	require.NoError(t, err)
	byWord := make(map[string]doc.Keyword)
	for _, r := range got {
		byWord[r.Key] = r.Value
	}
	require.Len(t, byWord, 3)

	ball := byWord["ball"]
	assert.Equal(t, int64(3), ball.DocCount)
	assert.Equal(t, map[string]float64{"sports": 2, "politics": 1}, ball.Prior)
	assert.Greater(t, ball.MutualInfo["sports"], 0.0)
	assert.InDelta(t, ball.MutualInfo["sports"], ball.MutualInfo["politics"], 1e-12)

	game := byWord["game"]
	assert.Equal(t, int64(4), game.DocCount)
	assert.InDelta(t, 0.0, game.MutualInfo["sports"], 1e-12)
}
