package textrank

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/internalerr"
)

func document(blobs ...string) *doc.Document {
	d := &doc.Document{URL: "http://example.com"}
	for _, text := range blobs {
		b := doc.Blob{Text: text}
		for i, w := range strings.Fields(text) {
			b.Words = append(b.Words, doc.Word{Text: w, Index: i})
		}
		d.Blobs = append(d.Blobs, b)
	}
	return d
}

func weights(g *Graph) map[string]float64 {
	out := make(map[string]float64, len(g.Tokens))
	for _, t := range g.Tokens {
		out[t.Text] = t.Weight
	}
	return out
}

func edge(g *Graph, from, to string) float64 {
	for _, e := range g.Edges {
		if e.From == from && e.To == to {
			return e.Weight
		}
	}
	return 0
}

func TestBuild(t *testing.T) {
	g := Build(document("the cat sat", "the cat ran"), 10)

	texts := make([]string, len(g.Tokens))
	for i, tok := range g.Tokens {
		texts[i] = tok.Text
	}
	assert.Equal(t, []string{"the", "cat", "sat", "ran"}, texts)
	assert.Equal(t, []Mention{{0, 0}, {0, 1}}, g.Tokens[0].Mentions)

	assert.Equal(t, 1.0, edge(g, "cat", "sat"))
	assert.Equal(t, 1.0, edge(g, "sat", "cat"))
	assert.Equal(t, 2.0, edge(g, "the", "cat"))
	assert.Equal(t, 0.5, edge(g, "the", "sat"))
	assert.Equal(t, 0.0, edge(g, "sat", "ran"), "different blobs never connect")
}

func TestBuildWindow(t *testing.T) {
	g := Build(document("a b c d"), 3)
	assert.Equal(t, 0.5, edge(g, "a", "c"))
	assert.Equal(t, 0.0, edge(g, "a", "d"), "distance 3 is outside a window of 3")
}

func TestNormalizedColumnsSumToOne(t *testing.T) {
	g := Build(document("the cat sat on the mat", "the cat ran", "dog"), 10)

	sums := make(map[int]float64)
	for _, l := range g.normalize() {
		sums[l.to] += l.weight
	}
	require.NotEmpty(t, sums)
	for to, sum := range sums {
		assert.InDelta(t, 1.0, sum, 1e-12, "column %s", g.Tokens[to].Text)
	}
	_, ok := sums[len(g.Tokens)-1]
	assert.False(t, ok, "isolated token has an empty column")
}

func TestRankCycle(t *testing.T) {
	g := &Graph{
		Tokens: []Token{{Text: "a"}, {Text: "b"}, {Text: "c"}},
		Edges: []Edge{
			{From: "a", To: "b", Weight: 1},
			{From: "b", To: "c", Weight: 1},
			{From: "c", To: "a", Weight: 1},
		},
	}
	require.NoError(t, g.Rank(DefaultConfig()))
	for _, tok := range g.Tokens {
		assert.InDelta(t, 1.0/3, tok.Weight, 1e-9, tok.Text)
	}
}

func TestRankFollowsEdgeDirection(t *testing.T) {
	g := &Graph{
		Tokens: []Token{{Text: "a"}, {Text: "b"}},
		Edges:  []Edge{{From: "a", To: "b", Weight: 1}},
	}
	require.NoError(t, g.Rank(DefaultConfig()))

	// a collects b's score through a→b; b only keeps the base score
	w := weights(g)
	assert.InDelta(t, 0.075, w["b"], 1e-9)
	assert.InDelta(t, 0.075+0.85*0.075, w["a"], 1e-9)
}

func TestNormalizeSplitsByTarget(t *testing.T) {
	g := &Graph{
		Tokens: []Token{{Text: "a"}, {Text: "b"}, {Text: "c"}},
		Edges: []Edge{
			{From: "a", To: "c", Weight: 1},
			{From: "b", To: "c", Weight: 3},
			{From: "a", To: "b", Weight: 2},
		},
	}
	got := make(map[[2]string]float64)
	for _, l := range g.normalize() {
		got[[2]string{g.Tokens[l.from].Text, g.Tokens[l.to].Text}] = l.weight
	}
	assert.Equal(t, map[[2]string]float64{
		{"a", "c"}: 0.25,
		{"b", "c"}: 0.75,
		{"a", "b"}: 1,
	}, got)
}

func TestRankCatSat(t *testing.T) {
	g := Build(document("the cat sat", "the cat ran"), 10)
	require.NoError(t, g.Rank(DefaultConfig()))

	w := weights(g)
	assert.Greater(t, w["cat"], w["the"])
	assert.Greater(t, w["the"], w["sat"])
	assert.InDelta(t, w["sat"], w["ran"], 1e-9)

	var sum float64
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-3)

	kws := g.Keywords()
	require.Len(t, kws, 4)
	assert.Equal(t, "cat", kws[0].Word)
	assert.Equal(t, "the", kws[1].Word)
	assert.Equal(t, "ran", kws[2].Word, "ties break by text")
	assert.Equal(t, "sat", kws[3].Word)
}

func TestRankDegenerate(t *testing.T) {
	g := Build(document(), 10)
	require.NoError(t, g.Rank(DefaultConfig()))
	assert.Empty(t, g.Keywords())

	g = Build(document("alone alone"), 10)
	require.NoError(t, g.Rank(DefaultConfig()))
	require.Len(t, g.Tokens, 1)
	assert.Equal(t, 1.0, g.Tokens[0].Weight)

	// no two words share a blob, so there are no edges
	g = Build(document("a", "b", "c", "d"), 10)
	require.Empty(t, g.Edges)
	require.NoError(t, g.Rank(DefaultConfig()))
	for _, tok := range g.Tokens {
		assert.InDelta(t, 0.15/4, tok.Weight, 1e-12)
	}
}

func TestRankWithoutConvergence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 1
	g := Build(document("the cat sat", "the cat ran"), cfg.Window)

	err := g.Rank(cfg)
	var warn *ConvergenceWarning
	require.True(t, errors.As(err, &warn))
	assert.Equal(t, 1, warn.Iterations)
	assert.Greater(t, warn.Delta, cfg.Threshold)

	w := weights(g)
	assert.NotEqual(t, w["cat"], w["sat"], "scores of the last iteration are kept")
	assert.Greater(t, w["cat"], 0.25)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	for name, mutate := range map[string]func(*Config){
		"window":     func(c *Config) { c.Window = 1 },
		"damping":    func(c *Config) { c.Damping = 1 },
		"iterations": func(c *Config) { c.MaxIterations = 0 },
		"threshold":  func(c *Config) { c.Threshold = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), internalerr.ErrInvalidConfig)
		})
	}
}
