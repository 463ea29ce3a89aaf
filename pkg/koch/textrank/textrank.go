// Package textrank scores document words with TextRank: a co-occurrence
// graph over the words of a document, ranked by power iteration.
package textrank

import (
	"fmt"
	"math"
	"sort"

	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/internalerr"
)

// Config holds the ranking parameters.
type Config struct {
	Window        int     `yaml:"window"`         // co-occurrence window in word positions
	Damping       float64 `yaml:"damping"`        // probability of following an edge
	MaxIterations int     `yaml:"max_iterations"` // power iteration cap
	Threshold     float64 `yaml:"threshold"`      // L2 delta below which scores are final
}

// DefaultConfig returns the standard TextRank parameters.
func DefaultConfig() Config {
	return Config{
		Window:        10,
		Damping:       0.85,
		MaxIterations: 100,
		Threshold:     1e-4,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	switch {
	case c.Window < 2:
		return fmt.Errorf("%w: textrank window %d < 2", internalerr.ErrInvalidConfig, c.Window)
	case c.Damping <= 0 || c.Damping >= 1:
		return fmt.Errorf("%w: textrank damping %g outside (0, 1)", internalerr.ErrInvalidConfig, c.Damping)
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: textrank max_iterations %d < 1", internalerr.ErrInvalidConfig, c.MaxIterations)
	case c.Threshold <= 0:
		return fmt.Errorf("%w: textrank threshold %g <= 0", internalerr.ErrInvalidConfig, c.Threshold)
	}
	return nil
}

// Mention is one occurrence of a token
type Mention struct {
	Position int
	Blob     int
}

// Token is a graph vertex, unique by text within a document
type Token struct {
	Text     string
	Mentions []Mention
	Weight   float64
}

// Edge is a directed weighted edge between two tokens
type Edge struct {
	From   string
	To     string
	Weight float64
}

// Graph is the co-occurrence graph of one document.
type Graph struct {
	Tokens []Token
	Edges  []Edge
}

// ConvergenceWarning reports that the iteration cap was reached before the
// scores settled. The scores of the last iteration are kept.
type ConvergenceWarning struct {
	Iterations int
	Delta      float64
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("textrank did not converge after %d iterations (delta %.3g)", w.Iterations, w.Delta)
}

// Build creates the graph of d. Tokens appear in first-mention order. The
// weight of a→b sums 1/|Δpos| over every pair of a and b mentions in the
// same blob that are less than window positions apart; pairs without such
// mentions get no edge.
func Build(d *doc.Document, window int) *Graph {
	g := &Graph{}
	index := make(map[string]int)
	for b, blob := range d.Blobs {
		for _, w := range blob.Words {
			i, ok := index[w.Text]
			if !ok {
				i = len(g.Tokens)
				index[w.Text] = i
				g.Tokens = append(g.Tokens, Token{Text: w.Text})
			}
			g.Tokens[i].Mentions = append(g.Tokens[i].Mentions, Mention{Position: w.Index, Blob: b})
		}
	}

	type pair struct{ from, to int }
	weights := make(map[pair]float64)
	for _, blob := range d.Blobs {
		words := append([]doc.Word(nil), blob.Words...)
		sort.SliceStable(words, func(i, j int) bool { return words[i].Index < words[j].Index })
		for i, a := range words {
			for _, b := range words[i+1:] {
				dist := b.Index - a.Index
				if dist >= window {
					break
				}
				if dist == 0 || a.Text == b.Text {
					continue
				}
				w := 1 / float64(dist)
				from, to := index[a.Text], index[b.Text]
				weights[pair{from, to}] += w
				weights[pair{to, from}] += w
			}
		}
	}

	for p, w := range weights {
		g.Edges = append(g.Edges, Edge{From: g.Tokens[p.from].Text, To: g.Tokens[p.to].Text, Weight: w})
	}
	sort.Slice(g.Edges, func(i, j int) bool {
		if g.Edges[i].From != g.Edges[j].From {
			return g.Edges[i].From < g.Edges[j].From
		}
		return g.Edges[i].To < g.Edges[j].To
	})
	return g
}

// link is an edge in index space
type link struct {
	from, to int
	weight   float64
}

// normalize divides every edge weight by the total weight of the edges
// entering its target, so w[i][j] = edge(i→j) / Σ_k edge(k→j) and each
// non-empty column j sums to 1. Edges naming unknown tokens or carrying no
// weight are dropped.
func (g *Graph) normalize() []link {
	index := make(map[string]int, len(g.Tokens))
	for i, t := range g.Tokens {
		index[t.Text] = i
	}
	in := make([]float64, len(g.Tokens))
	links := make([]link, 0, len(g.Edges))
	for _, e := range g.Edges {
		from, ok1 := index[e.From]
		to, ok2 := index[e.To]
		if !ok1 || !ok2 || e.Weight <= 0 {
			continue
		}
		links = append(links, link{from: from, to: to, weight: e.Weight})
		in[to] += e.Weight
	}
	for i := range links {
		links[i].weight /= in[links[i].to]
	}
	return links
}

// Rank sets every token weight. Scores start at 1/N and are updated as
//
//	s'[i] = (1-d)/N + d * Σ_j w[i][j] * s[j]
//
// until the L2 distance between iterations drops below the threshold. A
// *ConvergenceWarning is returned when the cap is reached first; the
// weights are still set.
func (g *Graph) Rank(cfg Config) error {
	n := len(g.Tokens)
	switch n {
	case 0:
		return nil
	case 1:
		g.Tokens[0].Weight = 1
		return nil
	}

	links := g.normalize()
	base := (1 - cfg.Damping) / float64(n)
	scores := make([]float64, n)
	next := make([]float64, n)
	for i := range scores {
		scores[i] = 1 / float64(n)
	}

	var delta float64
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		for i := range next {
			next[i] = 0
		}
		for _, l := range links {
			next[l.from] += l.weight * scores[l.to]
		}
		var sq float64
		for i := range next {
			next[i] = base + cfg.Damping*next[i]
			sq += (next[i] - scores[i]) * (next[i] - scores[i])
		}
		scores, next = next, scores
		delta = math.Sqrt(sq)
		if delta < cfg.Threshold {
			g.setWeights(scores)
			return nil
		}
	}

	g.setWeights(scores)
	return &ConvergenceWarning{Iterations: cfg.MaxIterations, Delta: delta}
}

func (g *Graph) setWeights(scores []float64) {
	for i := range g.Tokens {
		g.Tokens[i].Weight = scores[i]
	}
}

// Keywords returns one keyword per token by descending weight, ties broken
// by text.
func (g *Graph) Keywords() []doc.Keyword {
	tokens := append([]Token(nil), g.Tokens...)
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Weight != tokens[j].Weight {
			return tokens[i].Weight > tokens[j].Weight
		}
		return tokens[i].Text < tokens[j].Text
	})
	out := make([]doc.Keyword, len(tokens))
	for i, t := range tokens {
		out[i] = doc.Keyword{Word: t.Text, TextRank: t.Weight}
	}
	return out
}

// Score builds and ranks the graph of d. A *ConvergenceWarning comes back
// together with the keywords of the last iteration.
func Score(d *doc.Document, cfg Config) ([]doc.Keyword, error) {
	g := Build(d, cfg.Window)
	err := g.Rank(cfg)
	return g.Keywords(), err
}
