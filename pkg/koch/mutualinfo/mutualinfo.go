// Package mutualinfo finds the words most informative of a class: the
// mutual information, in bits, between "document contains the word" and
// "document has the class".
package mutualinfo

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cognicore/koch/pkg/koch/bayes"
	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/pipeline"
)

// NewPriorPipeline counts, per word of the labelled documents of r, the
// documents containing it overall and per class. On a word's first sight
// its document count starts at len(cfg.Classes) and each class at one.
func NewPriorPipeline(r pipeline.Reader[doc.Document], keywords *pipeline.Table[doc.Keyword], cfg bayes.Config, logger *slog.Logger) (*pipeline.CombiningPipeline[doc.Document, doc.Keyword], error) {
	pipe := func(ctx context.Context, key string, d doc.Document, emit pipeline.Emit[doc.Keyword]) error {
		label, ok := bayes.Label(&d, cfg)
		if !ok {
			return nil
		}
		for _, word := range d.DistinctWords() {
			kw := doc.Keyword{Word: word, DocCount: 1, Prior: map[string]float64{label: 1}}
			if err := emit(word, kw); err != nil {
				return err
			}
		}
		return nil
	}
	combine := func(value, old doc.Keyword, found bool) (doc.Keyword, error) {
		if !found {
			old = doc.Keyword{
				Word:     value.Word,
				DocCount: int64(len(cfg.Classes)),
				Prior:    make(map[string]float64, len(cfg.Classes)),
			}
			for _, c := range cfg.Classes {
				old.Prior[c]++
			}
		}
		old.DocCount += value.DocCount
		for c, n := range value.Prior {
			old.Prior[c] += n
		}
		return old, nil
	}
	return pipeline.OnTable(r, keywords, pipe, combine, pipeline.WithName("mi-prior"), pipeline.WithLogger(logger))
}

// cell is one term of the mutual information sum; empty or degenerate
// cells contribute nothing
func cell(n, nij, row, col float64) float64 {
	if nij <= 0 || row <= 0 || col <= 0 {
		return 0
	}
	return nij * (math.Log2(n*nij) - math.Log2(row*col)) / n
}

// Score returns the mutual information of kw with every class of
// classPriors, from the 2x2 contingency table of word presence against
// class membership over the labelled corpus.
func Score(kw doc.Keyword, classPriors map[string]float64) map[string]float64 {
	var n float64
	for _, v := range classPriors {
		n += v
	}
	out := make(map[string]float64, len(classPriors))
	for c, inClass := range classPriors {
		withWord := float64(kw.DocCount)
		withoutWord := n - withWord
		outClass := n - inClass

		n11 := kw.Prior[c]
		n10 := withWord - n11
		n01 := inClass - n11
		n00 := n - n11 - n10 - n01

		out[c] = cell(n, n11, withWord, inClass) +
			cell(n, n01, withoutWord, inClass) +
			cell(n, n10, withWord, outClass) +
			cell(n, n00, withoutWord, outClass)
	}
	return out
}

// NewScorePipeline scores every keyword of r.
func NewScorePipeline(r pipeline.Reader[doc.Keyword], w pipeline.Writer[doc.Keyword], classPriors map[string]float64, logger *slog.Logger) *pipeline.Pipeline[doc.Keyword, doc.Keyword] {
	pipe := func(ctx context.Context, key string, kw doc.Keyword, emit pipeline.Emit[doc.Keyword]) error {
		kw.MutualInfo = Score(kw, classPriors)
		return emit(key, kw)
	}
	return pipeline.New(r, w, pipe, pipeline.WithName("mutualinfo"), pipeline.WithLogger(logger))
}

// Run counts the words of the labelled documents of docs into keywords,
// which must start empty, and writes the scored keywords to w.
func Run(ctx context.Context, docs pipeline.Reader[doc.Document], cfg bayes.Config, keywords *pipeline.Table[doc.Keyword], w pipeline.Writer[doc.Keyword], logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}

	labelled := pipeline.Compose(docs, bayes.Labelled(cfg), pipeline.WithName("label"), pipeline.WithLogger(logger))
	priors, err := bayes.ClassPriors(ctx, labelled, cfg)
	if err != nil {
		return fmt.Errorf("class priors: %w", err)
	}
	logger.Info("class priors", "priors", priors)

	prior, err := NewPriorPipeline(labelled, keywords, cfg, logger)
	if err != nil {
		return err
	}
	if err := prior.Run(ctx); err != nil {
		return err
	}
	return NewScorePipeline(keywords.Reader(), w, priors, logger).Run(ctx)
}
