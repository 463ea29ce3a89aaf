// Package tfidf scores document words by term frequency times inverse
// document frequency.
//
// The scoring runs in two combining passes: the first counts, per word,
// the documents containing it; the second fans every document out per
// distinct word, joins each copy with the word's counts, and folds the
// scored keywords back into one document per URL.
package tfidf

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/pipeline"
)

// Score returns tf*idf with tf = termCount/docTermCount and
// idf = ln(docCount/termDocCount).
func Score(termCount, docTermCount, termDocCount, docCount int64) float64 {
	if docTermCount == 0 || termDocCount == 0 || docCount == 0 {
		return 0
	}
	tf := float64(termCount) / float64(docTermCount)
	idf := math.Log(float64(docCount) / float64(termDocCount))
	return tf * idf
}

// CorpusSize counts the documents of r.
func CorpusSize(ctx context.Context, r pipeline.Reader[doc.Document]) (int64, error) {
	return pipeline.Count(ctx, r)
}

// Terms emits one copy of the document per distinct word, keyed by the
// word. Copies carry no keywords.
func Terms(ctx context.Context, key string, d doc.Document, emit pipeline.Emit[doc.Document]) error {
	for _, word := range d.DistinctWords() {
		c := d.Clone()
		c.Keywords = nil
		if err := emit(word, c); err != nil {
			return err
		}
	}
	return nil
}

// NewIDFPipeline counts, for each word, the documents of r containing it.
// n is the corpus size recorded on every keyword.
func NewIDFPipeline(r pipeline.Reader[doc.Document], keywords *pipeline.Table[doc.Keyword], n int64, logger *slog.Logger) (*pipeline.CombiningPipeline[doc.Document, doc.Keyword], error) {
	pipe := func(ctx context.Context, key string, d doc.Document, emit pipeline.Emit[doc.Keyword]) error {
		for _, word := range d.DistinctWords() {
			if err := emit(word, doc.Keyword{Word: word, DocCount: 1, TotalDocCount: n}); err != nil {
				return err
			}
		}
		return nil
	}
	return pipeline.OnTable(r, keywords, pipe, combineDocCounts, pipeline.WithName("idf"), pipeline.WithLogger(logger))
}

func combineDocCounts(value, old doc.Keyword, found bool) (doc.Keyword, error) {
	if !found {
		return value, nil
	}
	old.DocCount += value.DocCount
	return old, nil
}

// NewTFIDFPipeline scores every word of every document of r against the
// counts in keywords and collects the scores per document URL in out.
func NewTFIDFPipeline(r pipeline.Reader[doc.Document], keywords *pipeline.Table[doc.Keyword], out *pipeline.Table[doc.Document], logger *slog.Logger) (*pipeline.CombiningPipeline[pipeline.Joined[doc.Document, doc.Keyword], doc.Document], error) {
	joined, err := pipeline.NewJoining[doc.Document, doc.Keyword](
		pipeline.Compose(r, Terms, pipeline.WithName("terms"), pipeline.WithLogger(logger)),
		keywords.Reader(),
	)
	if err != nil {
		return nil, err
	}
	return pipeline.OnTable(joined, out, scoreTerm, combineKeywords, pipeline.WithName("tfidf"), pipeline.WithLogger(logger))
}

func scoreTerm(ctx context.Context, word string, j pipeline.Joined[doc.Document, doc.Keyword], emit pipeline.Emit[doc.Document]) error {
	if !j.Found {
		return nil
	}
	d, kw := j.Left, j.Right

	var total, count int64
	for _, b := range d.Blobs {
		for _, w := range b.Words {
			total++
			if w.Text == kw.Word {
				count++
			}
		}
	}
	kw.TermCount = count
	kw.TfIdf = Score(count, total, kw.DocCount, kw.TotalDocCount)
	d.Keywords = []doc.Keyword{kw}
	return emit(d.URL, d)
}

// combineKeywords unions keyword lists, keeping them ordered by word
func combineKeywords(value, old doc.Document, found bool) (doc.Document, error) {
	if !found {
		sortKeywords(value.Keywords)
		return value, nil
	}
	old.Keywords = append(old.Keywords, value.Keywords...)
	sortKeywords(old.Keywords)
	return old, nil
}

func sortKeywords(kws []doc.Keyword) {
	sort.Slice(kws, func(i, j int) bool { return kws[i].Word < kws[j].Word })
}

// Run scores the documents of docs. keywords receives the per-word counts
// and out the scored documents; both must start empty.
func Run(ctx context.Context, docs pipeline.Reader[doc.Document], keywords *pipeline.Table[doc.Keyword], out *pipeline.Table[doc.Document], logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	n, err := CorpusSize(ctx, docs)
	if err != nil {
		return fmt.Errorf("corpus size: %w", err)
	}
	logger.Info("corpus size", "docs", n)

	idf, err := NewIDFPipeline(docs, keywords, n, logger)
	if err != nil {
		return err
	}
	if err := idf.Run(ctx); err != nil {
		return err
	}

	tfidf, err := NewTFIDFPipeline(docs, keywords, out, logger)
	if err != nil {
		return err
	}
	return tfidf.Run(ctx)
}
