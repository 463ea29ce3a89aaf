// Package eval measures extracted text against hand-labelled text with
// word-level precision and recall.
package eval

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/pipeline"
)

// Columns of the output rows
const (
	ColumnPrecision = "precision"
	ColumnRecall    = "recall"
	ColumnFound     = "found"
)

var nonWord = regexp.MustCompile(`\W+`)

// WordCounts counts the words of s, split on non-word characters.
func WordCounts(s string) map[string]int {
	out := make(map[string]int)
	for _, w := range nonWord.Split(s, -1) {
		if w != "" {
			out[w]++
		}
	}
	return out
}

func overlap(pred, label map[string]int) int {
	n := 0
	for w, c := range pred {
		n += min(c, label[w])
	}
	return n
}

func total(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

// PrecisionRecall compares the word multisets of pred and label. Either
// value is 0 when its denominator is.
func PrecisionRecall(pred, label string) (precision, recall float64) {
	p, l := WordCounts(pred), WordCounts(label)
	hit := float64(overlap(p, l))
	if n := total(p); n > 0 {
		precision = hit / float64(n)
	}
	if n := total(l); n > 0 {
		recall = hit / float64(n)
	}
	return precision, recall
}

// NewPipeline joins the labelled rows of labels with docs by key and
// writes one row of scores per label. column selects the labelled text.
// Labels without a document score 0 and are marked not found.
func NewPipeline(labels pipeline.Reader[pipeline.Row], docs pipeline.Reader[doc.Document], column string, w pipeline.Writer[pipeline.Row], logger *slog.Logger) (*pipeline.Pipeline[pipeline.Joined[pipeline.Row, doc.Document], pipeline.Row], error) {
	joined, err := pipeline.NewJoining[pipeline.Row, doc.Document](labels, docs)
	if err != nil {
		return nil, err
	}
	pipe := func(ctx context.Context, key string, j pipeline.Joined[pipeline.Row, doc.Document], emit pipeline.Emit[pipeline.Row]) error {
		var p, r float64
		if j.Found {
			p, r = PrecisionRecall(j.Right.Text(), j.Left[column])
		}
		return emit(key, pipeline.Row{
			ColumnPrecision: strconv.FormatFloat(p, 'f', 6, 64),
			ColumnRecall:    strconv.FormatFloat(r, 'f', 6, 64),
			ColumnFound:     strconv.FormatBool(j.Found),
		})
	}
	return pipeline.New(joined, w, pipe, pipeline.WithName("eval"), pipeline.WithLogger(logger)), nil
}
