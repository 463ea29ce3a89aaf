// Package parse turns extracted page regions into blobs of positioned words.
package parse

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/pipeline"
)

// Blobs flattens the extracted region into one blob per text run, in
// document order: an element's text, then its children, then its tail.
// Runs without any kept word are skipped.
func Blobs(region *doc.Elements, tok *Tokenizer) []doc.Blob {
	if region == nil {
		return nil
	}

	type item struct {
		el   *doc.Element
		tail bool
	}
	var stack []item
	for i := len(region.Elements) - 1; i >= 0; i-- {
		stack = append(stack, item{el: &region.Elements[i]})
	}

	var blobs []doc.Blob
	add := func(text string) {
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			return
		}
		if words := tok.Words(text); len(words) > 0 {
			blobs = append(blobs, doc.Blob{Text: text, Words: words})
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.tail {
			add(top.el.Tail)
			continue
		}
		add(top.el.Text)
		stack = append(stack, item{el: top.el, tail: true})
		for i := len(top.el.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{el: &top.el.Children[i]})
		}
	}
	return blobs
}

// Document replaces the blobs of d with those of its extracted region.
func Document(ctx context.Context, key string, d doc.Document, tok *Tokenizer, emit pipeline.Emit[doc.Document]) error {
	d.Blobs = Blobs(d.Elements, tok)
	return emit(key, d)
}

// NewPipeline parses every document read from r into w.
func NewPipeline(r pipeline.Reader[doc.Document], w pipeline.Writer[doc.Document], tok *Tokenizer, logger *slog.Logger) *pipeline.Pipeline[doc.Document, doc.Document] {
	pipe := func(ctx context.Context, key string, d doc.Document, emit pipeline.Emit[doc.Document]) error {
		return Document(ctx, key, d, tok, emit)
	}
	return pipeline.New(r, w, pipe, pipeline.WithName("parse"), pipeline.WithLogger(logger))
}
