// Package extract finds the main content region of an HTML page.
//
// Every element gets a positive weight (the length of its own text and
// tail) and a negative weight (markup: twice the tag length plus the
// serialized attributes), summed over its subtree. With P and Q the
// totals of the whole page, an element scores
//
//	pos/P - 2*neg/Q
//
// and the best-scoring subtree is the page's content.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/pipeline"
)

// skipped elements never contribute text or weight
var skipped = map[string]bool{
	"iframe":   true,
	"noscript": true,
	"script":   true,
	"style":    true,
}

type node struct {
	el   doc.Element
	kids []*node
}

// Tree parses raw HTML into a weighted element tree rooted at <html>.
// Text following a skipped element or a comment is dropped with it.
func Tree(raw string) (doc.Element, error) {
	page, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return doc.Element{}, fmt.Errorf("parse html: %w", err)
	}
	var top *html.Node
	for c := page.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			top = c
			break
		}
	}
	if top == nil {
		return doc.Element{}, nil
	}

	type frame struct {
		src *html.Node
		dst *node
	}
	root := &node{el: element(top)}
	order := []*node{root}
	stack := []frame{{top, root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		text := &f.dst.el.Text
		var kids []frame
		for c := f.src.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				if text != nil {
					*text += c.Data
				}
			case c.Type == html.ElementNode && !skipped[c.Data]:
				kid := &node{el: element(c)}
				f.dst.kids = append(f.dst.kids, kid)
				kids = append(kids, frame{c, kid})
				text = &kid.el.Tail
			default:
				text = nil
			}
		}
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}

	// breadth-first, so every node comes after its parent
	for i := 0; i < len(order); i++ {
		order = append(order, order[i].kids...)
	}
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		n.el.Text = collapse(n.el.Text)
		n.el.Tail = collapse(n.el.Tail)
		n.el.Pos = float64(utf8.RuneCountInString(n.el.Text) + utf8.RuneCountInString(n.el.Tail))
		n.el.Neg = float64(2*len(n.el.Tag) + attribLen(n.el.Attrib))
		if len(n.kids) > 0 {
			n.el.Children = make([]doc.Element, len(n.kids))
		}
		for j, kid := range n.kids {
			n.el.Pos += kid.el.Pos
			n.el.Neg += kid.el.Neg
			n.el.Children[j] = kid.el
		}
	}
	return root.el, nil
}

func element(n *html.Node) doc.Element {
	el := doc.Element{Tag: n.Data}
	for _, a := range n.Attr {
		if a.Key == "style" {
			continue
		}
		if el.Attrib == nil {
			el.Attrib = make(map[string]string)
		}
		el.Attrib[a.Key] = a.Val
	}
	return el
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// attribLen is the length of the attributes serialized as k="v" pairs
// separated by single spaces
func attribLen(attrib map[string]string) int {
	n := 0
	for k, v := range attrib {
		if n > 0 {
			n++
		}
		n += len(k) + len(v) + 3
	}
	return n
}

// Score sets the score of every element of the tree and returns the
// first best-scoring element in document order.
func Score(root *doc.Element) *doc.Element {
	p, q := root.Pos, root.Neg
	if p == 0 {
		p = 1
	}
	if q == 0 {
		q = 1
	}

	best := root
	stack := []*doc.Element{root}
	for len(stack) > 0 {
		el := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		el.Score = el.Pos/p - 2*el.Neg/q
		if el.Score > best.Score {
			best = el
		}
		for i := len(el.Children) - 1; i >= 0; i-- {
			stack = append(stack, &el.Children[i])
		}
	}
	return best
}

// Extract returns the content region of the page at url.
func Extract(url, raw string) (*doc.Elements, error) {
	root, err := Tree(raw)
	if err != nil {
		return nil, err
	}
	best := Score(&root)
	return &doc.Elements{
		URL:      url,
		Score:    best.Score,
		Elements: []doc.Element{best.Clone()},
	}, nil
}

// NewPipeline extracts the content region of every fetched document.
func NewPipeline(r pipeline.Reader[doc.Document], w pipeline.Writer[doc.Document], logger *slog.Logger) *pipeline.Pipeline[doc.Document, doc.Document] {
	return pipeline.New(r, w, Document, pipeline.WithName("extract"), pipeline.WithLogger(logger))
}

// Document sets the extracted region of d.
func Document(ctx context.Context, key string, d doc.Document, emit pipeline.Emit[doc.Document]) error {
	region, err := Extract(d.URL, d.RawHTML)
	if err != nil {
		return fmt.Errorf("extract %s: %w", key, err)
	}
	d.Elements = region
	return emit(key, d)
}
