// Package doc defines the records passed between pipeline stages.
package doc

import (
	"maps"
	"strings"
	"time"
)

// Document is the record every stage reads and enriches, keyed by URL.
type Document struct {
	URL            string             `msgpack:"url" json:"url"`
	Timestamp      time.Time          `msgpack:"timestamp" json:"timestamp"`
	Metadata       map[string]string  `msgpack:"metadata,omitempty" json:"metadata,omitempty"`
	RawHTML        string             `msgpack:"raw_html,omitempty" json:"raw_html,omitempty"`
	Elements       *Elements          `msgpack:"elements,omitempty" json:"elements,omitempty"`
	Blobs          []Blob             `msgpack:"blobs,omitempty" json:"blobs,omitempty"`
	Keywords       []Keyword          `msgpack:"keywords,omitempty" json:"keywords,omitempty"`
	Classification map[string]float64 `msgpack:"classification,omitempty" json:"classification,omitempty"`
}

// Blob is a contiguous run of text and its positioned words
type Blob struct {
	Text  string `msgpack:"text" json:"text"`
	Words []Word `msgpack:"words,omitempty" json:"words,omitempty"`
}

// Word is a normalized token and its position within the blob
type Word struct {
	Text  string `msgpack:"text" json:"text"`
	Index int    `msgpack:"index" json:"index"`
}

// Keyword carries per-word statistics. The same record is used as a
// corpus-wide aggregate (keyed by word) and as a document annotation.
type Keyword struct {
	Word          string             `msgpack:"word" json:"word"`
	DocCount      int64              `msgpack:"doc_count,omitempty" json:"doc_count,omitempty"`
	TotalDocCount int64              `msgpack:"total_doc_count,omitempty" json:"total_doc_count,omitempty"`
	TermCount     int64              `msgpack:"term_count,omitempty" json:"term_count,omitempty"`
	TfIdf         float64            `msgpack:"tf_idf,omitempty" json:"tf_idf,omitempty"`
	TextRank      float64            `msgpack:"text_rank,omitempty" json:"text_rank,omitempty"`
	Prior         map[string]float64 `msgpack:"prior,omitempty" json:"prior,omitempty"`
	MutualInfo    map[string]float64 `msgpack:"mutual_info,omitempty" json:"mutual_info,omitempty"`
}

// Elements is the best-scoring region of a page
type Elements struct {
	URL      string    `msgpack:"url" json:"url"`
	Score    float64   `msgpack:"score" json:"score"`
	Elements []Element `msgpack:"elements" json:"elements"`
}

// Element is one HTML element with its weights and extraction score
type Element struct {
	Tag      string            `msgpack:"tag" json:"tag"`
	Text     string            `msgpack:"text,omitempty" json:"text,omitempty"`
	Tail     string            `msgpack:"tail,omitempty" json:"tail,omitempty"`
	Attrib   map[string]string `msgpack:"attrib,omitempty" json:"attrib,omitempty"`
	Pos      float64           `msgpack:"pos" json:"pos"`
	Neg      float64           `msgpack:"neg" json:"neg"`
	Score    float64           `msgpack:"score" json:"score"`
	Children []Element         `msgpack:"children,omitempty" json:"children,omitempty"`
}

// Words returns every word of the document in blob order.
func (d *Document) Words() []Word {
	var out []Word
	for _, b := range d.Blobs {
		out = append(out, b.Words...)
	}
	return out
}

// DistinctWords returns each word text once, in first-seen order.
func (d *Document) DistinctWords() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range d.Blobs {
		for _, w := range b.Words {
			if _, ok := seen[w.Text]; ok {
				continue
			}
			seen[w.Text] = struct{}{}
			out = append(out, w.Text)
		}
	}
	return out
}

// DistinctKeywords returns each keyword word once, in first-seen order.
func (d *Document) DistinctKeywords() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, k := range d.Keywords {
		if _, ok := seen[k.Word]; ok {
			continue
		}
		seen[k.Word] = struct{}{}
		out = append(out, k.Word)
	}
	return out
}

// CountWord returns how often word occurs in the document.
func (d *Document) CountWord(word string) int {
	n := 0
	for _, b := range d.Blobs {
		for _, w := range b.Words {
			if w.Text == word {
				n++
			}
		}
	}
	return n
}

// Text joins the blob texts with single spaces.
func (d *Document) Text() string {
	parts := make([]string, len(d.Blobs))
	for i, b := range d.Blobs {
		parts[i] = b.Text
	}
	return strings.Join(parts, " ")
}

// Clone returns a deep copy, so fan-out stages never share mutable state.
func (d Document) Clone() Document {
	out := d
	out.Metadata = maps.Clone(d.Metadata)
	out.Classification = maps.Clone(d.Classification)
	if d.Elements != nil {
		el := d.Elements.Clone()
		out.Elements = &el
	}
	if d.Blobs != nil {
		out.Blobs = make([]Blob, len(d.Blobs))
		for i, b := range d.Blobs {
			out.Blobs[i] = Blob{Text: b.Text, Words: append([]Word(nil), b.Words...)}
		}
	}
	if d.Keywords != nil {
		out.Keywords = make([]Keyword, len(d.Keywords))
		for i, k := range d.Keywords {
			out.Keywords[i] = k.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the keyword.
func (k Keyword) Clone() Keyword {
	out := k
	out.Prior = maps.Clone(k.Prior)
	out.MutualInfo = maps.Clone(k.MutualInfo)
	return out
}

// Clone returns a deep copy of the region.
func (e Elements) Clone() Elements {
	out := e
	out.Elements = make([]Element, len(e.Elements))
	for i, el := range e.Elements {
		out.Elements[i] = el.Clone()
	}
	return out
}

// Clone returns a deep copy of the element subtree. The walk uses an
// explicit stack so deep pages don't grow the goroutine stack.
func (e Element) Clone() Element {
	root := e
	type frame struct{ el *Element }
	root.Attrib = maps.Clone(e.Attrib)
	root.Children = append([]Element(nil), e.Children...)
	stack := []frame{{&root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for i := range top.el.Children {
			c := &top.el.Children[i]
			c.Attrib = maps.Clone(c.Attrib)
			c.Children = append([]Element(nil), c.Children...)
			stack = append(stack, frame{c})
		}
	}
	return root
}
