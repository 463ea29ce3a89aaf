// Package bayes classifies documents with a multinomial naive Bayes model
// trained on labelled documents' keywords.
package bayes

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/cognicore/koch/pkg/koch/doc"
	"github.com/cognicore/koch/pkg/koch/internalerr"
	"github.com/cognicore/koch/pkg/koch/pipeline"
)

// Config names the metadata field holding labels and the classes to learn.
type Config struct {
	Label   string   `yaml:"label"`
	Classes []string `yaml:"classes"`
}

// Validate requires a label field and at least one class.
func (c Config) Validate() error {
	if c.Label == "" {
		return fmt.Errorf("%w: bayes label field is empty", internalerr.ErrInvalidConfig)
	}
	if len(c.Classes) == 0 {
		return fmt.Errorf("%w: bayes has no classes", internalerr.ErrInvalidConfig)
	}
	return nil
}

var parenthetical = regexp.MustCompile(`\(.*\)`)

// Values splits a label field into normalized values: parentheticals are
// removed, the rest is split on commas, trimmed and lower-cased.
func Values(field string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range parenthetical.Split(field, -1) {
		for _, v := range strings.Split(part, ",") {
			out[normalize(v)] = struct{}{}
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Label returns the first configured class among the values of d's label
// field.
func Label(d *doc.Document, cfg Config) (string, bool) {
	field, ok := d.Metadata[cfg.Label]
	if !ok {
		return "", false
	}
	values := Values(field)
	for _, c := range cfg.Classes {
		if _, ok := values[normalize(c)]; ok {
			return c, true
		}
	}
	return "", false
}

// Labelled keeps the documents carrying one of the configured classes.
func Labelled(cfg Config) pipeline.PipeFunc[doc.Document, doc.Document] {
	return func(ctx context.Context, key string, d doc.Document, emit pipeline.Emit[doc.Document]) error {
		if _, ok := Label(&d, cfg); !ok {
			return nil
		}
		return emit(key, d)
	}
}

// ClassPriors counts the documents of r per class, starting every class
// at len(cfg.Classes). Unlabelled documents are ignored.
func ClassPriors(ctx context.Context, r pipeline.Reader[doc.Document], cfg Config) (map[string]float64, error) {
	priors := make(map[string]float64, len(cfg.Classes))
	for _, c := range cfg.Classes {
		priors[c] = float64(len(cfg.Classes))
	}
	err := r.Each(ctx, func(key string, d doc.Document) error {
		if c, ok := Label(&d, cfg); ok {
			priors[c]++
		}
		return nil
	})
	return priors, err
}

// NewPriorPipeline counts, per keyword, the labelled documents of each
// class it annotates. Every class starts at one on a keyword's first sight.
func NewPriorPipeline(r pipeline.Reader[doc.Document], keywords *pipeline.Table[doc.Keyword], cfg Config, logger *slog.Logger) (*pipeline.CombiningPipeline[doc.Document, doc.Keyword], error) {
	pipe := func(ctx context.Context, key string, d doc.Document, emit pipeline.Emit[doc.Keyword]) error {
		label, ok := Label(&d, cfg)
		if !ok {
			return nil
		}
		for _, word := range d.DistinctKeywords() {
			if err := emit(word, doc.Keyword{Word: word, Prior: map[string]float64{label: 1}}); err != nil {
				return err
			}
		}
		return nil
	}
	combine := func(value, old doc.Keyword, found bool) (doc.Keyword, error) {
		if !found {
			old = doc.Keyword{Word: value.Word, Prior: make(map[string]float64, len(cfg.Classes))}
			for _, c := range cfg.Classes {
				old.Prior[c]++
			}
		}
		for c, n := range value.Prior {
			old.Prior[c] += n
		}
		return old, nil
	}
	return pipeline.OnTable(r, keywords, pipe, combine, pipeline.WithName("bayes-prior"), pipeline.WithLogger(logger))
}

// DocKeywords emits one copy of the document per distinct keyword, keyed
// by the keyword.
func DocKeywords(ctx context.Context, key string, d doc.Document, emit pipeline.Emit[doc.Document]) error {
	for _, word := range d.DistinctKeywords() {
		if err := emit(word, d.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// NewClassifyPipeline scores every document of r against the keyword
// priors and stores the per-class log likelihoods by URL in out. Each
// document starts from the log class priors.
func NewClassifyPipeline(r pipeline.Reader[doc.Document], keywords *pipeline.Table[doc.Keyword], out *pipeline.Table[doc.Document], classPriors map[string]float64, logger *slog.Logger) (*pipeline.CombiningPipeline[pipeline.Joined[doc.Document, doc.Keyword], doc.Document], error) {
	var labelCount float64
	for _, n := range classPriors {
		labelCount += n
	}

	joined, err := pipeline.NewJoining[doc.Document, doc.Keyword](
		pipeline.Compose(r, DocKeywords, pipeline.WithName("doc-keywords"), pipeline.WithLogger(logger)),
		keywords.Reader(),
	)
	if err != nil {
		return nil, err
	}

	pipe := func(ctx context.Context, word string, j pipeline.Joined[doc.Document, doc.Keyword], emit pipeline.Emit[doc.Document]) error {
		if !j.Found {
			return nil
		}
		d, kw := j.Left, j.Right
		weight := float64(d.CountWord(kw.Word))
		d.Classification = make(map[string]float64, len(kw.Prior))
		for c, n := range kw.Prior {
			prior, ok := classPriors[c]
			if !ok || prior <= 0 {
				continue
			}
			d.Classification[c] = weight * math.Log(n/prior)
		}
		return emit(d.URL, d)
	}
	combine := func(value, old doc.Document, found bool) (doc.Document, error) {
		if !found {
			old = value.Clone()
			old.Classification = make(map[string]float64, len(classPriors))
			for c, n := range classPriors {
				old.Classification[c] = math.Log(n / labelCount)
			}
		}
		for c, v := range value.Classification {
			old.Classification[c] += v
		}
		return old, nil
	}
	return pipeline.OnTable(joined, out, pipe, combine, pipeline.WithName("bayes"), pipeline.WithLogger(logger))
}

// Classify returns the class with the highest score in d, ties broken by
// class order in cfg.
func Classify(d *doc.Document, cfg Config) (string, bool) {
	best, found := "", false
	for _, c := range cfg.Classes {
		v, ok := d.Classification[c]
		if !ok {
			continue
		}
		if !found || v > d.Classification[best] {
			best, found = c, true
		}
	}
	return best, found
}

// Run trains on the labelled documents of docs and classifies all of
// them. keywords receives the keyword priors and out the classified
// documents; both must start empty.
func Run(ctx context.Context, docs pipeline.Reader[doc.Document], cfg Config, keywords *pipeline.Table[doc.Keyword], out *pipeline.Table[doc.Document], logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}

	labelled := pipeline.Compose(docs, Labelled(cfg), pipeline.WithName("label"), pipeline.WithLogger(logger))
	priors, err := ClassPriors(ctx, labelled, cfg)
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

	classify, err := NewClassifyPipeline(docs, keywords, out, priors, logger)
	if err != nil {
		return err
	}
	return classify.Run(ctx)
}
